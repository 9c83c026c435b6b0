// Package transfer implements the multi-part remote file transfer
// engine. One Transfer moves exactly one file: it validates the
// target, resolves the source size, splits it into byte ranges,
// fetches every range in parallel on the destination host, and
// assembles the parts into place. Partial failures never touch the
// final destination path.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/viaa/transfer-service/internal/diskspace"
	"github.com/viaa/transfer-service/internal/ranges"
	"github.com/viaa/transfer-service/internal/remote"
	"github.com/viaa/transfer-service/internal/remotecmd"
	"github.com/viaa/transfer-service/internal/secrets"
	"github.com/viaa/transfer-service/internal/source"
)

const (
	// DefaultParts is the fan-out of a transfer: one concurrent fetch
	// per part.
	DefaultParts = 4
	// DefaultAttempts bounds both the per-part retry and the outer
	// whole-transfer retry.
	DefaultAttempts = 3
	// DefaultDelay is the fixed pause between retry attempts.
	DefaultDelay = 3 * time.Second
)

// Sizer resolves the byte size of the source file.
type Sizer interface {
	Size(ctx context.Context, ep source.Endpoint) (int64, error)
}

// Descriptor is the immutable input of one transfer.
type Descriptor struct {
	SourceURL  string
	HostHeader string
	// SourceCredentials is nil for anonymous sources.
	SourceCredentials *secrets.Credentials
	DestinationHost   string
	DestinationPath   string
}

// Options tune a transfer. The zero value picks the defaults above
// with the space guard disabled.
type Options struct {
	Parts            int
	FreeSpacePercent int
	Attempts         int
	Delay            time.Duration
	// Sleep is a test hook shared by the retry wrappers and the space
	// guard. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Transfer is the state machine for one file. It is used for exactly
// one Run call and never shared between goroutines other than its own
// part fetches.
type Transfer struct {
	desc   Descriptor
	opts   Options
	dialer remote.Dialer
	sizer  Sizer
	guard  *diskspace.Guard
	log    zerolog.Logger

	// Derived remote paths. The staging directory is a sibling of the
	// destination, scoped to this transfer's lifetime.
	destDir    string
	destBase   string
	stagingDir string
	tmpPath    string

	// Resolved lazily, zero until the size inquiry succeeds.
	sizeBytes int64
}

// New builds the orchestrator for one descriptor.
func New(desc Descriptor, dialer remote.Dialer, sizer Sizer, opts Options, log zerolog.Logger) *Transfer {
	if opts.Parts <= 0 {
		opts.Parts = DefaultParts
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}

	destDir := path.Dir(desc.DestinationPath)
	destBase := path.Base(desc.DestinationPath)
	stagingDir := path.Join(destDir, destBase+".part")

	return &Transfer{
		desc:   desc,
		opts:   opts,
		dialer: dialer,
		sizer:  sizer,
		guard: &diskspace.Guard{
			ThresholdPercent: opts.FreeSpacePercent,
			Sleep:            opts.Sleep,
			Log:              log,
		},
		log:        log,
		destDir:    destDir,
		destBase:   destBase,
		stagingDir: stagingDir,
		tmpPath:    path.Join(stagingDir, destBase+".tmp"),
	}
}

// Run performs the transfer, retrying the whole sequence on transfer
// errors. Precondition failures (destination exists, target folder
// missing) are permanent but deliberately run through the same retry
// wrapper before propagating. Input errors such as an unsupported
// source scheme or a size too small to split are never retried.
func (t *Transfer) Run(ctx context.Context) error {
	return Retry(RetryConfig{
		Attempts: t.opts.Attempts,
		Delay:    t.opts.Delay,
		Sleep:    t.opts.Sleep,
		ShouldRetry: func(err error) bool {
			var transferErr *Error
			var preconditionErr *PreconditionError
			return errors.As(err, &transferErr) || errors.As(err, &preconditionErr)
		},
		OnRetry: func(attempt int, err error) {
			t.log.Warn().Err(err).Int("attempt", attempt).
				Str("source", t.desc.SourceURL).
				Msg("transfer attempt failed, retrying")
		},
	}, func() error {
		return t.run(ctx)
	})
}

func (t *Transfer) run(ctx context.Context) error {
	t.log.Info().
		Str("source", t.desc.SourceURL).
		Str("destination", t.desc.DestinationPath).
		Msg("starting transfer")

	if err := t.prepare(ctx); err != nil {
		return err
	}
	if err := t.transferParts(ctx); err != nil {
		return err
	}
	return t.assemble(ctx)
}

// prepare is phase one: one session for target validation, the free
// space gate, the size inquiry and the staging directory. The session
// closes before any part fetch starts so a stale master connection is
// never held open across the fan-out.
func (t *Transfer) prepare(ctx context.Context) (err error) {
	sess, dialErr := t.dialer.Dial(ctx)
	if dialErr != nil {
		return &Error{Message: "connect to destination", Err: dialErr}
	}
	defer sess.Close()

	if err = t.checkTargetFolder(sess); err != nil {
		return err
	}
	if err = t.guard.Wait(ctx, sess, t.destDir); err != nil {
		return &Error{Message: "free space check", Err: err}
	}
	if err = t.fetchSize(ctx); err != nil {
		return err
	}
	return t.prepareTarget(sess)
}

func (t *Transfer) checkTargetFolder(sess remote.Session) error {
	if _, err := sess.Stat(t.destDir); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return &PreconditionError{Message: "target folder does not exist: " + t.destDir}
		}
		return &Error{Message: "stat target folder", Err: err}
	}
	return nil
}

func (t *Transfer) fetchSize(ctx context.Context) error {
	ep := source.Endpoint{
		URL:        t.desc.SourceURL,
		HostHeader: t.desc.HostHeader,
	}
	if t.desc.SourceCredentials != nil {
		ep.Username = t.desc.SourceCredentials.Username
		ep.Password = t.desc.SourceCredentials.Password
	}

	size, err := t.sizer.Size(ctx, ep)
	if err != nil {
		var unsupported *source.UnsupportedSchemeError
		if errors.As(err, &unsupported) {
			// Input error, propagates without consuming a retry.
			return err
		}
		t.log.Error().Err(err).Str("source", t.desc.SourceURL).
			Msg("failed to get size of source file")
		return &Error{Message: "fetch source size", Err: err}
	}
	t.sizeBytes = size
	return nil
}

// prepareTarget refuses to overwrite an existing destination and
// creates the staging directory. A staging directory left behind by an
// earlier attempt is reused.
func (t *Transfer) prepareTarget(sess remote.Session) error {
	_, err := sess.Stat(t.desc.DestinationPath)
	if err == nil {
		t.log.Error().Str("destination", t.desc.DestinationPath).Msg("file already exists")
		return &PreconditionError{Message: "file already exists: " + t.desc.DestinationPath}
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return &Error{Message: "stat destination", Err: err}
	}

	if mkdirErr := sess.Mkdir(t.stagingDir); mkdirErr != nil {
		if _, statErr := sess.Stat(t.stagingDir); statErr != nil {
			t.log.Error().Err(mkdirErr).Str("staging_dir", t.stagingDir).
				Msg("failed to create staging directory")
			return &Error{Message: "create staging directory", Err: mkdirErr}
		}
		// The directory already exists, carry on.
	}
	return nil
}

// transferParts fans out one goroutine per part and waits for all of
// them, success or failure. Part failures are logged here and caught
// by the assembly size check: the join-all barrier never
// short-circuits, so assembly state is always consistent. A size that
// cannot be split at all is an input error and propagates unwrapped,
// so it fails the transfer without consuming a retry.
func (t *Transfer) transferParts(ctx context.Context) error {
	parts, err := ranges.Calculate(t.sizeBytes, t.opts.Parts)
	if err != nil {
		t.log.Error().Err(err).Int64("size", t.sizeBytes).Msg("cannot split into parts")
		return err
	}

	var wg sync.WaitGroup
	for idx, rng := range parts {
		partPath := ranges.PartFileName(t.destBase, idx, t.stagingDir)
		wg.Add(1)
		go func(partPath, rng string) {
			defer wg.Done()
			if err := t.transferPart(ctx, partPath, rng); err != nil {
				t.log.Error().Err(err).Str("part", partPath).Msg("part transfer failed")
			}
		}(partPath, rng)
		t.log.Debug().Str("part", partPath).Str("range", rng).Msg("part transfer started")
	}
	wg.Wait()
	return nil
}

// transferPart fetches one byte range, retrying part failures with a
// fixed delay. Each attempt opens its own session so parallel parts
// never contend on one connection.
func (t *Transfer) transferPart(ctx context.Context, partPath, rng string) error {
	return Retry(RetryConfig{
		Attempts: t.opts.Attempts,
		Delay:    t.opts.Delay,
		Sleep:    t.opts.Sleep,
		ShouldRetry: func(err error) bool {
			var partErr *PartError
			return errors.As(err, &partErr)
		},
		OnRetry: func(attempt int, err error) {
			t.log.Warn().Err(err).Int("attempt", attempt).Str("part", partPath).
				Msg("part attempt failed, retrying")
		},
	}, func() error {
		return t.fetchPart(ctx, partPath, rng)
	})
}

func (t *Transfer) fetchPart(ctx context.Context, partPath, rng string) error {
	fetch := remotecmd.Fetch{
		Destination: partPath,
		SourceURL:   t.desc.SourceURL,
		HostHeader:  t.desc.HostHeader,
		Range:       rng,
	}
	if t.desc.SourceCredentials != nil {
		fetch.Username = t.desc.SourceCredentials.Username
		fetch.Password = t.desc.SourceCredentials.Password
	}

	sess, err := t.dialer.Dial(ctx)
	if err != nil {
		return &PartError{Part: partPath, Err: err}
	}
	defer sess.Close()

	stdout, stderr, err := sess.Execute(ctx, fetch.Command())
	if err != nil {
		return &PartError{Part: partPath, Err: err}
	}
	if len(stderr) > 0 {
		return &PartError{Part: partPath, Err: fmt.Errorf("curl wrote to stderr: %s", stderr[0])}
	}
	if len(stdout) == 0 {
		return &PartError{Part: partPath, Err: errors.New("no result line on stdout")}
	}

	status, results, err := parseCurlResult(stdout[0])
	if err != nil {
		return &PartError{Part: partPath, Err: err}
	}
	if status >= 400 {
		return &PartError{Part: partPath, Err: fmt.Errorf("status code %d", status)}
	}

	t.log.Info().Str("part", partPath).Strs("results", results).Msg("part transferred")
	return nil
}

// assemble is phase two, on a fresh session: concatenate the parts,
// verify the assembled size, rename into place, then clean up the
// staging state. On a size mismatch everything is left behind for
// inspection.
func (t *Transfer) assemble(ctx context.Context) error {
	sess, err := t.dialer.Dial(ctx)
	if err != nil {
		return &Error{Message: "connect to destination", Err: err}
	}
	defer sess.Close()

	t.log.Info().Str("destination", t.desc.DestinationPath).Msg("assembling parts")

	cmd := remotecmd.Assemble(t.stagingDir, t.destBase, t.opts.Parts)
	if _, _, err := sess.Execute(ctx, cmd); err != nil {
		return &Error{Message: "assemble parts", Err: err}
	}

	fi, err := sess.Stat(t.tmpPath)
	if err != nil {
		return &Error{Message: "stat assembled file", Err: err}
	}
	if fi.Size() != t.sizeBytes {
		t.log.Error().
			Int64("assembled_size", fi.Size()).
			Int64("expected_size", t.sizeBytes).
			Str("destination", t.tmpPath).
			Msg("assembled file has wrong size")
		return &Error{Message: fmt.Sprintf("assembled size %d, expected %d", fi.Size(), t.sizeBytes)}
	}

	if err := sess.Rename(t.tmpPath, t.desc.DestinationPath); err != nil {
		return &Error{Message: "rename assembled file", Err: err}
	}
	// The SFTP utime primitive is unreliable against the destination
	// filesystem, so touch over the shell instead.
	if _, _, err := sess.Execute(ctx, remotecmd.Touch(t.desc.DestinationPath)); err != nil {
		return &Error{Message: "touch destination", Err: err}
	}

	for idx := 0; idx < t.opts.Parts; idx++ {
		partPath := ranges.PartFileName(t.destBase, idx, t.stagingDir)
		if err := sess.Remove(partPath); err != nil && !errors.Is(err, remote.ErrNotFound) {
			return &Error{Message: "remove part", Err: err}
		}
	}
	if err := sess.RemoveDir(t.stagingDir); err != nil {
		return &Error{Message: "remove staging directory", Err: err}
	}

	t.log.Info().Str("destination", t.desc.DestinationPath).Msg("file transferred")
	return nil
}

func parseCurlResult(line string) (int, []string, error) {
	results := strings.Split(line, ",")
	status, err := strconv.Atoi(strings.TrimSpace(results[0]))
	if err != nil {
		return 0, nil, fmt.Errorf("malformed curl result line %q", line)
	}
	return status, results, nil
}
