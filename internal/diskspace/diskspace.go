// Package diskspace gates transfers on the free space of the remote
// destination filesystem.
package diskspace

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/viaa/transfer-service/internal/remote"
	"github.com/viaa/transfer-service/internal/remotecmd"
)

// DefaultInterval is how long a transfer waits between free-space
// polls.
const DefaultInterval = 120 * time.Second

// Guard blocks the start of a transfer until the destination
// filesystem has more free space than a configured threshold. The wait
// is deliberately unbounded: a transfer waits for space rather than
// fail.
type Guard struct {
	// ThresholdPercent is the free percentage that must be exceeded.
	// Zero or negative disables the guard entirely; the feature is
	// opt-in.
	ThresholdPercent int
	// Interval between polls. Defaults to DefaultInterval.
	Interval time.Duration
	// Sleep is a test hook. Defaults to time.Sleep.
	Sleep func(time.Duration)
	Log   zerolog.Logger
}

// Wait polls the used percentage of the filesystem holding dir until
// enough of it is free. A disk-usage line that cannot be parsed is
// logged and treated as a pass: the guard fails open so an odd df
// output never wedges a transfer.
func (g *Guard) Wait(ctx context.Context, sess remote.Session, dir string) error {
	if g.ThresholdPercent <= 0 {
		return nil
	}
	interval := g.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	sleep := g.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for {
		stdout, _, err := sess.Execute(ctx, remotecmd.DiskUsage(dir))
		if err != nil {
			return err
		}
		used, ok := parseUsedPercent(stdout)
		if !ok {
			g.Log.Warn().Str("dir", dir).Msg("could not get used percentage")
			return nil
		}

		free := 100 - used
		g.Log.Info().
			Int("free_percentage", free).
			Int("needed_percentage", g.ThresholdPercent).
			Msg("checked free space")
		if free > g.ThresholdPercent {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		sleep(interval)
	}
}

// parseUsedPercent extracts the used percentage from df output such as
// [" 12%"].
func parseUsedPercent(lines []string) (int, bool) {
	if len(lines) == 0 {
		return 0, false
	}
	field := strings.SplitN(strings.TrimSpace(lines[0]), "%", 2)[0]
	used, err := strconv.Atoi(field)
	if err != nil {
		return 0, false
	}
	return used, true
}
