// Package remote runs commands and file operations on the destination
// host over SSH. A Session is always scoped: opened for one phase of a
// transfer, used, and closed on every path. Parallel part fetches each
// open their own session so they never contend on a single channel.
package remote

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Config holds the connection parameters for the destination host.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Timeout bounds the TCP/SSH handshake, not command execution.
	Timeout time.Duration
}

// Session is one authenticated connection with a file-transfer
// sub-channel on top of it.
type Session interface {
	// Execute runs command in a shell on the remote host and returns
	// the stdout and stderr lines. A non-zero exit status is not an
	// error: callers inspect the captured output instead.
	Execute(ctx context.Context, command string) (stdout, stderr []string, err error)
	Stat(path string) (os.FileInfo, error)
	Mkdir(path string) error
	Rename(oldPath, newPath string) error
	Remove(path string) error
	RemoveDir(path string) error
	Close() error
}

// Dialer opens sessions. Each phase of a transfer, and each parallel
// part fetch, dials its own session.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// SSHDialer dials password-authenticated SSH sessions with an SFTP
// sub-channel.
type SSHDialer struct {
	cfg Config
}

// NewDialer returns a Dialer for the given destination.
func NewDialer(cfg Config) *SSHDialer {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SSHDialer{cfg: cfg}
}

// Dial connects and opens the SFTP sub-channel. Host keys are not
// verified: destinations are provisioned dynamically and announced in
// the transfer message, matching an auto-accept policy.
func (d *SSHDialer) Dial(ctx context.Context) (Session, error) {
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	sshCfg := &ssh.ClientConfig{
		User:            d.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(d.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.cfg.Timeout,
	}

	conn, err := (&net.Dialer{Timeout: d.cfg.Timeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Host: addr, Err: err}
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		conn.Close()
		return nil, &ConnectError{Host: addr, Err: err}
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, &ConnectError{Host: addr, Err: err}
	}
	return &sshSession{client: client, sftp: sftpClient}, nil
}

type sshSession struct {
	client *ssh.Client
	sftp   *sftp.Client
}

func (s *sshSession) Execute(ctx context.Context, command string) ([]string, []string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, nil, &OpError{Op: "exec", Err: err}
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return nil, nil, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return nil, nil, &OpError{Op: "exec", Err: err}
		}
		// Remote command exited non-zero. The captured streams carry
		// the diagnosis, so hand them to the caller.
	}
	return splitLines(stdout.String()), splitLines(stderr.String()), nil
}

func (s *sshSession) Stat(path string) (os.FileInfo, error) {
	fi, err := s.sftp.Stat(path)
	if err != nil {
		return nil, wrapPathError("stat", path, err)
	}
	return fi, nil
}

func (s *sshSession) Mkdir(path string) error {
	if err := s.sftp.Mkdir(path); err != nil {
		return wrapPathError("mkdir", path, err)
	}
	return nil
}

func (s *sshSession) Rename(oldPath, newPath string) error {
	if err := s.sftp.Rename(oldPath, newPath); err != nil {
		return wrapPathError("rename", oldPath, err)
	}
	return nil
}

func (s *sshSession) Remove(path string) error {
	if err := s.sftp.Remove(path); err != nil {
		return wrapPathError("remove", path, err)
	}
	return nil
}

func (s *sshSession) RemoveDir(path string) error {
	if err := s.sftp.RemoveDirectory(path); err != nil {
		return wrapPathError("rmdir", path, err)
	}
	return nil
}

func (s *sshSession) Close() error {
	sftpErr := s.sftp.Close()
	sshErr := s.client.Close()
	return errors.Join(sftpErr, sshErr)
}

func wrapPathError(op, path string, err error) error {
	if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
		return &OpError{Op: op, Path: path, Err: ErrNotFound}
	}
	return &OpError{Op: op, Path: path, Err: err}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines
}
