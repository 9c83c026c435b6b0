package remote

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a remote path does not exist. Several flows
// treat a missing path as expected, so it is distinguished from other
// I/O failures and can be matched with errors.Is.
var ErrNotFound = errors.New("remote path not found")

// ConnectError reports a failure to establish the SSH connection or
// its SFTP sub-channel.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// OpError reports a failed remote operation that is not explained by a
// missing path.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
