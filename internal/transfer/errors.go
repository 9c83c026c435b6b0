package transfer

import "fmt"

// Error is a transfer-level failure. The orchestrator's outer retry
// catches it and reruns the whole transfer.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "transfer failed: " + e.Message
	}
	return fmt.Sprintf("transfer failed: %s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PartError is a failure of a single part fetch. The per-part retry
// catches it; once attempts are exhausted it surfaces in the log and
// the transfer fails at the assembly size check.
type PartError struct {
	Part string
	Err  error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("transfer of part %s failed: %v", e.Part, e.Err)
}

func (e *PartError) Unwrap() error { return e.Err }

// PreconditionError is a permanent precondition failure: the
// destination file already exists, or the target folder is missing.
// Retrying cannot help, but it still runs through the outer retry
// wrapper before propagating; callers can match the type to tell the
// two apart.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }
