package ldlm

import "fmt"

// StatusCode represents the status of an enqueue, cancel, or replay
// operation as observed by a caller.
type StatusCode int

const (
	// StatusOK indicates success.
	StatusOK StatusCode = iota + 1
	// StatusLockAborted indicates the server granted and then immediately
	// revoked the lock; an LVB may still accompany the reply.
	StatusLockAborted
	// StatusNoLock indicates the handle does not name a live lock.
	StatusNoLock
	// StatusProtoError indicates a malformed or inconsistent reply.
	StatusProtoError
	// StatusNoMem indicates local resource exhaustion.
	StatusNoMem
	// StatusTimeout indicates an RPC or completion wait timed out.
	StatusTimeout
	// StatusESTALE indicates the server no longer recognizes the lock
	// (already cancelled or never existed server-side).
	StatusESTALE
	// StatusShutdown indicates the operation aborted because the import
	// is shutting down.
	StatusShutdown
	// StatusInterrupted indicates a waiting caller was woken by a
	// cancellation racing the completion wait.
	StatusInterrupted
	// StatusIOError indicates the underlying lock was destroyed or
	// failed before completion.
	StatusIOError
	// StatusInval indicates an invalid argument or a notification that
	// arrived for a lock already marked failed.
	StatusInval
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusLockAborted:
		return "LockAborted"
	case StatusNoLock:
		return "NoLock"
	case StatusProtoError:
		return "ProtoError"
	case StatusNoMem:
		return "NoMem"
	case StatusTimeout:
		return "Timeout"
	case StatusESTALE:
		return "ESTALE"
	case StatusShutdown:
		return "Shutdown"
	case StatusInterrupted:
		return "Interrupted"
	case StatusIOError:
		return "IOError"
	case StatusInval:
		return "Inval"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// StatusError is the error type returned by the engine. It carries a
// status code plus, where relevant, the resource name, to let a caller
// log or branch on the failure without string-matching the message.
type StatusError struct {
	Code     StatusCode
	Message  string
	Resource string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (resource: %s)", e.Code, e.Message, e.Resource)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewLockAbortedError creates a LockAborted error.
func NewLockAbortedError(resource string) *StatusError {
	return &StatusError{Code: StatusLockAborted, Message: "lock aborted by server", Resource: resource}
}

// NewNoLockError creates a NoLock error.
func NewNoLockError(resource string) *StatusError {
	return &StatusError{Code: StatusNoLock, Message: "no such lock", Resource: resource}
}

// NewProtoError creates a ProtoError with the given detail.
func NewProtoError(detail string) *StatusError {
	return &StatusError{Code: StatusProtoError, Message: detail}
}

// NewNoMemError creates a NoMem error.
func NewNoMemError(detail string) *StatusError {
	return &StatusError{Code: StatusNoMem, Message: detail}
}

// NewTimeoutError creates a Timeout error against the given resource.
func NewTimeoutError(resource string) *StatusError {
	return &StatusError{Code: StatusTimeout, Message: "operation timed out", Resource: resource}
}

// NewShutdownError creates a Shutdown error.
func NewShutdownError() *StatusError {
	return &StatusError{Code: StatusShutdown, Message: "import is shutting down"}
}

// NewInterruptedError creates an Interrupted error.
func NewInterruptedError(resource string) *StatusError {
	return &StatusError{Code: StatusInterrupted, Message: "wait interrupted by cancel", Resource: resource}
}

// NewIOError creates an IOError for a destroyed or failed lock.
func NewIOError(resource string) *StatusError {
	return &StatusError{Code: StatusIOError, Message: "lock destroyed or failed", Resource: resource}
}

// NewInvalError creates an Inval error with the given detail.
func NewInvalError(detail string) *StatusError {
	return &StatusError{Code: StatusInval, Message: detail}
}

// IsESTALE reports whether err is an ESTALE status error.
func IsESTALE(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == StatusESTALE
}

// IsTimeout reports whether err is a Timeout status error.
func IsTimeout(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == StatusTimeout
}

// IsLockAborted reports whether err is a LockAborted status error.
func IsLockAborted(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == StatusLockAborted
}
