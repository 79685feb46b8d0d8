package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// RemoteError wraps any failure from the remote property/favorites store.
// The coordinator surfaces these to its caller; it never retries.
type RemoteError struct {
	Op  string
	Err error
}

func (e RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote %s failed", e.Op)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e RemoteError) Unwrap() error { return e.Err }

// Is enables errors.Is matching on RemoteError.
func (e RemoteError) Is(target error) bool {
	_, ok := target.(RemoteError)
	if ok {
		return true
	}
	_, ok = target.(*RemoteError)
	return ok
}

// ErrRemote is the sentinel error for remote store failures.
var ErrRemote = RemoteError{}

// StorageError represents a guest-store read/write failure. It never crosses
// the guest store boundary; it exists so the store can log a typed cause.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("guest storage %s failed: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// ValidationError represents a caller-contract violation, e.g. invoking an
// authenticated-only operation without a resolved identity. It carries no
// custom Is: the sentinels below match by value equality only, so a generic
// validation error never satisfies errors.Is against a specific sentinel.
// Match the type itself with errors.As.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	if e.Reason == "" {
		return "validation failed"
	}
	return e.Reason
}

// ErrNotAuthenticated is returned when a remote mutation is attempted
// without a resolved authenticated identity.
var ErrNotAuthenticated = ValidationError{Reason: "not authenticated"}

// ErrSessionUnresolved is returned when the session state is still unknown.
var ErrSessionUnresolved = ValidationError{Reason: "session not resolved yet"}

// ErrInFlight is returned when an identical action is already processing.
// Callers treat it as "do not launch a second remote call", not as a failure
// of the underlying operation.
var ErrInFlight = fmt.Errorf("action already in flight")
