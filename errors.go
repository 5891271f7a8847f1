package semmutex

import (
	"fmt"

	"github.com/juju/errors"
)

// Error kinds. Every failure returned by this package is an *OpError whose
// Kind is one of these, so callers can branch with errors.Is.
const (
	// ErrKeyDerivation means neither the configured path nor the fallback
	// path produced an IPC key.
	ErrKeyDerivation = errors.ConstError("cannot derive IPC key")

	// ErrCreate means the OS refused to create or open the shared object
	// for a reason other than "already exists".
	ErrCreate = errors.ConstError("cannot create semaphore")

	// ErrInitTimeout means a late-joining process gave up waiting for the
	// creator to finish initializing the mutex set.
	ErrInitTimeout = errors.ConstError("semaphore set not initialized")

	// ErrOperation is a lock, unlock, acquire, release or remove failure.
	ErrOperation = errors.ConstError("semaphore operation failed")

	// ErrStale means the semaphore was removed, usually by another process.
	ErrStale = errors.ConstError("semaphore no longer exists")

	// ErrSlotRange means a mutex slot outside 0..Count-1 was requested.
	ErrSlotRange = errors.ConstError("mutex slot out of range")

	// ErrUnsupported is returned by every operation on platforms without a
	// semaphore implementation.
	ErrUnsupported = errors.ConstError("IPC semaphores are not supported on this platform")
)

// OpError records a failed operation, the slot or identifier it was applied
// to, the error kind and the underlying OS error, if any.
type OpError struct {
	// Op is the operation that failed (e.g. "lock", "semget").
	Op string

	// Target identifies the slot, key or path the operation was applied to.
	Target string

	// Kind is one of the Err* kinds declared in this package.
	Kind error

	// Err is the underlying OS error. It may be nil.
	Err error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Target, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the OS error to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
