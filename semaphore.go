package semmutex

import "sync"

// Locker is the minimal lock surface shared by Mutex and RefSemaphore.
//
// Example:
//
//	set := semmutex.NewMutexSet(semmutex.Options{KeyPath: "/etc/app.conf"})
//	mu, _ := set.Create(3, "history")
//
//	mu.Lock()
//	// critical section - access shared resource
//	mu.Unlock()
type Locker interface {
	// Lock blocks until the lock is held by this process.
	Lock() error

	// Unlock releases a lock taken with Lock.
	Unlock() error
}

// refBackend is the capability every platform variant of the refcounted
// semaphore provides.
type refBackend interface {
	acquire() error
	release() error
	// remove drops this process's use and deletes the OS object when no
	// user is left.
	remove() error
	stat() (RefStat, error)
}

// RefStat is a snapshot of a refcounted semaphore.
type RefStat struct {
	// Key is the IPC key of the semaphore group.
	Key Key

	// ID is the OS identifier of the group.
	ID int

	// Gate is the number of further holders the gate admits.
	Gate int

	// Usage is the number of processes currently attached.
	Usage int
}

// RefSemaphore is a gate shared by all processes that derive the same key,
// with a usage count that tracks how many of them are attached. The first
// user sets the gate capacity to Options.MaxAcquire; the last one to Remove
// deletes it. The kernel rolls back the usage count and any held gate of a
// process that exits without releasing.
//
// A nil *RefSemaphore and a removed RefSemaphore are unset; Acquire, Release
// and Remove on them do nothing and return nil.
type RefSemaphore struct {
	// Path is the path the key was derived from.
	Path string

	key         Key
	initialized bool

	mu sync.Mutex
	b  refBackend
}

// GetRefSemaphore creates or attaches the semaphore group keyed by path
// (falling back to Options.FallbackPath) and registers this process as a
// user. Only key derivation and creation failures are returned; failures in
// the initialization handshake are reported and skipped.
func GetRefSemaphore(path string, opts Options) (*RefSemaphore, error) {
	o := opts.withDefaults()
	key, keyPath, err := o.resolveKey(path)
	if err != nil {
		return nil, err
	}
	b, initialized, err := openRefBackend(key, &o)
	if err != nil {
		return nil, err
	}
	return &RefSemaphore{Path: keyPath, key: key, initialized: initialized, b: b}, nil
}

// InspectRefSemaphore reads the state of the group keyed by path without
// attaching to it. It fails with ErrStale when the group does not exist.
func InspectRefSemaphore(path string, opts Options) (RefStat, error) {
	o := opts.withDefaults()
	key, _, err := o.resolveKey(path)
	if err != nil {
		return RefStat{}, err
	}
	return inspectRef(key, &o)
}

func (s *RefSemaphore) backend() refBackend {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b
}

// Key returns the IPC key of the group.
func (s *RefSemaphore) Key() Key {
	return s.key
}

// Initialized reports whether this process was the sole user when it
// attached and therefore set the gate capacity.
func (s *RefSemaphore) Initialized() bool {
	return s != nil && s.initialized
}

// Acquire takes one unit of the gate, blocking until one is available.
// Interrupted waits are retried.
func (s *RefSemaphore) Acquire() error {
	b := s.backend()
	if b == nil {
		return nil
	}
	return b.acquire()
}

// Release returns one unit of the gate.
func (s *RefSemaphore) Release() error {
	b := s.backend()
	if b == nil {
		return nil
	}
	return b.release()
}

// Remove drops this process's use of the group and clears the handle, even
// when it fails. The group is deleted from the OS when this was the last
// user; otherwise it stays intact for the others. ErrStale is returned when
// another process already removed it.
func (s *RefSemaphore) Remove() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	b := s.b
	s.b = nil
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.remove()
}

// Stat returns the current gate value and usage count.
func (s *RefSemaphore) Stat() (RefStat, error) {
	b := s.backend()
	if b == nil {
		return RefStat{}, &OpError{Op: "stat", Target: "unset semaphore", Kind: ErrStale}
	}
	return b.stat()
}

// Locker adapts the semaphore to the Locker interface: Lock acquires and
// Unlock releases.
func (s *RefSemaphore) Locker() Locker {
	return refLocker{s}
}

type refLocker struct {
	s *RefSemaphore
}

func (l refLocker) Lock() error   { return l.s.Acquire() }
func (l refLocker) Unlock() error { return l.s.Release() }
