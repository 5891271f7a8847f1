package semmutex

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// mutexBackend is the capability every platform variant of the mutex set
// provides. Exactly one implementation is compiled in, chosen by build tags.
type mutexBackend interface {
	// create makes slot usable, creating the shared object when this process
	// is first. It reports whether this call performed the creation.
	create(key Key, slot int, target string) (bool, error)
	lock(slot int, target string) error
	unlock(slot int, target string) error
	// destroy removes the object backing slot; slot < 0 means everything.
	destroy(key Key, slot int) error
	stat(key Key) (SetStat, error)
}

// SetStat is a snapshot of a mutex set as seen by the OS.
type SetStat struct {
	// Key is the IPC key the set is attached under.
	Key Key

	// ID is the OS identifier of the set.
	ID int

	// Count is the number of slots.
	Count int

	// LastOp is the time of the last semaphore operation; zero until the
	// creator has finished initializing the set.
	LastOp time.Time

	// Values holds each slot's semaphore value: 1 unlocked, 0 locked.
	Values []int

	// Waiting holds the number of processes blocked on each slot.
	Waiting []int
}

// MutexSet is the per-process context for a shared set of mutex slots. It is
// constructed once at process start by whichever component bootstraps IPC,
// hands out a Mutex per logical lock, and is destroyed once at teardown.
//
// All processes that build a MutexSet with the same KeyPath, Tag and Count
// share the same slots. A MutexSet is safe for concurrent use.
type MutexSet struct {
	opts    Options
	backend mutexBackend

	mu      sync.Mutex
	key     Key
	keyPath string
	keyed   bool
	created bool
}

// NewMutexSet returns a MutexSet configured by opts. No OS object is touched
// until the first Create.
func NewMutexSet(opts Options) *MutexSet {
	s := &MutexSet{opts: opts.withDefaults()}
	s.backend = newMutexBackend(&s.opts)
	return s
}

// Key returns the IPC key of the set, deriving it on first use from
// Options.KeyPath with a fallback to Options.FallbackPath.
func (s *MutexSet) Key() (Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyed {
		return s.key, nil
	}
	key, path, err := s.opts.resolveKey(s.opts.KeyPath)
	if err != nil {
		return 0, err
	}
	s.key, s.keyPath, s.keyed = key, path, true
	return key, nil
}

// KeyPath returns the path the key was derived from, or "" before the key
// has been resolved.
func (s *MutexSet) KeyPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyPath
}

// Count returns the number of slots in the set.
func (s *MutexSet) Count() int {
	return s.opts.Count
}

// Created reports whether this process performed the exclusive creation of
// the shared set.
func (s *MutexSet) Created() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Create returns a handle for slot, creating the shared set if no process
// has yet, or attaching to it and waiting for its creator to finish
// initializing otherwise. name is only used in diagnostics.
//
// An attaching process polls at most Options.MaxTries times,
// Options.RetryInterval apart, and fails with ErrInitTimeout after that.
func (s *MutexSet) Create(slot int, name string) (*Mutex, error) {
	target := slotTarget(slot, name)
	if slot < 0 || slot >= s.opts.Count {
		return nil, s.opts.fail("create", target, ErrSlotRange, nil)
	}
	key, err := s.Key()
	if err != nil {
		return nil, err
	}
	created, err := s.backend.create(key, slot, target)
	if err != nil {
		return nil, err
	}
	if created {
		s.mu.Lock()
		s.created = true
		s.mu.Unlock()
	}
	m := &Mutex{slot: slot, name: name}
	m.set.Store(s)
	return m, nil
}

// Stat returns a snapshot of the shared set without creating it. It fails
// with ErrStale when no process has created the set.
func (s *MutexSet) Stat() (SetStat, error) {
	key, err := s.Key()
	if err != nil {
		return SetStat{}, err
	}
	return s.backend.stat(key)
}

// Destroy removes the whole shared set from the OS, for every slot and
// every process. Only call it once all processes have stopped using the set.
func (s *MutexSet) Destroy() error {
	key, err := s.Key()
	if err != nil {
		return err
	}
	return s.backend.destroy(key, -1)
}

// Mutex is a handle to one slot of a MutexSet. Handles are process-local:
// every process resolves its own with MutexSet.Create.
//
// A nil *Mutex, the zero Mutex and a destroyed Mutex are unset; Lock, Unlock
// and Destroy on an unset handle do nothing and return nil. A handle may be
// shared between goroutines, including one that destroys it.
type Mutex struct {
	set  atomic.Pointer[MutexSet]
	slot int
	name string
}

// owner returns the set of the handle, or nil when it is unset.
func (m *Mutex) owner() *MutexSet {
	if m == nil {
		return nil
	}
	return m.set.Load()
}

// Slot returns the slot index of the handle.
func (m *Mutex) Slot() int {
	if m == nil {
		return -1
	}
	return m.slot
}

// Name returns the diagnostic name given to Create.
func (m *Mutex) Name() string {
	if m == nil {
		return ""
	}
	return m.name
}

// Lock blocks until the slot is free and takes it. An interrupted wait is
// returned as an error rather than retried; the error wraps the OS errno.
func (m *Mutex) Lock() error {
	s := m.owner()
	if s == nil {
		return nil
	}
	return s.backend.lock(m.slot, slotTarget(m.slot, m.name))
}

// Unlock frees the slot.
func (m *Mutex) Unlock() error {
	s := m.owner()
	if s == nil {
		return nil
	}
	return s.backend.unlock(m.slot, slotTarget(m.slot, m.name))
}

// Destroy removes the shared object behind the handle and clears it. With
// System V semaphores that is the entire set: every slot in every process.
func (m *Mutex) Destroy() error {
	if m == nil {
		return nil
	}
	s := m.set.Swap(nil)
	if s == nil {
		return nil
	}
	key, err := s.Key()
	if err != nil {
		return err
	}
	return s.backend.destroy(key, m.slot)
}

func slotTarget(slot int, name string) string {
	if name == "" {
		return fmt.Sprintf("slot %d", slot)
	}
	return fmt.Sprintf("slot %d (%s)", slot, name)
}

// Supported reports whether this build has a working semaphore
// implementation. Where it returns false every operation fails with
// ErrUnsupported.
func Supported() bool {
	return supported
}
