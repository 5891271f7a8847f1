//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package semmutex

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/retry"
	"golang.org/x/sys/unix"
)

// errNotReady is retried while the creator is still initializing the set.
const errNotReady = errors.ConstError("semaphore set not yet touched by its creator")

// sysvSet backs a MutexSet with one System V semaphore array of
// Options.Count slots. A slot value of 1 is unlocked and 0 is locked.
type sysvSet struct {
	opts *Options

	// mu guards id; creation and the readiness poll run without it
	mu sync.RWMutex
	id int
}

func newMutexBackend(opts *Options) mutexBackend {
	return &sysvSet{opts: opts, id: -1}
}

func (b *sysvSet) ident() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

func (b *sysvSet) create(key Key, slot int, target string) (bool, error) {
	perm := int(b.opts.Perm.Perm())
	id, err := semget(key, b.opts.Count, unix.IPC_CREAT|unix.IPC_EXCL|perm)
	if err == nil {
		for i := 0; i < b.opts.Count; i++ {
			if _, err := semctl(id, i, semSetVal, 1); err != nil {
				return false, b.opts.fail("semctl(SETVAL)", slotTarget(i, ""), ErrCreate, err)
			}
			// lock+unlock sets sem_otime, which attaching peers wait for
			if err := b.semAdd(id, i, -1); err != nil {
				return false, b.opts.fail("lock", slotTarget(i, ""), ErrCreate, err)
			}
			if err := b.semAdd(id, i, 1); err != nil {
				return false, b.opts.fail("unlock", slotTarget(i, ""), ErrCreate, err)
			}
		}
		b.publish(id)
		return true, nil
	}
	if err != unix.EEXIST {
		return false, b.opts.fail("semget", key.String(), ErrCreate, err)
	}

	id, err = semget(key, b.opts.Count, perm)
	if err != nil {
		return false, b.opts.fail("semget", key.String(), ErrCreate, err)
	}
	if err := b.waitReady(id, target); err != nil {
		return false, err
	}
	b.publish(id)
	return false, nil
}

// waitReady polls the set until its creator has touched it, at most
// Options.MaxTries times.
func (b *sysvSet) waitReady(id int, target string) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var ds semidDS
			if err := semstat(id, &ds); err != nil {
				return &OpError{Op: "semctl(IPC_STAT)", Target: target, Kind: ErrCreate, Err: err}
			}
			if ds.otime == 0 {
				return errNotReady
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return err != errNotReady
		},
		Attempts: b.opts.MaxTries,
		Delay:    b.opts.RetryInterval,
		Clock:    b.opts.Clock,
	})
	switch {
	case err == nil:
		return nil
	case retry.IsAttemptsExceeded(err):
		return b.opts.fail("wait for initialization", target, ErrInitTimeout, nil)
	}
	var e *OpError
	if errors.As(err, &e) {
		return b.opts.fail(e.Op, e.Target, e.Kind, e.Err)
	}
	return b.opts.fail("wait for initialization", target, ErrCreate, err)
}

func (b *sysvSet) publish(id int) {
	b.mu.Lock()
	b.id = id
	b.mu.Unlock()
}

func (b *sysvSet) semAdd(id, slot, value int) error {
	return semop(id, []sembuf{{num: uint16(slot), op: int16(value)}})
}

func (b *sysvSet) lock(slot int, target string) error {
	id := b.ident()
	if id < 0 {
		return b.opts.fail("lock", target, ErrStale, nil)
	}
	if err := b.semAdd(id, slot, -1); err != nil {
		return b.opts.fail("lock", target, kindOf(err), err)
	}
	return nil
}

func (b *sysvSet) unlock(slot int, target string) error {
	id := b.ident()
	if id < 0 {
		return b.opts.fail("unlock", target, ErrStale, nil)
	}
	if err := b.semAdd(id, slot, 1); err != nil {
		return b.opts.fail("unlock", target, kindOf(err), err)
	}
	return nil
}

// destroy removes the whole array whatever slot is given. Removal failures
// are reported but not returned: the set is either gone or not ours to
// remove, and the caller cannot act on either.
func (b *sysvSet) destroy(key Key, _ int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.id
	if id < 0 {
		var err error
		if id, err = semget(key, 0, 0); err != nil {
			if err != unix.ENOENT {
				b.opts.fail("semget", key.String(), ErrStale, err)
			}
			return nil
		}
	}
	if err := semrm(id); err != nil && kindOf(err) != ErrStale {
		b.opts.fail("semctl(IPC_RMID)", key.String(), ErrOperation, err)
	}
	b.id = -1
	return nil
}

func (b *sysvSet) stat(key Key) (SetStat, error) {
	id := b.ident()
	if id < 0 {
		var err error
		if id, err = semget(key, 0, 0); err != nil {
			return SetStat{}, b.opts.fail("semget", key.String(), ErrStale, err)
		}
	}
	var ds semidDS
	if err := semstat(id, &ds); err != nil {
		return SetStat{}, b.opts.fail("semctl(IPC_STAT)", key.String(), kindOf(err), err)
	}
	st := SetStat{
		Key:     key,
		ID:      id,
		Count:   b.opts.Count,
		Values:  make([]int, b.opts.Count),
		Waiting: make([]int, b.opts.Count),
	}
	if ds.otime != 0 {
		st.LastOp = time.Unix(ds.otime, 0)
	}
	for i := 0; i < b.opts.Count; i++ {
		v, err := semctl(id, i, semGetVal, 0)
		if err != nil {
			return SetStat{}, b.opts.fail("semctl(GETVAL)", slotTarget(i, ""), kindOf(err), err)
		}
		n, err := semctl(id, i, semGetNCnt, 0)
		if err != nil {
			return SetStat{}, b.opts.fail("semctl(GETNCNT)", slotTarget(i, ""), kindOf(err), err)
		}
		st.Values[i], st.Waiting[i] = v, n
	}
	return st, nil
}
