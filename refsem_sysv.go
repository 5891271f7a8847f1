//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package semmutex

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Slots of a refcounted semaphore group. The gate is the semaphore proper,
// the usage slot counts attached processes and the guard serializes reading
// the usage count against setting the gate. The guard is taken by waiting
// for zero and incrementing, so it reads 0 when free.
const (
	refGate  = 0
	refUsage = 1
	refGuard = 2
	refSlots = 3
)

// Every operation on the group is SEM_UNDO so the kernel reverts the usage
// count and any held gate of a process that dies.
var (
	takeGuardAndAttach = []sembuf{
		{num: refGuard, op: 0},
		{num: refGuard, op: 1, flg: semUndo},
		{num: refUsage, op: 1, flg: semUndo},
	}
	takeGuardAndDetach = []sembuf{
		{num: refGuard, op: 0},
		{num: refGuard, op: 1, flg: semUndo},
		{num: refUsage, op: -1, flg: semUndo},
	}
	dropGuard = []sembuf{{num: refGuard, op: -1, flg: semUndo}}
)

type sysvRef struct {
	opts   *Options
	key    Key
	id     int
	target string
	rmid   func(id int) error
}

func openRefBackend(key Key, opts *Options) (refBackend, bool, error) {
	id, err := semget(key, refSlots, unix.IPC_CREAT|int(opts.Perm.Perm()))
	if err != nil {
		return nil, false, opts.fail("semget", key.String(), ErrCreate, err)
	}
	b := &sysvRef{opts: opts, key: key, id: id, target: fmt.Sprintf("%s (id %d)", key, id), rmid: semrm}
	return b, b.attach(), nil
}

// attach registers this process as a user and, when it is the only one,
// sets the gate capacity. Failures are reported and the handshake carries
// on, so a partially initialized group still yields a handle.
func (b *sysvRef) attach() bool {
	if err := semopRetry(b.id, takeGuardAndAttach); err != nil {
		b.opts.fail("acquire guard", b.target, kindOf(err), err)
		return false
	}

	initialized := false
	count, err := semctl(b.id, refUsage, semGetVal, 0)
	if err != nil {
		b.opts.fail("semctl(GETVAL)", b.target, kindOf(err), err)
	}
	if count == 1 {
		if _, err := semctl(b.id, refGate, semSetVal, b.opts.MaxAcquire); err != nil {
			b.opts.fail("semctl(SETVAL)", b.target, kindOf(err), err)
		} else {
			initialized = true
		}
	}

	if err := semopRetry(b.id, dropGuard); err != nil {
		b.opts.fail("release guard", b.target, kindOf(err), err)
	}
	return initialized
}

func (b *sysvRef) gateOp(op string, delta int16) error {
	if err := semopRetry(b.id, []sembuf{{num: refGate, op: delta, flg: semUndo}}); err != nil {
		return b.opts.fail(op, b.target, kindOf(err), err)
	}
	return nil
}

func (b *sysvRef) acquire() error {
	return b.gateOp("acquire", -1)
}

func (b *sysvRef) release() error {
	return b.gateOp("release", 1)
}

func (b *sysvRef) remove() error {
	if err := semopRetry(b.id, takeGuardAndDetach); err != nil {
		return b.opts.fail("remove", b.target, kindOf(err), err)
	}

	var ds semidDS
	if err := semstat(b.id, &ds); err != nil {
		_ = semopRetry(b.id, dropGuard)
		return b.opts.fail("semctl(IPC_STAT)", b.target, ErrStale, err)
	}

	count, err := semctl(b.id, refUsage, semGetVal, 0)
	if err != nil {
		_ = semopRetry(b.id, dropGuard)
		return b.opts.fail("semctl(GETVAL)", b.target, kindOf(err), err)
	}
	if count > 0 {
		if err := semopRetry(b.id, dropGuard); err != nil {
			return b.opts.fail("release guard", b.target, kindOf(err), err)
		}
		return nil
	}

	// a group this process may not remove (EPERM) stays usable for others
	if err := b.rmid(b.id); err != nil {
		_ = semopRetry(b.id, dropGuard)
		return b.opts.fail("semctl(IPC_RMID)", b.target, kindOf(err), err)
	}
	return nil
}

func (b *sysvRef) stat() (RefStat, error) {
	return statRef(b.key, b.id, b.opts)
}

func inspectRef(key Key, opts *Options) (RefStat, error) {
	id, err := semget(key, 0, 0)
	if err != nil {
		return RefStat{}, opts.fail("semget", key.String(), ErrStale, err)
	}
	return statRef(key, id, opts)
}

func statRef(key Key, id int, opts *Options) (RefStat, error) {
	gate, err := semctl(id, refGate, semGetVal, 0)
	if err != nil {
		return RefStat{}, opts.fail("semctl(GETVAL)", key.String(), kindOf(err), err)
	}
	usage, err := semctl(id, refUsage, semGetVal, 0)
	if err != nil {
		return RefStat{}, opts.fail("semctl(GETVAL)", key.String(), kindOf(err), err)
	}
	return RefStat{Key: key, ID: id, Gate: gate, Usage: usage}, nil
}
