//go:build windows

package semmutex

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/windows"
)

const supported = true

// nativeSet backs a MutexSet with one named kernel mutex per slot. Creation
// is idempotent at the OS level, so there is no initialization race to wait
// out. Kernel mutexes are owned by a thread, so the goroutine that locks is
// pinned to its thread until it unlocks.
type nativeSet struct {
	opts *Options

	mu      sync.Mutex
	handles map[int]windows.Handle
}

func newMutexBackend(opts *Options) mutexBackend {
	return &nativeSet{opts: opts, handles: make(map[int]windows.Handle)}
}

func objectName(kind string, key Key, slot int) string {
	if slot < 0 {
		return fmt.Sprintf(`Local\semmutex-%s-%08x`, kind, uint32(key))
	}
	return fmt.Sprintf(`Local\semmutex-%s-%08x-%d`, kind, uint32(key), slot)
}

// openMutex creates or opens a named mutex and reports whether it was
// created by this call.
func openMutex(name string) (windows.Handle, bool, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, false, err
	}
	h, err := windows.CreateMutex(nil, false, p)
	if err == windows.ERROR_ALREADY_EXISTS {
		return h, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return h, true, nil
}

func (b *nativeSet) handle(slot int) (windows.Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.handles[slot]
	return h, ok
}

func (b *nativeSet) create(key Key, slot int, target string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handles[slot]; ok {
		return false, nil
	}
	h, created, err := openMutex(objectName("set", key, slot))
	if err != nil {
		return false, b.opts.fail("CreateMutex", target, ErrCreate, err)
	}
	b.handles[slot] = h
	return created, nil
}

func (b *nativeSet) lock(slot int, target string) error {
	h, ok := b.handle(slot)
	if !ok {
		return b.opts.fail("lock", target, ErrStale, nil)
	}
	runtime.LockOSThread()
	ev, err := windows.WaitForSingleObject(h, windows.INFINITE)
	if ev != windows.WAIT_OBJECT_0 {
		runtime.UnlockOSThread()
		if err == nil {
			err = fmt.Errorf("wait returned 0x%x", ev)
		}
		return b.opts.fail("lock", target, ErrOperation, err)
	}
	return nil
}

func (b *nativeSet) unlock(slot int, target string) error {
	h, ok := b.handle(slot)
	if !ok {
		return b.opts.fail("unlock", target, ErrStale, nil)
	}
	err := windows.ReleaseMutex(h)
	if err != nil {
		return b.opts.fail("unlock", target, ErrOperation, err)
	}
	runtime.UnlockOSThread()
	return nil
}

// destroy closes this process's handle. The kernel deletes the object once
// every process has closed it.
func (b *nativeSet) destroy(key Key, slot int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s, h := range b.handles {
		if slot >= 0 && s != slot {
			continue
		}
		if err := windows.CloseHandle(h); err != nil {
			b.opts.fail("CloseHandle", slotTarget(s, ""), ErrOperation, err)
		}
		delete(b.handles, s)
	}
	return nil
}

func (b *nativeSet) stat(key Key) (SetStat, error) {
	return SetStat{}, b.opts.fail("stat", key.String(), ErrUnsupported, nil)
}
