//go:build windows

package semmutex

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"
)

// nativeRef backs a RefSemaphore with a named kernel mutex. The kernel's
// handle count plays the part of the usage counter: the object is deleted
// when the last process closes its handle, including on process exit.
type nativeRef struct {
	opts   *Options
	key    Key
	h      windows.Handle
	target string
}

func openRefBackend(key Key, opts *Options) (refBackend, bool, error) {
	if opts.MaxAcquire != 1 {
		return nil, false, opts.fail("CreateMutex", key.String(), ErrUnsupported,
			fmt.Errorf("gate capacity %d", opts.MaxAcquire))
	}
	h, created, err := openMutex(objectName("sem", key, -1))
	if err != nil {
		return nil, false, opts.fail("CreateMutex", key.String(), ErrCreate, err)
	}
	return &nativeRef{opts: opts, key: key, h: h, target: key.String()}, created, nil
}

func (b *nativeRef) acquire() error {
	runtime.LockOSThread()
	ev, err := windows.WaitForSingleObject(b.h, windows.INFINITE)
	if ev != windows.WAIT_OBJECT_0 {
		runtime.UnlockOSThread()
		if err == nil {
			err = fmt.Errorf("wait returned 0x%x", ev)
		}
		return b.opts.fail("acquire", b.target, ErrOperation, err)
	}
	return nil
}

func (b *nativeRef) release() error {
	if err := windows.ReleaseMutex(b.h); err != nil {
		return b.opts.fail("release", b.target, ErrOperation, err)
	}
	runtime.UnlockOSThread()
	return nil
}

func (b *nativeRef) remove() error {
	if err := windows.CloseHandle(b.h); err != nil {
		return b.opts.fail("remove", b.target, ErrStale, err)
	}
	return nil
}

func (b *nativeRef) stat() (RefStat, error) {
	return RefStat{}, b.opts.fail("stat", b.target, ErrUnsupported, nil)
}

func inspectRef(key Key, opts *Options) (RefStat, error) {
	return RefStat{}, opts.fail("stat", key.String(), ErrUnsupported, nil)
}
