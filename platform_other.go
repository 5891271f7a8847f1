//go:build !windows && !(linux && (amd64 || arm64 || riscv64 || loong64))

package semmutex

const supported = false

// unsupportedSet is compiled in where neither System V semaphores nor
// native mutex objects are wired up. Every operation fails with
// ErrUnsupported.
type unsupportedSet struct {
	opts *Options
}

func newMutexBackend(opts *Options) mutexBackend {
	return unsupportedSet{opts: opts}
}

func (u unsupportedSet) create(_ Key, _ int, target string) (bool, error) {
	return false, u.opts.fail("create", target, ErrUnsupported, nil)
}

func (u unsupportedSet) lock(_ int, target string) error {
	return u.opts.fail("lock", target, ErrUnsupported, nil)
}

func (u unsupportedSet) unlock(_ int, target string) error {
	return u.opts.fail("unlock", target, ErrUnsupported, nil)
}

func (u unsupportedSet) destroy(key Key, _ int) error {
	return u.opts.fail("destroy", key.String(), ErrUnsupported, nil)
}

func (u unsupportedSet) stat(key Key) (SetStat, error) {
	return SetStat{}, u.opts.fail("stat", key.String(), ErrUnsupported, nil)
}

func openRefBackend(key Key, opts *Options) (refBackend, bool, error) {
	return nil, false, opts.fail("semget", key.String(), ErrUnsupported, nil)
}

func inspectRef(key Key, opts *Options) (RefStat, error) {
	return RefStat{}, opts.fail("stat", key.String(), ErrUnsupported, nil)
}
