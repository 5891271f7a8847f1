//go:build !linux

package semmutex

import "os"

// shmi is a stub for platforms without System V shared memory support.
// All operations return ErrUnsupported.
type shmi struct {
	data []byte
}

func attachShm(key Key, size int, perm os.FileMode, create bool) (*shmi, error) {
	return nil, ErrUnsupported
}

func (o *shmi) close() error {
	return ErrUnsupported
}

func (o *shmi) remove() error {
	return ErrUnsupported
}
