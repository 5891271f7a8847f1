//go:build linux

package semmutex

import (
	"os"

	"golang.org/x/sys/unix"
)

// shmi is a System V shared memory segment attached to this process.
type shmi struct {
	id   int
	data []byte
}

func attachShm(key Key, size int, perm os.FileMode, create bool) (*shmi, error) {
	flag := int(perm.Perm())
	if create {
		flag |= unix.IPC_CREAT
	}
	id, err := unix.SysvShmGet(int(key), size, flag)
	if err != nil {
		return nil, err
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, err
	}
	return &shmi{id: id, data: data}, nil
}

func (o *shmi) close() error {
	return unix.SysvShmDetach(o.data)
}

func (o *shmi) remove() error {
	_, err := unix.SysvShmCtl(o.id, unix.IPC_RMID, nil)
	return err
}
