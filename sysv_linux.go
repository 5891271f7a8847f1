//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package semmutex

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// semctl commands and semop flags missing from x/sys/unix.
const (
	semGetVal  = 12
	semGetNCnt = 14
	semSetVal  = 16

	semUndo = 0x1000
)

const supported = true

// sembuf mirrors struct sembuf.
type sembuf struct {
	num uint16
	op  int16
	flg int16
}

// semidDS covers struct semid64_ds on the 64-bit architectures this file is
// built for. sem_otime follows the 48-byte ipc64_perm on all of them; the
// tail is sized for the largest layout (amd64).
type semidDS struct {
	perm  [48]byte
	otime int64
	_     [56]byte
}

func semget(key Key, nsems, flags int) (int, error) {
	id, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), uintptr(nsems), uintptr(flags))
	if errno != 0 {
		return -1, errno
	}
	return int(id), nil
}

func semop(id int, ops []sembuf) error {
	_, _, errno := unix.Syscall(unix.SYS_SEMOP, uintptr(id), uintptr(unsafe.Pointer(&ops[0])), uintptr(len(ops)))
	if errno != 0 {
		return errno
	}
	return nil
}

// semopRetry repeats semop until it completes or fails with anything other
// than EINTR.
func semopRetry(id int, ops []sembuf) error {
	for {
		err := semop(id, ops)
		if err != unix.EINTR {
			return err
		}
	}
}

// semctl issues a command whose argument is an integer (or unused).
func semctl(id, num, cmd, val int) (int, error) {
	r, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), uintptr(num), uintptr(cmd), uintptr(val), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}

func semstat(id int, ds *semidDS) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), 0, uintptr(unix.IPC_STAT), uintptr(unsafe.Pointer(ds)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semrm(id int) error {
	_, err := semctl(id, 0, unix.IPC_RMID, 0)
	return err
}

// kindOf classifies a failed semaphore call: a removed or unknown
// identifier is stale, anything else is an operation failure.
func kindOf(err error) error {
	if err == unix.EIDRM || err == unix.EINVAL {
		return ErrStale
	}
	return ErrOperation
}
