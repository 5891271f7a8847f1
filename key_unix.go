//go:build unix

package semmutex

import "golang.org/x/sys/unix"

func deriveKey(path string, tag byte) (Key, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	return makeKey(tag, uint64(st.Dev), uint64(st.Ino)), nil
}
