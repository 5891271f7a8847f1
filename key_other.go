//go:build !unix && !windows

package semmutex

func deriveKey(path string, tag byte) (Key, error) {
	return 0, ErrUnsupported
}
