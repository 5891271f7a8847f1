package semmutex

import "fmt"

// Key identifies a shared IPC object. Every process that derives the same
// key from the same file operates on the same object.
type Key uint32

func (k Key) String() string {
	return fmt.Sprintf("0x%08x", uint32(k))
}

// makeKey combines a project tag with a file's device and inode numbers the
// way ftok(3) does, so keys agree with C peers using ftok on the same path.
func makeKey(tag byte, dev, ino uint64) Key {
	return Key(uint32(tag)<<24 | uint32(dev&0xff)<<16 | uint32(ino&0xffff))
}

// DeriveKey maps path and tag to an IPC key. The path must exist.
func DeriveKey(path string, tag byte) (Key, error) {
	return deriveKey(path, tag)
}

// ResolveKey derives a key from primary, falling back to fallback when the
// primary path is empty or unusable. It returns the key and the path that
// produced it. Failure of both paths is an ErrKeyDerivation.
func ResolveKey(primary, fallback string, tag byte, r Reporter) (Key, string, error) {
	if r == nil {
		r = defaultReporter()
	}
	if primary != "" {
		key, err := deriveKey(primary, tag)
		if err == nil {
			return key, primary, nil
		}
		r.Report("ftok", primary, &OpError{Op: "ftok", Target: primary, Kind: ErrKeyDerivation, Err: err})
	}
	key, err := deriveKey(fallback, tag)
	if err != nil {
		e := &OpError{Op: "ftok", Target: fallback, Kind: ErrKeyDerivation, Err: err}
		r.Report("ftok", fallback, e)
		return 0, "", e
	}
	return key, fallback, nil
}

func (o *Options) resolveKey(primary string) (Key, string, error) {
	return ResolveKey(primary, o.FallbackPath, o.Tag, o.Reporter)
}
