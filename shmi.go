package semmutex

import (
	"fmt"
	"io"
	"os"
	"unsafe"
)

// SharedMemory is a shared memory segment keyed by a path, the typical
// resource a mutex slot guards. It implements io.ReaderAt and io.WriterAt.
// It does no locking of its own.
//
// Example:
//
//	shm, _ := semmutex.CreateSharedMemory("/etc/app.conf", 4096, semmutex.Options{})
//	defer shm.Close()
//
//	mu.Lock()
//	counters := shm.GetUint64Slice(0)
//	counters[0]++
//	mu.Unlock()
type SharedMemory struct {
	// m is the platform-specific shared memory implementation
	m *shmi

	// Path is the path the key was derived from.
	Path string

	// Key is the IPC key of the segment.
	Key Key
}

// CreateSharedMemory creates the segment keyed by path, or opens it when it
// already exists. size is in bytes.
func CreateSharedMemory(path string, size int, opts Options) (*SharedMemory, error) {
	return openSharedMemory(path, size, opts, true)
}

// OpenSharedMemory opens an existing segment keyed by path. size must not
// exceed the size it was created with.
func OpenSharedMemory(path string, size int, opts Options) (*SharedMemory, error) {
	return openSharedMemory(path, size, opts, false)
}

func openSharedMemory(path string, size int, opts Options, create bool) (*SharedMemory, error) {
	o := opts.withDefaults()
	key, keyPath, err := o.resolveKey(path)
	if err != nil {
		return nil, err
	}
	m, err := attachShm(key, size, o.Perm, create)
	if err != nil {
		kind := error(ErrCreate)
		if err == ErrUnsupported {
			kind = ErrUnsupported
		}
		return nil, o.fail("shmget", key.String(), kind, err)
	}
	return &SharedMemory{m: m, Path: keyPath, Key: key}, nil
}

// GetSize returns the size of the segment in bytes, or 0 once closed.
func (o *SharedMemory) GetSize() int {
	if o.m == nil {
		return 0
	}
	return len(o.m.data)
}

// Close detaches the segment from this process. The segment itself lives on
// until Remove.
func (o *SharedMemory) Close() (err error) {
	if o.m != nil {
		err = o.m.close()
		if err == nil {
			o.m = nil
		}
	}
	return err
}

// Remove marks the segment for deletion; the OS frees it once every process
// has detached.
func (o *SharedMemory) Remove() error {
	if o.m == nil {
		return nil
	}
	return o.m.remove()
}

// ReadAt reads len(p) bytes from the segment starting at offset off.
func (o *SharedMemory) ReadAt(p []byte, off int64) (n int, err error) {
	if o.m == nil {
		return 0, os.ErrClosed
	}
	if off < 0 || off >= int64(len(o.m.data)) {
		return 0, io.EOF
	}
	n = copy(p, o.m.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return n, err
}

// WriteAt writes len(p) bytes to the segment starting at offset off.
func (o *SharedMemory) WriteAt(p []byte, off int64) (n int, err error) {
	if o.m == nil {
		return 0, os.ErrClosed
	}
	if off < 0 || off+int64(len(p)) > int64(len(o.m.data)) {
		return 0, fmt.Errorf("write of %d bytes at %d outside segment of %d bytes", len(p), off, len(o.m.data))
	}
	return copy(o.m.data[off:], p), nil
}

// GetTypedSlice returns a typed slice view of the segment starting at
// offset. Changes to the slice are immediately visible to other processes.
// It returns nil for a closed segment or an offset outside it.
//
// Warning: The returned slice is only valid while the segment is attached.
// Using it after Close results in undefined behavior.
func GetTypedSlice[T any](shm *SharedMemory, offset int) []T {
	if shm.m == nil || offset < 0 || offset >= len(shm.m.data) {
		return nil
	}
	elementSize := int(unsafe.Sizeof(*new(T)))
	numElements := (len(shm.m.data) - offset) / elementSize
	if numElements <= 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&shm.m.data[offset])), numElements)
}

// GetUint64Slice returns a uint64 slice view of the segment at offset.
func (o *SharedMemory) GetUint64Slice(offset int) []uint64 {
	return GetTypedSlice[uint64](o, offset)
}

// GetByteSlice returns a byte slice view of the segment at offset.
func (o *SharedMemory) GetByteSlice(offset int) []byte {
	return GetTypedSlice[byte](o, offset)
}
