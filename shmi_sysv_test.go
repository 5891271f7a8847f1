//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package semmutex

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedMemory(t *testing.T) {
	t.Parallel()

	keyPath := newKeyPath(t)
	opts := helperOptions(keyPath)

	shm, err := CreateSharedMemory(keyPath, 64, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = shm.Remove()
		_ = shm.Close()
	})
	assert.Equal(t, 64, shm.GetSize())
	assert.Equal(t, keyPath, shm.Path)

	n, err := shm.WriteAt([]byte("hello"), 8)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	view, err := OpenSharedMemory(keyPath, 64, opts)
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = view.ReadAt(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	words := view.GetUint64Slice(16)
	assert.Len(t, words, 6)
	words[0] = 42
	assert.Equal(t, uint64(42), shm.GetUint64Slice(16)[0])
	assert.Len(t, shm.GetByteSlice(60), 4)
	assert.Nil(t, shm.GetByteSlice(64))
	assert.Nil(t, shm.GetUint64Slice(-8))
	require.NoError(t, view.Close())

	// a closed view is inert; the segment itself is untouched
	assert.Equal(t, 0, view.GetSize())
	assert.Nil(t, view.GetUint64Slice(0))
	_, err = view.ReadAt(buf, 0)
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = view.WriteAt(buf, 0)
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, view.Close())
	assert.Equal(t, 64, shm.GetSize())

	_, err = shm.WriteAt(make([]byte, 8), 60)
	assert.Error(t, err)

	n, err = shm.ReadAt(make([]byte, 8), 60)
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = shm.ReadAt(buf, 64)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenSharedMemoryMissing(t *testing.T) {
	t.Parallel()

	keyPath := newKeyPath(t)
	_, err := OpenSharedMemory(keyPath, 64, helperOptions(keyPath))
	assert.ErrorIs(t, err, ErrCreate)
}
