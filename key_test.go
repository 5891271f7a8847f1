package semmutex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func deriveOrSkip(t *testing.T, path string, tag byte) Key {
	t.Helper()
	key, err := DeriveKey(path, tag)
	if err == ErrUnsupported {
		t.Skip("key derivation not supported on this platform")
	}
	require.NoError(t, err)
	return key
}

func TestDeriveKeyIsStable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	key := deriveOrSkip(t, dir, DefaultTag)
	assert.Equal(t, key, deriveOrSkip(t, dir, DefaultTag))
	assert.Equal(t, uint32(DefaultTag), uint32(key)>>24)

	other := deriveOrSkip(t, dir, 'q')
	assert.NotEqual(t, key, other)
	assert.Equal(t, uint32(key)&0xffffff, uint32(other)&0xffffff)
}

func TestDeriveKeyDistinguishesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, nil, 0o600))
	require.NoError(t, os.WriteFile(b, nil, 0o600))

	assert.NotEqual(t, deriveOrSkip(t, a, DefaultTag), deriveOrSkip(t, b, DefaultTag))
}

func TestMakeKeyMatchesFtok(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key(0x7a0312cd), makeKey('z', 0x10003, 0xa12cd))
	assert.Equal(t, "0x7a0312cd", Key(0x7a0312cd).String())
}

func TestResolveKeyFallsBack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := deriveOrSkip(t, dir, DefaultTag)
	primary := filepath.Join(dir, "missing", "app.conf")

	rep := &mockReporter{}
	rep.On("Report", "ftok", primary, mock.Anything).Once()

	got, path, err := ResolveKey(primary, dir, DefaultTag, rep)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, dir, path)
	rep.AssertExpectations(t)
}

func TestResolveKeyPrefersPrimary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	primary := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(primary, nil, 0o600))
	want := deriveOrSkip(t, primary, DefaultTag)

	got, path, err := ResolveKey(primary, dir, DefaultTag, &mockReporter{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, primary, path)
}

func TestResolveKeyEmptyPrimaryUsesFallbackSilently(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := deriveOrSkip(t, dir, DefaultTag)

	got, path, err := ResolveKey("", dir, DefaultTag, &mockReporter{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, dir, path)
}

func TestResolveKeyBothPathsFail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	deriveOrSkip(t, dir, DefaultTag)
	primary := filepath.Join(dir, "missing")
	fallback := filepath.Join(dir, "also-missing")

	rep := &mockReporter{}
	rep.On("Report", "ftok", primary, mock.Anything).Once()
	rep.On("Report", "ftok", fallback, mock.Anything).Once()

	_, _, err := ResolveKey(primary, fallback, DefaultTag, rep)
	require.ErrorIs(t, err, ErrKeyDerivation)
	assert.True(t, os.IsNotExist(err.(*OpError).Err))
	rep.AssertExpectations(t)
}
