package semmutex

import (
	"os"
	"time"

	"github.com/juju/clock"
)

const (
	// DefaultMutexCount is the number of slots in a mutex set. Peers must
	// agree on it: a set created with one count cannot be attached with
	// another.
	DefaultMutexCount = 16

	// DefaultTag is the project byte mixed into every derived key.
	DefaultTag byte = 'z'

	// DefaultFallbackPath is used when the configured key path is unusable.
	DefaultFallbackPath = "."

	// DefaultMaxTries bounds how many times an attaching process polls for
	// the creator to finish initialization.
	DefaultMaxTries = 10

	// DefaultRetryInterval is the sleep between initialization polls.
	DefaultRetryInterval = time.Second

	// DefaultMaxAcquire is the gate capacity of a refcounted semaphore.
	DefaultMaxAcquire = 1

	// DefaultPerm is the permission mode of created IPC objects.
	DefaultPerm os.FileMode = 0o666
)

// Options configures key derivation, the mutex set layout, the
// initialization wait and diagnostics. The zero value is usable; zero fields
// take the Default* values.
type Options struct {
	// KeyPath is the primary path the IPC key is derived from, typically the
	// application's configuration file. Empty means use FallbackPath directly.
	KeyPath string

	// FallbackPath is tried when KeyPath cannot be stat'ed.
	FallbackPath string

	// Tag is the project byte of the key.
	Tag byte

	// Count is the number of slots in a mutex set.
	Count int

	// Perm is the permission mode of created IPC objects.
	Perm os.FileMode

	// MaxTries bounds the initialization wait of an attaching process.
	MaxTries int

	// RetryInterval is the sleep between initialization polls.
	RetryInterval time.Duration

	// MaxAcquire is the gate value a refcounted semaphore is initialized to
	// by its first user.
	MaxAcquire int

	// Reporter receives a message for every failure. Nil means a LogReporter
	// over the global zerolog logger.
	Reporter Reporter

	// Clock times the initialization poll. Nil means the wall clock.
	Clock clock.Clock
}

func (o Options) withDefaults() Options {
	if o.FallbackPath == "" {
		o.FallbackPath = DefaultFallbackPath
	}
	if o.Tag == 0 {
		o.Tag = DefaultTag
	}
	if o.Count <= 0 {
		o.Count = DefaultMutexCount
	}
	if o.Perm == 0 {
		o.Perm = DefaultPerm
	}
	if o.MaxTries <= 0 {
		o.MaxTries = DefaultMaxTries
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.MaxAcquire <= 0 {
		o.MaxAcquire = DefaultMaxAcquire
	}
	if o.Reporter == nil {
		o.Reporter = defaultReporter()
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	return o
}

// fail builds an *OpError and hands it to the reporter before returning it.
func (o *Options) fail(op, target string, kind, err error) error {
	e := &OpError{Op: op, Target: target, Kind: kind, Err: err}
	o.Reporter.Report(op, target, e)
	return e
}
