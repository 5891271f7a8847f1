package main

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/richinsley/semmutex"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetConfig starts a test from the flag defaults, as a fresh command
// invocation would.
func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	require.NoError(t, viper.BindPFlags(rootCmd.PersistentFlags()))
}

func TestOptionsDefaults(t *testing.T) {
	resetConfig(t)

	o, err := options()
	require.NoError(t, err)
	assert.Empty(t, o.KeyPath)
	assert.Equal(t, semmutex.DefaultFallbackPath, o.FallbackPath)
	assert.Equal(t, semmutex.DefaultTag, o.Tag)
	assert.Equal(t, semmutex.DefaultMutexCount, o.Count)
	assert.Equal(t, semmutex.DefaultMaxTries, o.MaxTries)
	assert.Equal(t, semmutex.DefaultRetryInterval, o.RetryInterval)
	assert.Equal(t, semmutex.DefaultMaxAcquire, o.MaxAcquire)
}

func TestOptionsFromConfig(t *testing.T) {
	resetConfig(t)

	viper.Set("key-path", "/etc/app.conf")
	viper.Set("fallback-path", "/tmp")
	viper.Set("tag", "q")
	viper.Set("count", 4)
	viper.Set("max-tries", 3)
	viper.Set("retry-interval", "250ms")
	viper.Set("max-acquire", 2)

	o, err := options()
	require.NoError(t, err)
	assert.Equal(t, "/etc/app.conf", o.KeyPath)
	assert.Equal(t, "/tmp", o.FallbackPath)
	assert.Equal(t, byte('q'), o.Tag)
	assert.Equal(t, 4, o.Count)
	assert.Equal(t, 3, o.MaxTries)
	assert.Equal(t, 250*time.Millisecond, o.RetryInterval)
	assert.Equal(t, 2, o.MaxAcquire)
	assert.IsType(t, semmutex.LogReporter{}, o.Reporter)
}

func TestOptionsRejectsLongTag(t *testing.T) {
	resetConfig(t)

	viper.Set("tag", "zz")
	_, err := options()
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestOptionsFromEnvironment(t *testing.T) {
	resetConfig(t)

	t.Setenv("SEMCTL_MAX_TRIES", "7")
	initConfig()

	o, err := options()
	require.NoError(t, err)
	assert.Equal(t, 7, o.MaxTries)
	assert.Equal(t, semmutex.DefaultTag, o.Tag)
}
