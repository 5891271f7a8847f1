package semmutex

import (
	"os"
	"testing"
)

// helperEnv selects a helper mode when the test binary is re-executed as a
// peer process by the cross-process tests.
const helperEnv = "SEMMUTEX_HELPER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode))
	}
	os.Exit(m.Run())
}
