package semmutex

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Serializer defines the interface for record encoding and decoding.
// The default implementation uses MessagePack for compact binary records.
type Serializer interface {
	// Marshal encodes a Go value to bytes.
	Marshal(v interface{}) ([]byte, error)

	// Unmarshal decodes bytes into a Go value.
	Unmarshal(data []byte, v interface{}) error
}

// Reporter is the diagnostic sink. It is called once for every failure with
// the operation, the slot or identifier it concerned and the error, which
// carries the OS error text. Reporters must not block.
type Reporter interface {
	Report(op, target string, err error)
}

// LogReporter writes failures to a zerolog logger at error level.
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) Report(op, target string, err error) {
	r.Logger.Error().Err(err).Str("op", op).Str("target", target).Msg("semaphore failure")
}

// NopReporter discards all failures.
type NopReporter struct{}

func (NopReporter) Report(string, string, error) {}

func defaultReporter() Reporter {
	return LogReporter{Logger: log.Logger}
}
