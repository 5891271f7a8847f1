package semmutex

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackSerializer encodes records with MessagePack.
type MsgpackSerializer struct{}

func (ms MsgpackSerializer) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (ms MsgpackSerializer) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
