// Package jsonutil provides a configurable JSON encoding/decoding layer.
// It defaults to encoding/json but can be swapped for github.com/bytedance/sonic
// via UseSonic, so the collection core never pays for a codec it doesn't need
// in tests while still being able to run the fast path in production.
package jsonutil

import (
	"io"

	stdjson "encoding/json"

	"github.com/bytedance/sonic"
)

// Encoder is the interface for streaming JSON encoding.
type Encoder interface {
	Encode(v any) error
}

// Decoder is the interface for streaming JSON decoding.
type Decoder interface {
	Decode(v any) error
}

// Config holds the JSON encoding/decoding functions currently in effect.
type Config struct {
	Marshal   func(v any) ([]byte, error)
	Unmarshal func(data []byte, v any) error
	NewEncoder func(w io.Writer) Encoder
	NewDecoder func(r io.Reader) Decoder
}

func defaultConfig() Config {
	return Config{
		Marshal:   stdjson.Marshal,
		Unmarshal: stdjson.Unmarshal,
		NewEncoder: func(w io.Writer) Encoder {
			return stdjson.NewEncoder(w)
		},
		NewDecoder: func(r io.Reader) Decoder {
			return stdjson.NewDecoder(r)
		},
	}
}

var current = defaultConfig()

// SetConfig overrides the active codec. Not safe to call concurrently
// with Marshal/Unmarshal; call it once during process init.
func SetConfig(c Config) {
	current = c
}

// UseSonic switches the active codec to bytedance/sonic's compatible-mode
// API, which is a drop-in faster encoder/decoder for the document and
// catalog payloads this module moves in bulk.
func UseSonic() {
	api := sonic.ConfigStd
	SetConfig(Config{
		Marshal:   api.Marshal,
		Unmarshal: api.Unmarshal,
		NewEncoder: func(w io.Writer) Encoder {
			return api.NewEncoder(w)
		},
		NewDecoder: func(r io.Reader) Decoder {
			return api.NewDecoder(r)
		},
	})
}

// Marshal encodes v using the active codec.
func Marshal(v any) ([]byte, error) { return current.Marshal(v) }

// Unmarshal decodes data into v using the active codec.
func Unmarshal(data []byte, v any) error { return current.Unmarshal(data, v) }

// NewEncoder returns a streaming encoder using the active codec.
func NewEncoder(w io.Writer) Encoder { return current.NewEncoder(w) }

// NewDecoder returns a streaming decoder using the active codec.
func NewDecoder(r io.Reader) Decoder { return current.NewDecoder(r) }
