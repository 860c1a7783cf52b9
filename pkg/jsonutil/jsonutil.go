// Package jsonutil wraps github.com/go-json-experiment/json for the Grafana
// API payloads, the JSONL event stream and the checkpoint file.
//
// The v2 semantics differ from encoding/json in two ways that matter here:
// member names match case-sensitively, and `omitempty` does not drop zero
// numbers (use `omitzero`).
//
// Usage:
//
//	body, err := jsonutil.Marshal(ds)
//	err := jsonutil.UnmarshalRead(resp.Body, &ds)
package jsonutil

import (
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// UnmarshalRead decodes a single JSON value read from r into v.
func UnmarshalRead(r io.Reader, v any) error {
	return json.UnmarshalRead(r, v)
}

// Marshal returns the JSON encoding of v. Map keys are sorted.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

// MarshalIndent returns the indented JSON encoding of v.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true), jsontext.WithIndent(indent))
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// Encoder writes one JSON value per line, like encoding/json.Encoder.
type Encoder struct {
	w io.Writer
}

// NewStreamEncoder creates an encoder that writes to w.
func NewStreamEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the JSON encoding of v to the stream, followed by a newline.
func (e *Encoder) Encode(v any) error {
	if err := json.MarshalWrite(e.w, v, json.Deterministic(true)); err != nil {
		return err
	}
	_, err := e.w.Write([]byte{'\n'})
	return err
}
