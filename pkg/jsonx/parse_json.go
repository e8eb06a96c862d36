// Package jsonx provides strict JSON decoding for external,
// schema-defined JSON payloads: the triage script's backtrace output.
// The --output-format=json report writer encodes with encoding/json
// directly and does not use this package.
package jsonx

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParseJSONObject decodes exactly one JSON value from src into dst,
// rejecting unknown object fields so a schema drift in an external
// producer (the gdb-side triage script) surfaces as a decode error
// instead of silently dropping fields.
//
// - Malformed JSON (bad tokens, empty/unterminated/truncated) => *json.SyntaxError, io.EOF, io.ErrUnexpectedEOF
// - Incorrect data type (field/value mismatch) => *json.UnmarshalTypeError
// - Unknown object fields => error("json: unknown field \"...\"") from encoding/json (no dedicated error type)
func ParseJSONObject[T any](src io.Reader, dst *T) error {
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("jsonx: decode: %w", err)
	}
	return nil
}

// ParseJSONString is a convenience wrapper over ParseJSONObject for
// callers already holding the payload as a string (the common case
// after marker extraction).
func ParseJSONString[T any](src string, dst *T) error {
	return ParseJSONObject(strings.NewReader(src), dst)
}
