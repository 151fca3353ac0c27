// Package canon produces the canonical JSON byte layout used for every
// integrity-pinned artifact: UTF-8 without escaping, object keys sorted,
// two-space indentation and exactly one trailing newline.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON encodes v in canonical form. Maps are emitted with sorted keys by
// encoding/json; structs keep their declared field order.
func JSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical encode: %w", err)
	}
	// Encode already terminates with a single newline.
	return buf.Bytes(), nil
}

// Compact encodes v as compact JSON with sorted keys and no HTML escaping,
// without a trailing newline. Used for wire responses.
func Compact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("compact encode: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
