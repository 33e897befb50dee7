// Package envelope extracts JSON values out of free-form LLM text.
//
// Models frequently wrap the JSON they were asked for in prose, markdown
// fences, or trailing commentary. Rather than demanding a clean response,
// every structured-output consumer in the engine isolates the widest
// plausible JSON span — first '{' to last '}' for objects, first '[' to last
// ']' for arrays — and unmarshals that. Extraction is deliberately permissive
// about the surrounding text and strict about the payload: if the isolated
// span is not valid JSON for the destination type, the whole extraction
// fails.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoEnvelope is returned when the text contains no candidate JSON span of
// the requested shape.
var ErrNoEnvelope = errors.New("envelope: no JSON payload found")

// Object isolates the substring from the first '{' to the last '}' in text
// and unmarshals it into dst. Returns ErrNoEnvelope when no such span exists.
func Object(text string, dst any) error {
	return extract(text, '{', '}', dst)
}

// Array isolates the substring from the first '[' to the last ']' in text
// and unmarshals it into dst. Returns ErrNoEnvelope when no such span exists.
func Array(text string, dst any) error {
	return extract(text, '[', ']', dst)
}

func extract(text string, open, close byte, dst any) error {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end < start {
		return ErrNoEnvelope
	}
	raw := text[start : end+1]
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("envelope: unmarshal isolated span: %w", err)
	}
	return nil
}
