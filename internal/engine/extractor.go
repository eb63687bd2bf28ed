package engine

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNoPayloadFound means the output contains no '{' at all
	ErrNoPayloadFound = errors.New("no JSON payload found in engine output")
	// ErrMalformedJSON means a '{' was found but the text from there on is not valid JSON
	ErrMalformedJSON = errors.New("malformed JSON payload in engine output")
)

// Payload is the engine's JSON object, passed through verbatim.
type Payload = json.RawMessage

// ExtractionError carries the raw engine output alongside the failure kind.
type ExtractionError struct {
	Err error
	Raw string
}

func (e *ExtractionError) Error() string {
	return e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// LocatePayload returns the text starting at the first '{' in raw.
func LocatePayload(raw string) (string, error) {
	i := strings.IndexByte(raw, '{')
	if i < 0 {
		return "", &ExtractionError{Err: ErrNoPayloadFound, Raw: raw}
	}
	return raw[i:], nil
}

// SanitizePayload replaces every literal NaN token with null. Engines emit NaN for
// floating-point not-a-number values, which is not valid JSON. The substitution is
// literal and also applies inside strings.
func SanitizePayload(s string) string {
	return strings.ReplaceAll(s, "NaN", "null")
}

// ParsePayload validates s as a single JSON value, ignoring surrounding whitespace.
func ParsePayload(s string) (Payload, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return nil, &ExtractionError{Err: ErrMalformedJSON, Raw: s}
	}
	return Payload(trimmed), nil
}

// ExtractPayload runs locate, sanitize and parse over raw engine output.
// Errors are *ExtractionError carrying the untouched raw text.
func ExtractPayload(raw string) (Payload, error) {
	located, err := LocatePayload(raw)
	if err != nil {
		return nil, err
	}
	payload, err := ParsePayload(SanitizePayload(located))
	if err != nil {
		return nil, &ExtractionError{Err: ErrMalformedJSON, Raw: raw}
	}
	return payload, nil
}
