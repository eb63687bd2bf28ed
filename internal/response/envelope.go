// Package response writes the uniform JSON envelope returned by every endpoint
// and maps the error taxonomy onto HTTP status codes.
//
// Success: {"success": true, ...fields}
// Failure: {"success": false, "error": message, "code": kind, "details"?: ...}
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// Kind classifies a request failure.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindMethodNotAllowed Kind = "method_not_allowed"
	KindConflict         Kind = "conflict"
	KindEngineFailed     Kind = "engine_failed"
	KindParseFailed      Kind = "parse_failed"
	KindLogicallyFailed  Kind = "logically_failed"
	KindDatastoreError   Kind = "datastore_error"
	KindRateLimited      Kind = "rate_limited"
)

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindEngineFailed, KindParseFailed, KindLogicallyFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified, user-visible failure. All failures are terminal for the request.
type Error struct {
	Kind    Kind
	Message string
	Details interface{} // Raw engine output, validation fields, ...
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithDetails attaches diagnostic details
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Wrap attaches the underlying cause; it is logged, never sent to the client.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// InvalidInput is shorthand for NewError(KindInvalidInput, message)
func InvalidInput(message string) *Error {
	return NewError(KindInvalidInput, message)
}

// Datastore wraps a store failure. The message is surfaced, as the dashboard expects.
func Datastore(err error) *Error {
	return &Error{Kind: KindDatastoreError, Message: err.Error(), Err: err}
}

// Fields are the top-level members of a success envelope besides "success".
type Fields map[string]interface{}

// Writer writes envelopes, logging encode failures.
type Writer struct {
	log zerolog.Logger
}

// NewWriter creates a Writer
func NewWriter(log zerolog.Logger) Writer {
	return Writer{log: log}
}

// OK writes {"success": true, ...fields} with the given status.
func (rw Writer) OK(w http.ResponseWriter, status int, fields Fields) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	rw.JSON(w, status, body)
}

// Fail writes the failure envelope for err. Errors that are not *Error are
// reported as an opaque internal error.
func (rw Writer) Fail(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		rw.log.Error().Err(err).Msg("Unclassified request failure")
		e = &Error{Kind: KindDatastoreError, Message: "internal error", Err: err}
	}

	event := rw.log.Debug()
	if e.Kind.Status() >= http.StatusInternalServerError {
		event = rw.log.Warn()
	}
	event.Str("code", string(e.Kind)).Err(e.Err).Msg(e.Message)

	body := map[string]interface{}{
		"success": false,
		"error":   e.Message,
		"code":    e.Kind,
	}
	if e.Details != nil {
		body["details"] = e.Details
	}
	rw.JSON(w, e.Kind.Status(), body)
}

// JSON writes v as a JSON response
func (rw Writer) JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rw.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// MethodNotAllowedHandler answers unsupported methods with the envelope
func MethodNotAllowedHandler(log zerolog.Logger) http.HandlerFunc {
	rw := NewWriter(log)
	return func(w http.ResponseWriter, r *http.Request) {
		rw.Fail(w, NewError(KindMethodNotAllowed, "Method not allowed"))
	}
}

// NotFoundHandler answers unknown routes with the envelope
func NotFoundHandler(log zerolog.Logger) http.HandlerFunc {
	rw := NewWriter(log)
	return func(w http.ResponseWriter, r *http.Request) {
		rw.Fail(w, NewError(KindNotFound, "Not found"))
	}
}
