package notion

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError is an error reported by (or while talking to) the remote API.
//
// Transient errors (timeouts, rate limiting, 5xx) may succeed when retried.
// Everything else (not found, permission denied, malformed responses) is
// permanent for the request that produced it.
type APIError struct {
	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Code is the API error code (e.g. "object_not_found", "rate_limited").
	Code string

	// Message is a human-readable description.
	Message string

	// Transient marks errors worth retrying.
	Transient bool

	// RetryAfter is the server-provided minimum wait before retrying.
	RetryAfter time.Duration

	// Err is the underlying cause, if any.
	Err error
}

// Error codes used when the API did not supply one.
const (
	CodeTimeout           = "timeout"
	CodeTransport         = "transport_error"
	CodeMalformedResponse = "malformed_response"
	CodeRateLimited       = "rate_limited"
	CodeNotFound          = "object_not_found"
	CodeUnauthorized      = "unauthorized"
	CodeRestricted        = "restricted_resource"
)

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("notion api: %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("notion api: %s: %s", e.Code, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a retryable API error.
func IsTransient(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Transient
	}
	return false
}

// IsNotFound reports whether err is (or wraps) a not-found API error.
func IsNotFound(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status == http.StatusNotFound || ae.Code == CodeNotFound
	}
	return false
}

// RetryAfterHint extracts the server-provided retry delay from err, if any.
func RetryAfterHint(err error) time.Duration {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.RetryAfter
	}
	return 0
}

// StructuralError reports a response that parsed as JSON but lacks a field
// the mirror schema requires. Coercing such records would corrupt the mirror.
type StructuralError struct {
	Kind  Kind
	ID    string // empty when the id itself is missing
	Field string
	Msg   string
}

func (e *StructuralError) Error() string {
	id := e.ID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("structural error: %s %s: field %q: %s", e.Kind, id, e.Field, e.Msg)
}

// IsStructuralError reports whether err is (or wraps) a StructuralError.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
