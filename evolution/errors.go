package evolution

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error categories, matched with errors.Is. A RetryError matches
// ErrRetriesExhausted and, through its last cause, ErrTransient.
var (
	ErrValidation       = errors.New("evolution: invalid message")
	ErrTransient        = errors.New("evolution: transient failure")
	ErrRejected         = errors.New("evolution: request rejected")
	ErrRetriesExhausted = errors.New("evolution: retries exhausted")
)

// ValidationError reports a message that cannot be sent as constructed.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("evolution: invalid %s message: %s %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(kind Kind, field, reason string) error {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}

// maxErrorBody bounds how much of an upstream body is kept on APIError.
const maxErrorBody = 1024

// APIError is a non-2xx answer from the upstream API.
type APIError struct {
	StatusCode int
	Path       string
	Body       []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("evolution: %s returned status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("evolution: %s returned status %d: %s", e.Path, e.StatusCode, body)
}

// Retryable reports whether the status is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Retryable()
	case ErrRejected:
		return !e.Retryable()
	}
	return false
}

// TransportError is a connection-level failure: the request never produced
// an HTTP status.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("evolution: %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == ErrTransient
}

// RetryError is returned once every attempt allowed by the retry policy
// failed transiently. Last holds the failure of the final attempt.
type RetryError struct {
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("evolution: request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error { return e.Last }

func (e *RetryError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// StatusCode extracts the upstream status from err, or 0 when the failure
// never reached the upstream.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
