package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service. Handlers map these to HTTP
// statuses once, at the boundary.
var (
	// ErrNotFound covers both "record absent" and "record owned by someone
	// else" — the two are deliberately indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrExpired marks a pending-cache entry whose TTL elapsed. Distinct
	// from ErrNotFound so the shortcut client can tell 410 from 404.
	ErrExpired = errors.New("expired")

	// ErrUnauthorized covers every credential failure uniformly; callers
	// never learn whether the token was missing, malformed or stale.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError reports a missing or malformed field on create/update.
// It is a caller fault, never logged as a server error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Validation builds a field-level ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExternalServiceError reports a failure talking to an upstream dependency
// (transcription, generative model, exchange-rate provider). The short
// Reason is safe to surface; Err carries the diagnostics for logs.
type ExternalServiceError struct {
	Service string // e.g. "transcription", "extraction", "exchange-rate"
	Reason  string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Reason)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// External wraps an upstream failure with the service name and a short
// caller-safe reason.
func External(service, reason string, err error) error {
	return &ExternalServiceError{Service: service, Reason: reason, Err: err}
}

// IsExternal reports whether err is (or wraps) an ExternalServiceError.
func IsExternal(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}
