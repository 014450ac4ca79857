package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError means a primitive input is missing or invalid. It is raised
// before any network/database call is made, so there is nothing to roll back.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthError means the caller's credential is missing or expired. The caller
// must re-authenticate; the operation is not retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Reason
}

// TransportError wraps a network or server-side failure. The optimistic state
// is rolled back and a manual retry is left to the user.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error { return e.Cause }

// StaleWriteError means a submission resolved after a newer local edit already
// superseded it. It is discarded silently and never surfaced to the user.
type StaleWriteError struct {
	SubmittedVersion string
	CurrentVersion   string
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("stale write: submitted version %s superseded by %s", e.SubmittedVersion, e.CurrentVersion)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsStaleWriteError(err error) bool {
	var se *StaleWriteError
	return errors.As(err, &se)
}
