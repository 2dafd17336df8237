package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the repository, crypto and transport layers.
var (
	// ErrAuthenticationRequired is returned when no authenticated identity
	// is available to derive key material from.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrNotFound is returned when a record does not exist for the caller.
	// A record owned by a different identity resolves to this same error.
	ErrNotFound = errors.New("not found")
	// ErrNotEmpty is returned when deleting a container that still has
	// dependents.
	ErrNotEmpty = errors.New("container is not empty")
	// ErrDecryptionFailed is returned on any integrity-tag mismatch.
	// Wrong key and corrupted data are indistinguishable by design.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrEncryptionUnavailable is returned when the platform lacks the
	// required crypto primitives. There is no fallback to weaker crypto.
	ErrEncryptionUnavailable = errors.New("encryption unavailable")
)

// ValidationError reports a rejected input field. Validation happens
// synchronously before any network or crypto call.
type ValidationError struct {
	// Field is the name of the offending input field.
	Field string
	// Reason explains why the field was rejected.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreError wraps a backend or transport failure unmodified.
type StoreError struct {
	// Op names the store operation that failed.
	Op string
	// Err is the underlying driver error, passed through as-is.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}
