package config

import (
	"errors"
	"fmt"
)

// ErrValidationFailed is the sentinel every *ValidationError wraps.
var ErrValidationFailed = errors.New("configuration validation failed")

// ValidationError names the offending environment variable alongside the
// underlying reason, adapted from pkg/config/validator.go's
// ValidationError{Component, ID, Field, Err} down to the single-field
// shape this flat env-var config needs.
type ValidationError struct {
	Field string // environment variable name
	Err   error
}

// Error returns a formatted message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

// Unwrap lets errors.Is(err, ErrValidationFailed) succeed regardless of
// which field failed.
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// NewValidationError creates a new validation error.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
