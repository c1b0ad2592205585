// Package service provides business logic services for the data room server.
package service

import (
	"errors"
	"fmt"
)

// Common service errors.
var (
	// ErrInternalError wraps unexpected repository or storage failures.
	ErrInternalError = errors.New("internal server error")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// OptionalString distinguishes an omitted field from an explicit null in
// partial updates. Set reports presence; a nil Value with Set true means the
// caller asked to clear the field.
type OptionalString struct {
	Set   bool
	Value *string
}
