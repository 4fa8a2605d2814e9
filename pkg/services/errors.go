// Package services composes the status machine, the verification tracker and
// the stores into the operations exposed over HTTP and the command line.
package services

import (
	"errors"
	"fmt"
)

// Validation errors, mapped to 400 responses.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrEntityIDRequired = errors.New("entity ID is required")
	ErrActorRequired    = errors.New("actor is required")
	ErrNilWorkflow      = errors.New("workflow cannot be nil")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEntityIDRequired) ||
		errors.Is(err, ErrActorRequired) ||
		errors.Is(err, ErrNilWorkflow)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
