package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Generic error types

var (
	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrRateLimitExceeded indicates the request rate limit was exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Model and prediction errors

var (
	// ErrModelUnavailable indicates no classifier is loaded
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInvalidVectorShape indicates the feature vector does not match the classifier input
	ErrInvalidVectorShape = errors.New("invalid feature vector shape")

	// ErrMalformedInput indicates a request body that strict validation refused.
	// The assembler itself never returns it: bad values are zero-filled.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnsupportedModel indicates a model artifact format that cannot be opened
	ErrUnsupportedModel = errors.New("unsupported model format")
)

// Ingestion errors

var (
	// ErrMissingColumn indicates a dataset row lacks a required column
	ErrMissingColumn = errors.New("missing dataset column")

	// ErrStorageDisabled indicates object storage is not configured
	ErrStorageDisabled = errors.New("object storage disabled")
)

// ValidationError reports a single rejected request field. It unwraps to ErrMalformedInput.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrMalformedInput) match
func (e *ValidationError) Unwrap() error {
	return ErrMalformedInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// MultiError collects several errors into one
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	}
	parts := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(m.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes the collected errors to errors.Is / errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add appends err if it is not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if empty
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
