package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is returned by Login for any failed attempt, so
	// callers cannot tell unknown accounts from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers malformed, expired, revoked and wrong-type tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden is returned when the caller may not touch the target record.
	ErrForbidden = errors.New("forbidden")
	// ErrCategoryProtected is returned when deleting a category that still has products.
	ErrCategoryProtected = errors.New("cannot delete category with associated products")
)

// ValidationError carries per-field messages, keyed by JSON field name.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add records a message for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// Has reports whether any message was recorded.
func (e *ValidationError) Has() bool {
	return len(e.Fields) > 0
}

// OrNil returns e when it holds messages and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.Has() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// fieldError is shorthand for a ValidationError with a single message.
func fieldError(field, message string) *ValidationError {
	e := NewValidationError()
	e.Add(field, message)
	return e
}
