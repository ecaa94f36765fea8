package vault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateActiveHub is returned when an active hub already holds the business key.
	ErrDuplicateActiveHub = errors.New("duplicate active hub")
	// ErrHubNotFound is returned when no hub row exists for a key or business key.
	ErrHubNotFound = errors.New("hub not found")
	// ErrAlreadyClosed is returned when closing a hub or link that is no longer open.
	ErrAlreadyClosed = errors.New("already closed")
	// ErrEntityInactive is returned when writing against a closed hub or link.
	ErrEntityInactive = errors.New("entity inactive")
	// ErrConcurrentModification is returned when a lock conflict or a
	// backstop constraint aborted a close+insert sequence.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrNotFound is returned when no satellite or link row matches a query.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// FieldError describes a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level detail for a rejected payload.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError for one field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// Add appends a field error.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns nil when no field errors were collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
