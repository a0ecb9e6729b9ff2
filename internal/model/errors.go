package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// FieldError describes a failed check on one field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError blocks a save. Nothing is written.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

// NewValidationError builds a ValidationError.
func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ImportFormatError rejects a snapshot before anything is restored.
type ImportFormatError struct {
	Missing []string
	Err     error
}

func (e *ImportFormatError) Error() string {
	switch {
	case e.Err != nil:
		return "invalid backup file: " + e.Err.Error()
	case len(e.Missing) > 0:
		return "invalid backup file: missing " + strings.Join(e.Missing, ", ")
	}
	return "invalid backup file"
}

func (e *ImportFormatError) Unwrap() error { return e.Err }

// TransportError reports a failure talking to a remote snapshot store.
// The message stays generic; the cause is available through Unwrap.
type TransportError struct {
	Target string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed", e.Target, e.Op)
}

func (e *TransportError) Unwrap() error { return e.Err }
