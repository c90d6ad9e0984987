package transfer

import (
	"errors"
	"fmt"

	"github.com/dshills/sandboxctl/internal/config/schema"
)

// Sentinel errors.
var (
	// ErrInvalidJSON matches every *ParseError.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrInvalidShape matches every *ShapeError.
	ErrInvalidShape = errors.New("invalid configuration shape")

	// ErrImportCancelled is returned when the confirmer declines an import.
	// Nothing has been written when it is returned.
	ErrImportCancelled = errors.New("import cancelled")
)

// ParseError is returned when imported data is not valid JSON.
type ParseError struct {
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err == nil {
		return "Invalid JSON"
	}
	return fmt.Sprintf("Invalid JSON: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements error matching for ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidJSON
}

// ShapeError is returned when imported JSON is not a configuration snapshot.
type ShapeError struct {
	// Reason describes the problem.
	Reason string

	// Violations holds the schema violations, if any.
	Violations schema.Violations
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return "Invalid configuration: " + e.Reason
}

// Unwrap returns the schema violations, if any.
func (e *ShapeError) Unwrap() error {
	return e.Violations.Err()
}

// Is implements error matching for ShapeError.
func (e *ShapeError) Is(target error) bool {
	return target == ErrInvalidShape
}
