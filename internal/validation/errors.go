package validation

import (
	"errors"
	"strings"
)

// ErrValidationFailed matches every *ValidationFailedError.
var ErrValidationFailed = errors.New("validation failed")

// ValidationFailedError carries the errors of an invalid configuration.
type ValidationFailedError struct {
	Issues []Issue
}

// Error implements the error interface. The message names every offending
// setting.
func (e *ValidationFailedError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Setting+": "+issue.Message)
	}
	return "configuration validation failed: " + strings.Join(parts, "; ")
}

// Unwrap returns ErrValidationFailed.
func (e *ValidationFailedError) Unwrap() error {
	return ErrValidationFailed
}

// Is implements error matching for ValidationFailedError.
func (e *ValidationFailedError) Is(target error) bool {
	return target == ErrValidationFailed
}
