package validation

import (
	"sort"

	"github.com/dshills/sandboxctl/internal/security"
)

// Code categorizes an issue.
type Code uint8

const (
	CodeTypeMismatch Code = iota
	CodeOutOfRange
	CodeInvalidEnum
	CodeInvalidPattern
	CodeDependency
	CodePlatform
	CodeConsistency
)

// String returns a stable name for the code, used as a metrics label.
func (c Code) String() string {
	switch c {
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeOutOfRange:
		return "out_of_range"
	case CodeInvalidEnum:
		return "invalid_enum"
	case CodeInvalidPattern:
		return "invalid_pattern"
	case CodeDependency:
		return "dependency"
	case CodePlatform:
		return "platform"
	case CodeConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

// Issue is one validation finding. Severity is set on warnings only.
type Issue struct {
	Setting    string         `json:"setting"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion,omitempty"`
	Severity   security.Level `json:"severity,omitempty"`
	Code       Code           `json:"-"`
}

// Result is the outcome of validating a configuration. Valid is true iff
// Errors is empty; warnings never affect validity.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// ErrorsFor returns the errors reported at setting.
func (r Result) ErrorsFor(setting string) []Issue {
	return filter(r.Errors, setting)
}

// WarningsFor returns the warnings reported at setting.
func (r Result) WarningsFor(setting string) []Issue {
	return filter(r.Warnings, setting)
}

// Settings returns the sorted, de-duplicated paths that have errors.
func (r Result) Settings() []string {
	seen := make(map[string]bool, len(r.Errors))
	var out []string
	for _, issue := range r.Errors {
		if !seen[issue.Setting] {
			seen[issue.Setting] = true
			out = append(out, issue.Setting)
		}
	}
	sort.Strings(out)
	return out
}

// Err returns nil for a valid result, otherwise a *ValidationFailedError.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]Issue, len(r.Errors))
	copy(errs, r.Errors)
	return &ValidationFailedError{Issues: errs}
}

func filter(issues []Issue, setting string) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Setting == setting {
			out = append(out, issue)
		}
	}
	return out
}
