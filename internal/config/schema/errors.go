package schema

import (
	"strings"
)

// Violation is one place where an instance departs from a schema.
type Violation struct {
	// Location is the dot-separated path of the offending value, empty for
	// the document root.
	Location string

	// Message is the localized keyword failure, e.g. "got array, want object".
	Message string
}

func (v Violation) String() string {
	if v.Location == "" {
		return "(root): " + v.Message
	}
	return v.Location + ": " + v.Message
}

// Violations lists every departure found in one instance, ordered by
// location. A nil or empty list means the instance conforms.
type Violations []Violation

// Error joins the violations into one line.
func (vs Violations) Error() string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// Err returns vs as an error, or nil when it is empty.
func (vs Violations) Err() error {
	if len(vs) == 0 {
		return nil
	}
	return vs
}
