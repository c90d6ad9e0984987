// Package validation checks a candidate SecurityConfig against type, range,
// enum and dependency rules, and warns about features the host platform
// cannot enforce.
//
// Every rule runs on every call. A Result lists all violations, never only
// the first one.
package validation

import (
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/security"
)

// rule inspects a document and records issues on the report.
type rule func(c *check)

// Engine validates configurations for one platform. It holds no state
// between calls and is safe for concurrent use.
type Engine struct {
	caps  platform.Capabilities
	rules []rule
}

// New creates an engine gating features on caps.
func New(caps platform.Capabilities) *Engine {
	return &Engine{
		caps: caps,
		rules: []rule{
			checkTypes,
			checkRanges,
			checkEnums,
			checkPatterns,
			checkDependencies,
			checkPlatform,
			checkConsistency,
		},
	}
}

// Capabilities returns the platform snapshot the engine gates on.
func (e *Engine) Capabilities() platform.Capabilities {
	return e.caps
}

// Validate checks a full or partial configuration. Fields absent from the
// document, or set to nil, are not checked.
func (e *Engine) Validate(partial security.Document) Result {
	c := &check{doc: partial, caps: e.caps, errors: []Issue{}, warnings: []Issue{}}
	for _, r := range e.rules {
		r(c)
	}
	return Result{
		Valid:    len(c.errors) == 0,
		Errors:   c.errors,
		Warnings: c.warnings,
	}
}

// check is the per-call state shared by the rules.
type check struct {
	doc      security.Document
	caps     platform.Capabilities
	errors   []Issue
	warnings []Issue
}

func (c *check) fail(setting string, code Code, message, suggestion string) {
	c.errors = append(c.errors, Issue{
		Setting:    setting,
		Message:    message,
		Suggestion: suggestion,
		Code:       code,
	})
}

func (c *check) warn(setting string, severity security.Level, code Code, message, suggestion string) {
	c.warnings = append(c.warnings, Issue{
		Setting:    setting,
		Message:    message,
		Suggestion: suggestion,
		Severity:   severity,
		Code:       code,
	})
}

// value returns a field's value, treating nil as absent.
func (c *check) value(field string) (any, bool) {
	v, ok := c.doc.Get(field)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// isTrue reports whether field holds the boolean true.
func (c *check) isTrue(field string) bool {
	v, _ := c.value(field)
	b, ok := v.(bool)
	return ok && b
}

// isFalse reports whether field holds the boolean false.
func (c *check) isFalse(field string) bool {
	v, _ := c.value(field)
	b, ok := v.(bool)
	return ok && !b
}
