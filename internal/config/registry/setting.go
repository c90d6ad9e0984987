// Package registry declares every setting the Settings Manager reads from the
// configuration store: its dot-separated store path, type, default value,
// constraints, and the SecurityConfig field it feeds.
//
// Defaults live here and nowhere else.
package registry

import (
	"fmt"
	"math"
	"regexp"
	"slices"
)

// Section groups settings by the export section they belong to.
type Section string

const (
	SectionSecurity   Section = "security"
	SectionServer     Section = "server"
	SectionUI         Section = "ui"
	SectionConnection Section = "connection"
)

// SettingType is the JSON shape a setting's value must have.
type SettingType uint8

const (
	TypeString SettingType = iota
	TypeInt
	TypeBool
	TypeStringList
	TypeEnum
)

func (t SettingType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	case TypeStringList:
		return "array"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Setting declares one store key.
type Setting struct {
	// Path is the dot-separated store path, e.g. "process.maxConcurrentProcesses".
	Path string

	Section Section

	// Field is the SecurityConfig field path for security settings, or the
	// key inside the server/ui/connection section for the others.
	Field string

	Type    SettingType
	Default any

	// Optional settings are left out of generated output while empty.
	Optional bool

	Description string

	// Enum lists the accepted values of a TypeEnum setting.
	Enum []string

	// Minimum and Maximum bound TypeInt settings; nil means unbounded.
	Minimum *float64
	Maximum *float64

	// Pattern is a regular expression TypeString values must match.
	Pattern string

	// Tags are extra search terms.
	Tags []string

	pattern *regexp.Regexp
}

// Validate checks value against the declared type and constraints.
func (s *Setting) Validate(value any) error {
	if s.Optional && s.IsEmpty(value) {
		return nil
	}

	switch s.Type {
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case TypeInt:
		n, ok := integral(value)
		if !ok {
			return fmt.Errorf("expected integer, got %v (%T)", value, value)
		}
		if s.Minimum != nil && n < *s.Minimum {
			return fmt.Errorf("value %v is less than minimum %v", value, *s.Minimum)
		}
		if s.Maximum != nil && n > *s.Maximum {
			return fmt.Errorf("value %v is greater than maximum %v", value, *s.Maximum)
		}
	case TypeStringList:
		return checkStringList(value)
	case TypeString, TypeEnum:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if s.Type == TypeEnum && !slices.Contains(s.Enum, str) {
			return fmt.Errorf("value must be one of: %v", s.Enum)
		}
		if s.Pattern != "" {
			return s.matchPattern(str)
		}
	}
	return nil
}

// IsEmpty reports whether v counts as unset for an optional setting.
func (s *Setting) IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	str, ok := v.(string)
	return ok && str == "" && s.Type != TypeBool
}

func (s *Setting) matchPattern(str string) error {
	re := s.pattern
	if re == nil {
		var err error
		if re, err = regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}
	if !re.MatchString(str) {
		return fmt.Errorf("value does not match pattern %s", s.Pattern)
	}
	return nil
}

func checkStringList(value any) error {
	switch v := value.(type) {
	case []string:
		return nil
	case []any:
		for i, item := range v {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("expected list of strings, item %d is %T", i, item)
			}
		}
		return nil
	default:
		return fmt.Errorf("expected array, got %T", value)
	}
}

// integral returns v as a float64 when it is a whole number of any numeric
// type. Decoded JSON carries integers as float64.
func integral(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, false
	}
	return f, f == math.Trunc(f)
}

// MinValue returns a pointer for Setting.Minimum.
func MinValue(v float64) *float64 {
	return &v
}

// MaxValue returns a pointer for Setting.Maximum.
func MaxValue(v float64) *float64 {
	return &v
}
