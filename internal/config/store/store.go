// Package store defines the settings store contract and its memory, file and
// SQL implementations.
//
// A store maps dot-separated paths to raw values at two scopes. A workspace
// value shadows the global one. Updating a path to nil removes the explicit
// value at that scope, so lookups fall through to the other scope and
// callers fall back to the registered default.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dshills/sandboxctl/internal/config/notify"
)

// Sentinel errors.
var (
	// ErrClosed is returned by writes to a closed store.
	ErrClosed = errors.New("store closed")

	// ErrUnsupportedScope is returned when a store cannot write a scope.
	ErrUnsupportedScope = errors.New("unsupported scope")

	// ErrInvalidPath is returned for empty or malformed paths.
	ErrInvalidPath = errors.New("invalid settings path")
)

// Scope selects which level an update writes to.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeWorkspace
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeWorkspace:
		return "workspace"
	default:
		return "unknown"
	}
}

// ParseScope parses a scope name.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "global", "user":
		return ScopeGlobal, nil
	case "workspace":
		return ScopeWorkspace, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedScope, name)
	}
}

// Store reads and writes raw settings values.
type Store interface {
	// Lookup returns the effective value at path without type coercion.
	Lookup(path string) (any, bool)

	// Update writes value at path in scope. A nil value resets the path to
	// its default.
	Update(ctx context.Context, path string, value any, scope Scope) error
}

// Watchable is implemented by stores that publish changes.
type Watchable interface {
	Subscribe(observer notify.Observer) *notify.Subscription
}

// Lister is implemented by stores that can enumerate their explicit values.
type Lister interface {
	Keys(ctx context.Context, scope Scope) ([]string, error)
}

// Reloadable is implemented by stores that follow edits made outside the
// process. Unwatch stops following them; the store stays usable.
type Reloadable interface {
	Watch() error
	Unwatch() error
}

// Get returns the value at path as T, or def when the value is absent, nil
// or of another type. Numbers convert between int and float64 when no
// precision is lost, since decoded documents carry integers as floats.
func Get[T any](s Store, path string, def T) T {
	raw, ok := s.Lookup(path)
	if !ok || raw == nil {
		return def
	}
	if v, ok := raw.(T); ok {
		return v
	}

	switch any(def).(type) {
	case int:
		if n, ok := asInt(raw); ok {
			return any(n).(T)
		}
	case float64:
		if f, ok := asFloat(raw); ok {
			return any(f).(T)
		}
	case []string:
		if list, ok := asStrings(raw); ok {
			return any(list).(T)
		}
	}
	return def
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int(n), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func asStrings(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func checkPath(path string) error {
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") || strings.Contains(path, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}
