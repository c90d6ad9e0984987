package registry

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrSettingAlreadyRegistered is returned when a path is registered twice.
	ErrSettingAlreadyRegistered = errors.New("setting already registered")

	// ErrSealed is returned by Register on the built-in registry.
	ErrSealed = errors.New("registry is sealed")
)

// Registry indexes settings by store path and by section field.
type Registry struct {
	mu      sync.RWMutex
	byPath  map[string]*Setting
	byField map[Section]map[string]*Setting
	sealed  bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byPath:  make(map[string]*Setting),
		byField: make(map[Section]map[string]*Setting),
	}
}

// NewWithDefaults creates a registry holding the built-in settings.
func NewWithDefaults() *Registry {
	r := New()
	r.RegisterDefaults()
	return r
}

var (
	builtin     *Registry
	builtinOnce sync.Once
)

// Builtin returns the process-wide registry of built-in settings. It is
// sealed against further registration.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		builtin = NewWithDefaults()
		builtin.sealed = true
	})
	return builtin
}

// Register adds a setting. A Pattern is compiled here so that Validate never
// mutates a shared setting.
func (r *Registry) Register(setting Setting) error {
	if setting.Pattern != "" {
		re, err := regexp.Compile(setting.Pattern)
		if err != nil {
			return fmt.Errorf("setting %s: invalid pattern: %w", setting.Path, err)
		}
		setting.pattern = re
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrSealed, setting.Path)
	}
	if _, exists := r.byPath[setting.Path]; exists {
		return fmt.Errorf("%w: %s", ErrSettingAlreadyRegistered, setting.Path)
	}

	s := &setting
	r.byPath[s.Path] = s
	if s.Field != "" {
		if r.byField[s.Section] == nil {
			r.byField[s.Section] = make(map[string]*Setting)
		}
		r.byField[s.Section][s.Field] = s
	}
	return nil
}

// MustRegister registers a setting and panics on error.
func (r *Registry) MustRegister(setting Setting) {
	if err := r.Register(setting); err != nil {
		panic(err)
	}
}

// Get returns the setting at a store path, or nil.
func (r *Registry) Get(path string) *Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPath[path]
}

// ByField returns the setting feeding a field of the given section, or nil.
func (r *Registry) ByField(section Section, field string) *Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byField[section][field]
}

// All returns every setting sorted by path.
func (r *Registry) All() []*Setting {
	return r.filter(func(*Setting) bool { return true })
}

// InSection returns the settings of one export section sorted by path.
func (r *Registry) InSection(section Section) []*Setting {
	return r.filter(func(s *Setting) bool { return s.Section == section })
}

// Search returns the settings whose path, field, description or tags
// contain query, ignoring case. An empty query matches everything.
func (r *Registry) Search(query string) []*Setting {
	query = strings.ToLower(query)
	return r.filter(func(s *Setting) bool {
		for _, term := range append([]string{s.Path, s.Field, s.Description}, s.Tags...) {
			if strings.Contains(strings.ToLower(term), query) {
				return true
			}
		}
		return false
	})
}

// Default returns the default value of a setting, or nil if unknown.
func (r *Registry) Default(path string) any {
	if s := r.Get(path); s != nil {
		return s.Default
	}
	return nil
}

// Defaults returns every default keyed by store path.
func (r *Registry) Defaults() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]any, len(r.byPath))
	for path, s := range r.byPath {
		out[path] = s.Default
	}
	return out
}

// Validate checks a value against the setting at path. Unknown paths pass.
func (r *Registry) Validate(path string, value any) error {
	if s := r.Get(path); s != nil {
		return s.Validate(value)
	}
	return nil
}

func (r *Registry) filter(keep func(*Setting) bool) []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Setting
	for _, s := range r.byPath {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
