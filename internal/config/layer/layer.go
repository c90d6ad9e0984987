// Package layer provides the scoped layer stack behind the in-memory
// settings store.
//
// Each scope (global, workspace) and the environment override get their own
// layer. Lookups walk the layers from highest to lowest priority, so a
// workspace value shadows the global one and an environment override shadows
// both.
package layer

import "time"

// Source indicates where a layer's values come from.
type Source uint8

const (
	// SourceGlobal holds user-wide settings.
	SourceGlobal Source = iota
	// SourceWorkspace holds per-workspace settings.
	SourceWorkspace
	// SourceEnv holds SANDBOXCTL_* environment overrides.
	SourceEnv
)

// Standard priorities. Higher values override lower values.
const (
	PriorityGlobal    = 100
	PriorityWorkspace = 200
	PriorityEnv       = 500
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceGlobal:
		return "global"
	case SourceWorkspace:
		return "workspace"
	case SourceEnv:
		return "environment"
	default:
		return "unknown"
	}
}

// DefaultPriority returns the standard priority for a source.
func DefaultPriority(source Source) int {
	switch source {
	case SourceWorkspace:
		return PriorityWorkspace
	case SourceEnv:
		return PriorityEnv
	default:
		return PriorityGlobal
	}
}

// Layer is a single set of settings values.
type Layer struct {
	// Name identifies the layer.
	Name string

	// Source is the scope the layer represents.
	Source Source

	// Priority determines lookup order (higher wins).
	Priority int

	// Data holds values as a nested map keyed by path segment.
	Data map[string]any

	// ModTime is when the layer was last written.
	ModTime time.Time

	// ReadOnly rejects Set and Delete.
	ReadOnly bool
}

// NewLayer creates an empty layer with the standard name and priority for
// its source.
func NewLayer(source Source) *Layer {
	return &Layer{
		Name:     source.String(),
		Source:   source,
		Priority: DefaultPriority(source),
		Data:     make(map[string]any),
		ModTime:  time.Now(),
	}
}

// NewLayerWithData creates a layer holding a copy of data.
func NewLayerWithData(source Source, data map[string]any) *Layer {
	l := NewLayer(source)
	if data != nil {
		l.Data = cloneMap(data)
	}
	return l
}

// Clone creates a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	c := *l
	c.Data = cloneMap(l.Data)
	return &c
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = cloneValue(val)
	}
	return dst
}

// cloneValue deep-copies maps and slices so callers never share storage
// with a layer.
func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		if v == nil {
			return v
		}
		dst := make([]any, len(v))
		for i := range v {
			dst[i] = cloneValue(v[i])
		}
		return dst
	case []string:
		if v == nil {
			return v
		}
		return append([]string{}, v...)
	default:
		return val
	}
}
