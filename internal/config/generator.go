package config

import (
	"github.com/dshills/sandboxctl/internal/config/registry"
	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/security"
)

// Generator builds documents from a store using a settings registry.
// It holds no state besides the registry and is safe for concurrent use.
type Generator struct {
	registry *registry.Registry
}

// NewGenerator creates a generator over reg. A nil reg uses the built-in
// registry.
func NewGenerator(reg *registry.Registry) *Generator {
	if reg == nil {
		reg = registry.Builtin()
	}
	return &Generator{registry: reg}
}

// Registry returns the registry the generator reads.
func (g *Generator) Registry() *registry.Registry {
	return g.registry
}

// Generate reads every security setting from s and assembles the
// SecurityConfig document. Optional string fields are left out while empty.
func (g *Generator) Generate(s store.Store) security.Document {
	doc := security.Document{}
	for _, setting := range g.registry.InSection(registry.SectionSecurity) {
		value, ok := g.resolve(s, setting)
		if !ok {
			continue
		}
		doc.Set(setting.Field, value)
	}
	return doc
}

// Section reads the settings of one export section keyed by field name.
// It applies the same default and pass-through rules as Generate.
func (g *Generator) Section(s store.Store, section registry.Section) map[string]any {
	out := make(map[string]any)
	for _, setting := range g.registry.InSection(section) {
		value, ok := g.resolve(s, setting)
		if !ok {
			continue
		}
		out[setting.Field] = value
	}
	return out
}

func (g *Generator) resolve(s store.Store, setting *registry.Setting) (any, bool) {
	value, ok := s.Lookup(setting.Path)
	if !ok || value == nil {
		value = setting.Default
	}
	if setting.Optional && setting.IsEmpty(value) {
		return nil, false
	}
	return security.Normalize(value), true
}

var defaultGenerator = NewGenerator(nil)

// Generate builds the SecurityConfig document with the built-in registry.
func Generate(s store.Store) security.Document {
	return defaultGenerator.Generate(s)
}
