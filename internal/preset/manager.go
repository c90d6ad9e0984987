package preset

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/dshills/sandboxctl/internal/config"
	"github.com/dshills/sandboxctl/internal/config/registry"
	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/security"
	"github.com/dshills/sandboxctl/internal/validation"
)

// ErrUnknownField is returned when a preset names a field no setting maps to.
var ErrUnknownField = errors.New("unknown preset field")

// FieldDiff is one field whose generated value differs from a preset.
type FieldDiff struct {
	Field   string `json:"field"`
	Path    string `json:"path"`
	Current any    `json:"current"`
	Desired any    `json:"desired"`
}

// Applier compares presets with a store and writes them.
type Applier interface {
	// Diff lists the preset fields whose generated value differs.
	Diff(p Preset) []FieldDiff

	// ApplyPreset validates p and writes every field it names.
	ApplyPreset(ctx context.Context, p Preset) error
}

var _ Applier = (*Manager)(nil)

// Manager lists presets and applies them to a store.
type Manager struct {
	store     store.Store
	generator *config.Generator
	engine    *validation.Engine
	scope     store.Scope
	logger    *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithScope sets the scope presets are written to.
func WithScope(scope store.Scope) Option {
	return func(m *Manager) {
		m.scope = scope
	}
}

// WithCapabilities sets the platform presets are validated against.
func WithCapabilities(caps platform.Capabilities) Option {
	return func(m *Manager) {
		m.engine = validation.New(caps)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager writing to st.
func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     st,
		generator: config.NewGenerator(nil),
		engine:    validation.New(platform.NewDetector().Detect()),
		scope:     store.ScopeGlobal,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List returns the built-in presets.
func (m *Manager) List() []Preset {
	return Catalog()
}

// Get returns the named preset.
func (m *Manager) Get(name string) (Preset, error) {
	return Lookup(name)
}

// Apply applies the named preset.
func (m *Manager) Apply(ctx context.Context, name string) error {
	p, err := Lookup(name)
	if err != nil {
		return err
	}
	return m.ApplyPreset(ctx, p)
}

// Diff implements Applier. A nil preset value stands for the field's
// default.
func (m *Manager) Diff(p Preset) []FieldDiff {
	current := m.generator.Generate(m.store)

	var diffs []FieldDiff
	for _, field := range p.Config.Fields() {
		setting := m.generator.Registry().ByField(registry.SectionSecurity, field)
		desired, _ := p.Config.Get(field)
		desired = security.Normalize(desired)
		if desired == nil && setting != nil {
			desired = resolvedDefault(setting)
		}

		have, _ := current.Get(field)
		if reflect.DeepEqual(have, desired) {
			continue
		}

		path := ""
		if setting != nil {
			path = setting.Path
		}
		diffs = append(diffs, FieldDiff{Field: field, Path: path, Current: have, Desired: desired})
	}
	return diffs
}

// ApplyPreset implements Applier. It validates the whole preset before
// writing. A store failure stops the apply and is returned unchanged.
func (m *Manager) ApplyPreset(ctx context.Context, p Preset) error {
	if err := m.engine.Validate(p.Config).Err(); err != nil {
		return fmt.Errorf("preset %q: %w", p.Name, err)
	}

	fields := p.Config.Fields()
	paths := make([]string, 0, len(fields))
	for _, field := range fields {
		setting := m.generator.Registry().ByField(registry.SectionSecurity, field)
		if setting == nil {
			return fmt.Errorf("preset %q: %w: %s", p.Name, ErrUnknownField, field)
		}
		paths = append(paths, setting.Path)
	}

	for i, field := range fields {
		value, _ := p.Config.Get(field)
		if err := m.store.Update(ctx, paths[i], security.Normalize(value), m.scope); err != nil {
			return err
		}
	}

	m.logger.Info("preset applied",
		zap.String("preset", p.Name),
		zap.String("securityLevel", string(p.SecurityLevel)),
		zap.Int("fields", len(fields)),
		zap.String("scope", m.scope.String()),
	)
	return nil
}

// resolvedDefault is what the generator produces for a reset field: the
// default, or nothing for an empty optional field.
func resolvedDefault(setting *registry.Setting) any {
	if setting.Optional && setting.IsEmpty(setting.Default) {
		return nil
	}
	return security.Normalize(setting.Default)
}
