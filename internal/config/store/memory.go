package store

import (
	"context"
	"sync/atomic"

	"github.com/dshills/sandboxctl/internal/config/layer"
	"github.com/dshills/sandboxctl/internal/config/notify"
)

// MemoryStore keeps settings in layered in-memory maps. It backs tests and
// ephemeral CLI sessions, and carries the environment override layer.
type MemoryStore struct {
	layers   *layer.Manager
	notifier *notify.Notifier
	closed   atomic.Bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithEnvironment installs a read-only override layer above both scopes.
// The data is a nested map such as loader.EnvLoader produces.
func WithEnvironment(data map[string]any) MemoryOption {
	return func(m *MemoryStore) {
		env := layer.NewLayerWithData(layer.SourceEnv, data)
		env.ReadOnly = true
		m.layers.AddLayer(env)
	}
}

// WithValues seeds a scope with a nested map of values.
func WithValues(scope Scope, data map[string]any) MemoryOption {
	return func(m *MemoryStore) {
		m.layers.AddLayer(layer.NewLayerWithData(scopeSource(scope), data))
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		layers:   layer.NewManager(layer.NewLayer(layer.SourceGlobal), layer.NewLayer(layer.SourceWorkspace)),
		notifier: notify.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(path string) (any, bool) {
	val, _, ok := m.layers.Get(path)
	return val, ok
}

// LookupScope returns the explicit value stored at one scope.
func (m *MemoryStore) LookupScope(path string, scope Scope) (any, bool) {
	return m.layers.LayerValue(scopeSource(scope), path)
}

// Update implements Store.
func (m *MemoryStore) Update(ctx context.Context, path string, value any, scope Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed.Load() {
		return ErrClosed
	}
	if err := checkPath(path); err != nil {
		return err
	}
	src, err := writableSource(scope)
	if err != nil {
		return err
	}

	if value == nil {
		old, removed, err := m.layers.Delete(src, path)
		if err != nil {
			return err
		}
		if removed {
			m.notifier.NotifyDelete(path, scope.String(), old, "memory")
		}
		return nil
	}

	old, err := m.layers.Set(src, path, value)
	if err != nil {
		return err
	}
	m.notifier.NotifySet(path, scope.String(), old, value, "memory")
	return nil
}

// Keys returns the sorted paths with an explicit value at scope.
func (m *MemoryStore) Keys(ctx context.Context, scope Scope) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}
	src, err := writableSource(scope)
	if err != nil {
		return nil, err
	}
	return m.layers.LayerKeys(src), nil
}

// Snapshot returns the merged view of every layer as a nested map.
func (m *MemoryStore) Snapshot() map[string]any {
	return m.layers.Merge()
}

// Subscribe implements Watchable.
func (m *MemoryStore) Subscribe(observer notify.Observer) *notify.Subscription {
	return m.notifier.Subscribe(observer)
}

// Close releases subscribers. Further updates fail with ErrClosed.
func (m *MemoryStore) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.notifier.Close()
	return nil
}

func scopeSource(scope Scope) layer.Source {
	if scope == ScopeWorkspace {
		return layer.SourceWorkspace
	}
	return layer.SourceGlobal
}

func writableSource(scope Scope) (layer.Source, error) {
	switch scope {
	case ScopeGlobal:
		return layer.SourceGlobal, nil
	case ScopeWorkspace:
		return layer.SourceWorkspace, nil
	default:
		return 0, ErrUnsupportedScope
	}
}
