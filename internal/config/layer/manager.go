package layer

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Manager holds layers sorted by priority and resolves lookups across them.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer
}

// NewManager creates a layer manager with the given layers.
func NewManager(layers ...*Layer) *Manager {
	m := &Manager{}
	for _, l := range layers {
		m.AddLayer(l)
	}
	return m
}

// AddLayer adds a layer, replacing any existing layer of the same source.
func (m *Manager) AddLayer(layer *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.Source == layer.Source {
			m.layers[i] = layer
			m.sortLayers()
			return
		}
	}
	m.layers = append(m.layers, layer)
	m.sortLayers()
}

// Layers returns the layers sorted by ascending priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Layer, len(m.layers))
	copy(result, m.layers)
	return result
}

// Get returns the effective value for path and the layer providing it.
func (m *Manager) Get(path string) (any, *Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		l := m.layers[i]
		if val, ok := GetByPath(l.Data, path); ok {
			return cloneValue(val), l, true
		}
	}
	return nil, nil, false
}

// LayerValue returns the value stored at path in one layer.
func (m *Manager) LayerValue(source Source, path string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l := m.find(source)
	if l == nil {
		return nil, false
	}
	val, ok := GetByPath(l.Data, path)
	return cloneValue(val), ok
}

// LayerKeys returns the sorted leaf paths stored in one layer.
func (m *Manager) LayerKeys(source Source) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l := m.find(source)
	if l == nil {
		return nil
	}
	return sortedKeys(FlattenMap(l.Data))
}

// Set stores a value in the layer for source and returns the previous value.
func (m *Manager) Set(source Source, path string, value any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writable(source)
	if err != nil {
		return nil, err
	}
	old, _ := GetByPath(l.Data, path)
	SetByPath(l.Data, path, cloneValue(value))
	l.ModTime = time.Now()
	return old, nil
}

// Delete removes path from the layer for source. It reports the removed
// value and whether anything was removed.
func (m *Manager) Delete(source Source, path string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writable(source)
	if err != nil {
		return nil, false, err
	}
	old, ok := GetByPath(l.Data, path)
	if !ok {
		return nil, false, nil
	}
	DeleteByPath(l.Data, path)
	l.ModTime = time.Now()
	return old, true, nil
}

// Merge returns all layers merged into one nested map.
func (m *Manager) Merge() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]any)
	for _, l := range m.layers {
		result = DeepMerge(result, l.Data)
	}
	return result
}

func (m *Manager) writable(source Source) (*Layer, error) {
	l := m.find(source)
	if l == nil {
		return nil, fmt.Errorf("layer not found: %s", source)
	}
	if l.ReadOnly {
		return nil, fmt.Errorf("layer is read-only: %s", source)
	}
	if l.Data == nil {
		l.Data = make(map[string]any)
	}
	return l, nil
}

func (m *Manager) find(source Source) *Layer {
	for _, l := range m.layers {
		if l.Source == source {
			return l
		}
	}
	return nil
}

func (m *Manager) sortLayers() {
	sort.SliceStable(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
}

func sortedKeys(flat map[string]any) []string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
