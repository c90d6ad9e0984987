// Package preset provides the built-in configuration presets and applies
// them to a store.
package preset

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dshills/sandboxctl/internal/security"
)

//go:embed presets.yaml
var catalogYAML []byte

// ErrPresetNotFound is returned for unknown preset names.
var ErrPresetNotFound = errors.New("preset not found")

// Preset is a named bundle of SecurityConfig values.
type Preset struct {
	Name          string            `yaml:"name" json:"name"`
	Description   string            `yaml:"description" json:"description"`
	SecurityLevel security.Level    `yaml:"securityLevel" json:"securityLevel"`
	Config        security.Document `yaml:"config" json:"config"`
}

// Clone returns a deep copy of p.
func (p Preset) Clone() Preset {
	p.Config = p.Config.Clone()
	return p
}

var (
	catalog     []Preset
	catalogOnce sync.Once
)

// Catalog returns a copy of the built-in presets in declaration order.
// The embedded catalog is fixed at build time, so a decode failure panics.
func Catalog() []Preset {
	catalogOnce.Do(func() {
		presets, err := parseCatalog(catalogYAML)
		if err != nil {
			panic(err)
		}
		catalog = presets
	})

	out := make([]Preset, len(catalog))
	for i, p := range catalog {
		out[i] = p.Clone()
	}
	return out
}

// Lookup returns a copy of the named built-in preset.
func Lookup(name string) (Preset, error) {
	for _, p := range Catalog() {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
}

func parseCatalog(data []byte) ([]Preset, error) {
	var presets []Preset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("decoding preset catalog: %w", err)
	}

	seen := make(map[string]bool, len(presets))
	for i := range presets {
		p := &presets[i]
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		seen[p.Name] = true
		if !p.SecurityLevel.Valid() {
			return nil, fmt.Errorf("preset %q: invalid security level %q", p.Name, p.SecurityLevel)
		}
		p.Config = p.Config.Normalized()
		if p.Config == nil {
			p.Config = security.Document{}
		}
	}
	return presets, nil
}
