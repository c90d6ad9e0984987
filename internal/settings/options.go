package settings

import (
	"go.uber.org/zap"

	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/metrics"
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/transfer"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDetector sets the capability detector. Tests pass platform.Static.
func WithDetector(d *platform.Detector) Option {
	return func(m *Manager) {
		if d != nil {
			m.detector = d
		}
	}
}

// WithConfirmer sets the hook asked before imports with warnings.
func WithConfirmer(c transfer.Confirmer) Option {
	return func(m *Manager) {
		m.confirmer = c
	}
}

// WithMetrics records operations on met.
func WithMetrics(met *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = met
	}
}

// WithVersion sets the application version reported in exports.
func WithVersion(v string) Option {
	return func(m *Manager) {
		m.version = v
	}
}

// WithScope sets the scope imports and presets write to.
func WithScope(scope store.Scope) Option {
	return func(m *Manager) {
		m.scope = scope
	}
}
