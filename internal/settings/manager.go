// Package settings provides the Settings Manager, the single entry point the
// command layer uses to generate, validate, export, import and preset the
// sandbox configuration.
package settings

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/sandboxctl/internal/config"
	"github.com/dshills/sandboxctl/internal/config/notify"
	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/metrics"
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/preset"
	"github.com/dshills/sandboxctl/internal/security"
	"github.com/dshills/sandboxctl/internal/transfer"
	"github.com/dshills/sandboxctl/internal/validation"
)

// Manager binds a store to a capability snapshot. Create one with New and
// release it with Dispose.
type Manager struct {
	id    string
	store store.Store
	scope store.Scope

	detector  *platform.Detector
	caps      platform.Capabilities
	engine    *validation.Engine
	transfer  *transfer.Serializer
	presets   *preset.Manager
	confirmer transfer.Confirmer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	version   string

	relay    *notify.Notifier
	sub      *notify.Subscription
	reloads  store.Reloadable
	disposed atomic.Bool
}

// New creates a Manager over st. If st publishes changes, the Manager
// subscribes and relays them to OnChange observers until Dispose. A store
// that can follow outside edits is watched until Dispose.
func New(st store.Store, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, ErrNilStore
	}

	m := &Manager{
		id:       uuid.NewString(),
		store:    st,
		scope:    store.ScopeGlobal,
		detector: platform.NewDetector(),
		logger:   zap.NewNop(),
		relay:    notify.New(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With(zap.String("managerId", m.id))
	m.caps = m.detector.Detect()
	m.engine = validation.New(m.caps)
	m.transfer = transfer.New(
		transfer.WithAppVersion(m.version),
		transfer.WithLogger(m.logger),
	)
	m.presets = preset.NewManager(st,
		preset.WithCapabilities(m.caps),
		preset.WithScope(m.scope),
		preset.WithLogger(m.logger),
	)

	if w, ok := st.(store.Watchable); ok {
		m.sub = w.Subscribe(m.relay.Notify)
	}
	if r, ok := st.(store.Reloadable); ok {
		if err := r.Watch(); err != nil {
			m.logger.Warn("settings store watch failed", zap.Error(err))
		} else {
			m.reloads = r
		}
	}

	m.logger.Info("settings manager created",
		zap.String("platform", string(m.caps.Platform)),
		zap.String("scope", m.scope.String()),
		zap.Bool("subscribed", m.sub != nil),
		zap.Bool("watching", m.reloads != nil),
	)
	return m, nil
}

// ID returns the instance identifier used in log fields.
func (m *Manager) ID() string {
	return m.id
}

// GenerateServerConfig returns the SecurityConfig document for the current
// store state.
func (m *Manager) GenerateServerConfig() (security.Document, error) {
	if m.disposed.Load() {
		return nil, disposedError("generateServerConfig")
	}
	return config.Generate(m.store), nil
}

// ServerConfig returns the typed SecurityConfig. It fails when the store
// holds values of the wrong type; ValidateConfiguration reports them.
func (m *Manager) ServerConfig() (*security.Config, error) {
	doc, err := m.GenerateServerConfig()
	if err != nil {
		return nil, err
	}
	return security.Decode(doc)
}

// Connection returns the server timeouts and reconnect policy.
func (m *Manager) Connection() (config.ConnectionSettings, error) {
	if m.disposed.Load() {
		return config.ConnectionSettings{}, disposedError("connection")
	}
	return config.Connection(m.store), nil
}

// ValidateConfiguration validates a full or partial configuration.
// Violations are returned as data, not as an error.
func (m *Manager) ValidateConfiguration(partial security.Document) (validation.Result, error) {
	if m.disposed.Load() {
		return validation.Result{}, disposedError("validateConfiguration")
	}
	res := m.engine.Validate(partial)
	m.metrics.ObserveValidation(res)
	return res, nil
}

// ExportConfiguration serializes the current configuration.
func (m *Manager) ExportConfiguration(ctx context.Context) (string, error) {
	if m.disposed.Load() {
		return "", disposedError("exportConfiguration")
	}
	return m.transfer.Export(ctx, m.store, m.caps)
}

// ImportConfiguration checks data and writes it to the store. With
// skipWarnings, or when ui.confirmDangerousOperations is off, the confirmer
// is not asked. Validation always runs.
func (m *Manager) ImportConfiguration(ctx context.Context, data string, skipWarnings bool) (*transfer.ImportResult, error) {
	if m.disposed.Load() {
		return nil, disposedError("importConfiguration")
	}

	if !config.GenerateUI(m.store).ConfirmDangerousOperations {
		skipWarnings = true
	}
	res, err := m.transfer.Import(ctx, m.store, []byte(data), transfer.ImportOptions{
		Capabilities: m.caps,
		Scope:        m.scope,
		SkipWarnings: skipWarnings,
		Confirmer:    m.confirmer,
	})
	m.metrics.ObserveImport(importOutcome(err))
	if err != nil {
		m.logger.Warn("import failed", zap.Error(err))
	}
	return res, err
}

// GetPlatformCapabilities returns the capability snapshot bound at creation.
func (m *Manager) GetPlatformCapabilities() (platform.Capabilities, error) {
	if m.disposed.Load() {
		return platform.Capabilities{}, disposedError("getPlatformCapabilities")
	}
	return m.caps, nil
}

// Presets returns the built-in presets.
func (m *Manager) Presets() ([]preset.Preset, error) {
	if m.disposed.Load() {
		return nil, disposedError("presets")
	}
	return m.presets.List(), nil
}

// DiffPreset lists the fields the named preset would change.
func (m *Manager) DiffPreset(name string) ([]preset.FieldDiff, error) {
	if m.disposed.Load() {
		return nil, disposedError("diffPreset")
	}
	p, err := m.presets.Get(name)
	if err != nil {
		return nil, err
	}
	return m.presets.Diff(p), nil
}

// ApplyPreset validates and writes the named preset.
func (m *Manager) ApplyPreset(ctx context.Context, name string) error {
	if m.disposed.Load() {
		return disposedError("applyPreset")
	}
	if err := m.presets.Apply(ctx, name); err != nil {
		return err
	}
	m.metrics.ObservePresetApply(name)
	return nil
}

// OnChange registers an observer for store changes. Observers stop
// receiving changes at Dispose.
func (m *Manager) OnChange(observer notify.Observer) (*notify.Subscription, error) {
	if m.disposed.Load() {
		return nil, disposedError("onChange")
	}
	return m.relay.Subscribe(observer), nil
}

// OnPathChange registers an observer for changes at path or below it.
// Reloads of the whole store reach every path observer.
func (m *Manager) OnPathChange(path string, observer notify.Observer) (*notify.Subscription, error) {
	if m.disposed.Load() {
		return nil, disposedError("onPathChange")
	}
	return m.relay.SubscribePath(path, observer), nil
}

// Dispose releases the store subscription and all observers. It is safe to
// call more than once.
func (m *Manager) Dispose() {
	if !m.disposed.CompareAndSwap(false, true) {
		return
	}
	if m.reloads != nil {
		if err := m.reloads.Unwatch(); err != nil {
			m.logger.Warn("settings store unwatch failed", zap.Error(err))
		}
	}
	m.sub.Unsubscribe()
	observers := m.relay.Len()
	m.relay.Close()
	m.logger.Info("settings manager disposed", zap.Int("observers", observers))
}

// Disposed reports whether Dispose has been called.
func (m *Manager) Disposed() bool {
	return m.disposed.Load()
}

func importOutcome(err error) string {
	var failed *validation.ValidationFailedError
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, transfer.ErrImportCancelled):
		return metrics.ResultCancelled
	case errors.Is(err, transfer.ErrInvalidJSON),
		errors.Is(err, transfer.ErrInvalidShape),
		errors.As(err, &failed):
		return metrics.ResultRejected
	default:
		return metrics.ResultFailed
	}
}
