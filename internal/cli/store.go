package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/sandboxctl/internal/config/loader"
	"github.com/dshills/sandboxctl/internal/config/notify"
	"github.com/dshills/sandboxctl/internal/config/registry"
	"github.com/dshills/sandboxctl/internal/config/store"
)

// Store locator schemes.
const (
	schemeSQLite     = "sqlite://"
	schemePostgres   = "postgres://"
	schemePostgreSQL = "postgresql://"
)

var errNoKeys = errors.New("store cannot list its settings")

// closableStore is a store the CLI owns for the length of one command.
type closableStore interface {
	store.Store
	Close() error
}

// defaultStorePath returns the settings file used when --store is empty.
func defaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(dir, "sandboxctl", "settings.json"), nil
}

// openStore opens the backing store named by locator: a JSON, TOML or YAML
// file path, sqlite://path or a postgres:// URL.
func openStore(ctx context.Context, locator string, logger *zap.Logger) (closableStore, error) {
	switch {
	case strings.HasPrefix(locator, schemeSQLite):
		return store.OpenSQL(ctx, store.DriverSQLite, strings.TrimPrefix(locator, schemeSQLite), store.WithSQLLogger(logger))
	case strings.HasPrefix(locator, schemePostgres), strings.HasPrefix(locator, schemePostgreSQL):
		return store.OpenSQL(ctx, store.DriverPostgres, locator, store.WithSQLLogger(logger))
	}

	if locator == "" {
		path, err := defaultStorePath()
		if err != nil {
			return nil, err
		}
		locator = path
	}
	if err := os.MkdirAll(filepath.Dir(locator), 0o755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}
	return store.OpenFile(locator, store.WithFileLogger(logger))
}

// envOverlay serves SANDBOXCTL_* values ahead of the backing store. Writes
// go to the backing store; an overridden path keeps reading the
// environment value.
type envOverlay struct {
	env  *store.MemoryStore
	base closableStore
}

// withEnvironment wraps base with the overrides found in the environment.
// It returns base unchanged when no variable is set.
func withEnvironment(base closableStore, reg *registry.Registry) (closableStore, error) {
	data, err := loader.NewEnvLoader(loader.DefaultEnvPrefix, reg).Load()
	if err != nil {
		return nil, fmt.Errorf("reading %s* environment: %w", loader.DefaultEnvPrefix, err)
	}
	if len(data) == 0 {
		return base, nil
	}
	return &envOverlay{env: store.NewMemoryStore(store.WithEnvironment(data)), base: base}, nil
}

func (o *envOverlay) Lookup(path string) (any, bool) {
	if v, ok := o.env.Lookup(path); ok {
		return v, true
	}
	return o.base.Lookup(path)
}

func (o *envOverlay) Update(ctx context.Context, path string, value any, scope store.Scope) error {
	return o.base.Update(ctx, path, value, scope)
}

// Subscribe relays changes of the backing store when it publishes them.
func (o *envOverlay) Subscribe(observer notify.Observer) *notify.Subscription {
	if w, ok := o.base.(store.Watchable); ok {
		return w.Subscribe(observer)
	}
	return nil
}

// Keys lists the explicit values of the backing store. Environment
// overrides are not stored, so they are not listed.
func (o *envOverlay) Keys(ctx context.Context, scope store.Scope) ([]string, error) {
	if l, ok := o.base.(store.Lister); ok {
		return l.Keys(ctx, scope)
	}
	return nil, errNoKeys
}

// Watch follows outside edits of the backing store when it supports them.
func (o *envOverlay) Watch() error {
	if r, ok := o.base.(store.Reloadable); ok {
		return r.Watch()
	}
	return nil
}

func (o *envOverlay) Unwatch() error {
	if r, ok := o.base.(store.Reloadable); ok {
		return r.Unwatch()
	}
	return nil
}

func (o *envOverlay) Close() error {
	o.env.Close()
	return o.base.Close()
}
