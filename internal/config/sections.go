package config

import (
	"time"

	"github.com/dshills/sandboxctl/internal/config/registry"
	"github.com/dshills/sandboxctl/internal/config/store"
)

// Section structs are snapshots. Mutating one does not modify the store;
// write through store.Store.Update instead.

// ServerSection is the "server" section of an exported configuration.
type ServerSection struct {
	// ServerPath is the process server executable; empty uses the bundled one.
	ServerPath string `json:"serverPath"`

	// UseConfigFile starts the server with ConfigPath instead of generated settings.
	UseConfigFile bool `json:"useConfigFile"`

	ConfigPath string `json:"configPath"`
	AutoStart  bool   `json:"autoStart"`

	// LogLevel is one of error, warn, info, debug.
	LogLevel string `json:"logLevel"`
}

// UISection is the "ui" section of an exported configuration.
type UISection struct {
	// RefreshInterval is in milliseconds.
	RefreshInterval            int  `json:"refreshInterval"`
	ShowResourceUsage          bool `json:"showResourceUsage"`
	ShowSecurityWarnings       bool `json:"showSecurityWarnings"`
	ConfirmDangerousOperations bool `json:"confirmDangerousOperations"`
}

// ConnectionSettings controls how the client talks to the process server.
type ConnectionSettings struct {
	InitializationTimeout  time.Duration
	StandardRequestTimeout time.Duration
	MaxRetries             int
	RetryDelay             time.Duration
}

// GenerateServer reads the server section. Wrong-typed values fall back to
// the registry default.
func GenerateServer(s store.Store) ServerSection {
	return ServerSection{
		ServerPath:    getOr(s, "server.serverPath", ""),
		UseConfigFile: getOr(s, "server.useConfigFile", false),
		ConfigPath:    getOr(s, "server.configPath", ""),
		AutoStart:     getOr(s, "server.autoStart", true),
		LogLevel:      getOr(s, "server.logLevel", "info"),
	}
}

// GenerateUI reads the ui section.
func GenerateUI(s store.Store) UISection {
	return UISection{
		RefreshInterval:            getOr(s, "ui.refreshInterval", 2000),
		ShowResourceUsage:          getOr(s, "ui.showResourceUsage", true),
		ShowSecurityWarnings:       getOr(s, "ui.showSecurityWarnings", true),
		ConfirmDangerousOperations: getOr(s, "ui.confirmDangerousOperations", true),
	}
}

// Connection reads the timeout and reconnect settings.
func Connection(s store.Store) ConnectionSettings {
	return ConnectionSettings{
		InitializationTimeout:  millis(getOr(s, registry.PathTimeoutInitialization, 60000)),
		StandardRequestTimeout: millis(getOr(s, registry.PathTimeoutStandardRequest, 30000)),
		MaxRetries:             getOr(s, registry.PathReconnectMaxRetries, 3),
		RetryDelay:             millis(getOr(s, registry.PathReconnectRetryDelay, 2000)),
	}
}

// getOr reads path as T, preferring the registry default over fallback.
func getOr[T any](s store.Store, path string, fallback T) T {
	if def, ok := registry.Builtin().Default(path).(T); ok {
		fallback = def
	}
	return store.Get(s, path, fallback)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
