// Package transfer exports configuration snapshots as versioned JSON and
// imports them back into a store.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/dshills/sandboxctl/internal/config"
	"github.com/dshills/sandboxctl/internal/config/registry"
	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/security"
)

// FormatVersion is the snapshot format version written by Export.
const FormatVersion = "1.0.0"

// DefaultAppVersion is reported in exportedBy when no version is set.
const DefaultAppVersion = "0.1.0"

// ExportedConfiguration is a full configuration snapshot.
type ExportedConfiguration struct {
	Version              string                `json:"version"`
	Timestamp            string                `json:"timestamp"`
	ExportedBy           string                `json:"exportedBy"`
	Platform             platform.OS           `json:"platform"`
	PlatformName         string                `json:"platformName"`
	Architecture         string                `json:"architecture"`
	Release              string                `json:"release"`
	NodeVersion          string                `json:"nodeVersion"`
	PlatformCapabilities platform.Capabilities `json:"platformCapabilities"`
	Server               config.ServerSection  `json:"server"`
	UI                   config.UISection      `json:"ui"`
	Security             security.Document     `json:"security"`
}

// Serializer converts between stores and snapshots.
type Serializer struct {
	generator  *config.Generator
	appVersion string
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithAppVersion sets the version reported in exportedBy.
func WithAppVersion(v string) Option {
	return func(s *Serializer) {
		if v != "" {
			s.appVersion = v
		}
	}
}

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Serializer) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Serializer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry sets the registry used to read and write settings.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Serializer) {
		s.generator = config.NewGenerator(reg)
	}
}

// New creates a Serializer.
func New(opts ...Option) *Serializer {
	s := &Serializer{
		generator:  config.NewGenerator(nil),
		appVersion: DefaultAppVersion,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot builds the snapshot for the current store state.
func (s *Serializer) Snapshot(st store.Store, caps platform.Capabilities) ExportedConfiguration {
	return ExportedConfiguration{
		Version:              FormatVersion,
		Timestamp:            s.now().UTC().Format(time.RFC3339),
		ExportedBy:           "sandboxctl/" + s.appVersion,
		Platform:             caps.Platform,
		PlatformName:         caps.PlatformName,
		Architecture:         caps.Architecture,
		Release:              caps.Release,
		NodeVersion:          runtime.Version(),
		PlatformCapabilities: caps,
		Server:               config.GenerateServer(st),
		UI:                   config.GenerateUI(st),
		Security:             s.generator.Generate(st),
	}
}

// Export serializes the current store state as indented JSON ending in a
// newline.
func (s *Serializer) Export(ctx context.Context, st store.Store, caps platform.Capabilities) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	snap := s.Snapshot(st, caps)
	raw, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	out := pretty.PrettyOptions(raw, &pretty.Options{Width: 80, Indent: "  "})

	s.logger.Info("configuration exported",
		zap.String("platform", string(caps.Platform)),
		zap.Int("securityFields", len(snap.Security.Fields())),
		zap.Int("bytes", len(out)),
	)
	return string(out), nil
}
