package transfer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dshills/sandboxctl/internal/config/registry"
	"github.com/dshills/sandboxctl/internal/config/schema"
	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/security"
	"github.com/dshills/sandboxctl/internal/validation"
)

// Prompt describes what an import is about to do, for confirmation.
type Prompt struct {
	Warnings       []validation.Issue
	SourcePlatform string
	TargetPlatform string
	CrossPlatform  bool
}

// Confirmer asks whether an import with warnings should proceed.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Capabilities describes the current host. Warnings are computed
	// against it.
	Capabilities platform.Capabilities

	// Scope is where values are written.
	Scope store.Scope

	// SkipWarnings writes without asking Confirmer. Validation still runs.
	SkipWarnings bool

	// Confirmer is asked when there are warnings or the snapshot comes from
	// another platform. A nil Confirmer accepts.
	Confirmer Confirmer
}

// ImportResult reports what an import changed.
type ImportResult struct {
	// Written lists the store paths written, in write order.
	Written []string

	// Skipped lists snapshot keys no setting maps to, as section.key.
	Skipped []string

	Warnings       []validation.Issue
	SourcePlatform string
	CrossPlatform  bool
}

// Import checks a snapshot and writes its server, ui and security sections
// to st. Parse and shape problems are reported before anything is written.
// A store failure aborts the import and is returned unchanged; values
// already written stay written.
func (s *Serializer) Import(ctx context.Context, st store.Store, data []byte, opts ImportOptions) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		_, err := schema.ParseJSON(data)
		if err == nil {
			err = errors.New("malformed document")
		}
		return nil, &ParseError{Err: err}
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return nil, &ShapeError{Reason: "expected a JSON object"}
	}
	if !parsed.Get("security").Exists() {
		return nil, &ShapeError{Reason: "missing 'security' section"}
	}

	instance, err := schema.ParseJSON(data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if violations := schema.Envelope().Validate(instance); len(violations) > 0 {
		return nil, &ShapeError{Reason: violations.Error(), Violations: violations}
	}

	snapshot := instance.(map[string]any)
	doc := security.Document(security.Normalize(snapshot["security"]).(map[string]any))
	server := sectionOf(snapshot, "server")
	ui := sectionOf(snapshot, "ui")

	result := validation.New(opts.Capabilities).Validate(doc)
	result.Errors = append(result.Errors, s.checkSection(registry.SectionServer, server)...)
	result.Errors = append(result.Errors, s.checkSection(registry.SectionUI, ui)...)
	if len(result.Errors) > 0 {
		result.Valid = false
		s.logger.Info("import rejected", zap.Strings("settings", result.Settings()))
		return nil, result.Err()
	}

	res := &ImportResult{Warnings: result.Warnings}
	if src, ok := snapshot["platform"].(string); ok {
		res.SourcePlatform = src
		res.CrossPlatform = src != "" && src != string(opts.Capabilities.Platform)
	}

	if (len(res.Warnings) > 0 || res.CrossPlatform) && !opts.SkipWarnings && opts.Confirmer != nil {
		ok, err := opts.Confirmer.Confirm(ctx, Prompt{
			Warnings:       res.Warnings,
			SourcePlatform: res.SourcePlatform,
			TargetPlatform: string(opts.Capabilities.Platform),
			CrossPlatform:  res.CrossPlatform,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrImportCancelled
		}
	}

	if err := s.writeSection(ctx, st, registry.SectionServer, server, opts.Scope, res); err != nil {
		return res, err
	}
	if err := s.writeSection(ctx, st, registry.SectionUI, ui, opts.Scope, res); err != nil {
		return res, err
	}
	if err := s.writeSecurity(ctx, st, doc, opts.Scope, res); err != nil {
		return res, err
	}

	s.logger.Info("configuration imported",
		zap.Int("written", len(res.Written)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Bool("crossPlatform", res.CrossPlatform),
	)
	return res, nil
}

// checkSection validates server or ui values against their settings.
func (s *Serializer) checkSection(section registry.Section, values map[string]any) []validation.Issue {
	var issues []validation.Issue
	for _, key := range sortedKeys(values) {
		setting := s.generator.Registry().ByField(section, key)
		if setting == nil || values[key] == nil {
			continue
		}
		if err := setting.Validate(values[key]); err != nil {
			issues = append(issues, validation.Issue{
				Setting:    setting.Path,
				Message:    err.Error(),
				Suggestion: fmt.Sprintf("Use a valid %s value, e.g. the default %#v", setting.Type, setting.Default),
				Code:       validation.CodeTypeMismatch,
			})
		}
	}
	return issues
}

func (s *Serializer) writeSection(ctx context.Context, st store.Store, section registry.Section, values map[string]any, scope store.Scope, res *ImportResult) error {
	for _, key := range sortedKeys(values) {
		setting := s.generator.Registry().ByField(section, key)
		if setting == nil {
			res.Skipped = append(res.Skipped, string(section)+"."+key)
			continue
		}
		if err := st.Update(ctx, setting.Path, values[key], scope); err != nil {
			return err
		}
		res.Written = append(res.Written, setting.Path)
	}
	return nil
}

func (s *Serializer) writeSecurity(ctx context.Context, st store.Store, doc security.Document, scope store.Scope, res *ImportResult) error {
	for _, field := range doc.Fields() {
		setting := s.generator.Registry().ByField(registry.SectionSecurity, field)
		if setting == nil {
			res.Skipped = append(res.Skipped, string(registry.SectionSecurity)+"."+field)
			continue
		}
		value, _ := doc.Get(field)
		if err := st.Update(ctx, setting.Path, value, scope); err != nil {
			return err
		}
		res.Written = append(res.Written, setting.Path)
	}
	return nil
}

func sectionOf(snapshot map[string]any, name string) map[string]any {
	m, ok := snapshot[name].(map[string]any)
	if !ok {
		return nil
	}
	return security.Normalize(m).(map[string]any)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
