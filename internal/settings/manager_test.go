package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/sandboxctl/internal/config/notify"
	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/metrics"
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/security"
	"github.com/dshills/sandboxctl/internal/transfer"
	"github.com/dshills/sandboxctl/internal/validation"
)

var linux = platform.ForOS(platform.Linux, "amd64", "6.1.0")

func newManager(t *testing.T, st store.Store, opts ...Option) *Manager {
	t.Helper()
	m, err := New(st, append([]Option{WithDetector(platform.Static(linux))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Dispose)
	return m
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestManagerID(t *testing.T) {
	a := newManager(t, store.NewMemoryStore())
	b := newManager(t, store.NewMemoryStore())

	_, err := uuid.Parse(a.ID())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestGenerateServerConfigDefaults(t *testing.T) {
	m := newManager(t, store.NewMemoryStore())

	doc, err := m.GenerateServerConfig()
	require.NoError(t, err)
	got, _ := doc.Get(security.FieldMaxConcurrentProcesses)
	assert.Equal(t, 10, got)

	cfg, err := m.ServerConfig()
	require.NoError(t, err)
	assert.Equal(t, 3600, cfg.MaxProcessLifetime)
	assert.True(t, cfg.BlockSetuidExecutables)

	conn, err := m.Connection()
	require.NoError(t, err)
	assert.Equal(t, 3, conn.MaxRetries)
}

func TestServerConfigWrongType(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Update(context.Background(), "process.maxConcurrentProcesses", "many", store.ScopeGlobal))
	m := newManager(t, st)

	_, err := m.ServerConfig()
	var decodeErr *security.DecodeError
	assert.True(t, errors.As(err, &decodeErr))

	doc, err := m.GenerateServerConfig()
	require.NoError(t, err)
	res, err := m.ValidateConfiguration(doc)
	require.NoError(t, err)
	assert.Len(t, res.ErrorsFor("maxConcurrentProcesses"), 1)
}

func TestValidateConfigurationRecordsMetrics(t *testing.T) {
	met, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	m := newManager(t, store.NewMemoryStore(), WithMetrics(met))

	res, err := m.ValidateConfiguration(security.Document{"maxConcurrentProcesses": 0})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = m.ValidateConfiguration(security.Document{"maxConcurrentProcesses": 2})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	for path, v := range map[string]any{
		"executable.allowedExecutables":  []string{"node"},
		"process.maxProcessLifetime":     120,
		"sandbox.enableChroot":           true,
		"sandbox.chrootDirectory":        "/srv/jail",
		"resources.defaultMaxCpuPercent": 75,
	} {
		require.NoError(t, st.Update(ctx, path, v, store.ScopeGlobal))
	}
	m := newManager(t, st, WithVersion("2.0.0"))

	before, err := m.GenerateServerConfig()
	require.NoError(t, err)
	out, err := m.ExportConfiguration(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, `"exportedBy": "sandboxctl/2.0.0"`)

	fresh := store.NewMemoryStore()
	other := newManager(t, fresh)
	res, err := other.ImportConfiguration(ctx, out, false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Written)

	after, err := other.GenerateServerConfig()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	met, err := metrics.New(reg)
	require.NoError(t, err)
	m := newManager(t, store.NewMemoryStore(), WithMetrics(met))

	_, err = m.ImportConfiguration(ctx, "{ invalid json }", false)
	assert.ErrorContains(t, err, "Invalid JSON")

	_, err = m.ImportConfiguration(ctx, `{"version":"1.0.0","timestamp":"2026-01-01T00:00:00Z"}`, false)
	assert.ErrorContains(t, err, "missing 'security' section")

	_, err = m.ImportConfiguration(ctx, `{"security":{"maxProcessLifetime":0}}`, true)
	assert.ErrorIs(t, err, validation.ErrValidationFailed)

	count, err := testutil.GatherAndCount(reg, "sandboxctl_imports_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 3.0, importCounter(t, reg, metrics.ResultRejected))
}

func importCounter(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "sandboxctl_imports_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestImportConfirmation(t *testing.T) {
	ctx := context.Background()
	input := `{"platform":"windows","security":{"allowedExecutables":[]}}`

	var asked int
	decline := transfer.ConfirmFunc(func(_ context.Context, p transfer.Prompt) (bool, error) {
		asked++
		assert.True(t, p.CrossPlatform)
		return false, nil
	})

	st := store.NewMemoryStore()
	m := newManager(t, st, WithConfirmer(decline))

	_, err := m.ImportConfiguration(ctx, input, false)
	assert.ErrorIs(t, err, transfer.ErrImportCancelled)
	assert.Equal(t, 1, asked)
	assert.Empty(t, st.Snapshot())

	res, err := m.ImportConfiguration(ctx, input, true)
	require.NoError(t, err)
	assert.Equal(t, 1, asked)
	assert.True(t, res.CrossPlatform)
}

func TestImportSkipsConfirmationWhenDisabled(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Update(ctx, "ui.confirmDangerousOperations", false, store.ScopeGlobal))

	m := newManager(t, st, WithConfirmer(transfer.ConfirmFunc(func(context.Context, transfer.Prompt) (bool, error) {
		t.Fatal("confirmer must not be called")
		return false, nil
	})))

	_, err := m.ImportConfiguration(ctx, `{"platform":"macos","security":{"maxProcessLifetime":30}}`, false)
	require.NoError(t, err)
	assert.Equal(t, 30, store.Get(st, "process.maxProcessLifetime", 0))
}

func TestPresets(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	met, err := metrics.New(reg)
	require.NoError(t, err)
	st := store.NewMemoryStore()
	m := newManager(t, st, WithMetrics(met), WithScope(store.ScopeWorkspace))

	presets, err := m.Presets()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(presets), 3)

	diffs, err := m.DiffPreset("restricted")
	require.NoError(t, err)
	assert.NotEmpty(t, diffs)

	require.NoError(t, m.ApplyPreset(ctx, "restricted"))
	diffs, err = m.DiffPreset("restricted")
	require.NoError(t, err)
	assert.Empty(t, diffs)

	_, ok := st.LookupScope("sandbox.enableNamespaces", store.ScopeWorkspace)
	assert.True(t, ok)

	_, err = m.DiffPreset("unknown")
	assert.Error(t, err)
	assert.Error(t, m.ApplyPreset(ctx, "unknown"))

	count, err := testutil.GatherAndCount(reg, "sandboxctl_preset_applies_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOnChangeRelaysStoreChanges(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st)

	var mu sync.Mutex
	var changes []notify.Change
	sub, err := m.OnChange(func(c notify.Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})
	require.NoError(t, err)
	require.NotNil(t, sub)

	require.NoError(t, st.Update(ctx, "process.maxProcessLifetime", 90, store.ScopeGlobal))
	require.NoError(t, st.Update(ctx, "process.maxProcessLifetime", nil, store.ScopeGlobal))

	mu.Lock()
	require.Len(t, changes, 2)
	assert.Equal(t, "process.maxProcessLifetime", changes[0].Path)
	assert.Equal(t, notify.ChangeSet, changes[0].Type)
	assert.Equal(t, notify.ChangeDelete, changes[1].Type)
	mu.Unlock()

	m.Dispose()
	require.NoError(t, st.Update(ctx, "process.maxProcessLifetime", 45, store.ScopeGlobal))

	mu.Lock()
	assert.Len(t, changes, 2)
	mu.Unlock()
}

func TestOnPathChange(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st)

	var mu sync.Mutex
	var paths []string
	_, err := m.OnPathChange("process", func(c notify.Change) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, c.Path)
	})
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, "process.maxProcessLifetime", 90, store.ScopeGlobal))
	require.NoError(t, st.Update(ctx, "ui.refreshInterval", 500, store.ScopeGlobal))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"process.maxProcessLifetime"}, paths)
}

func writeSettingsFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestOnChangeFollowsFileEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	writeSettingsFile(t, path, `{"process":{"maxConcurrentProcesses":4}}`)

	st, err := store.OpenFile(path)
	require.NoError(t, err)
	defer st.Close()
	m := newManager(t, st)

	reloaded := make(chan notify.Change, 4)
	_, err = m.OnChange(func(c notify.Change) {
		select {
		case reloaded <- c:
		default:
		}
	})
	require.NoError(t, err)

	doc, err := m.GenerateServerConfig()
	require.NoError(t, err)
	got, _ := doc.Get(security.FieldMaxConcurrentProcesses)
	require.Equal(t, 4, got)

	writeSettingsFile(t, path, `{"process":{"maxConcurrentProcesses":7}}`)

	select {
	case c := <-reloaded:
		assert.Equal(t, notify.ChangeReload, c.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("no change observed after editing the settings file")
	}

	doc, err = m.GenerateServerConfig()
	require.NoError(t, err)
	got, _ = doc.Get(security.FieldMaxConcurrentProcesses)
	assert.Equal(t, 7, got)
}

func TestDisposeStopsWatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	writeSettingsFile(t, path, `{"process":{"maxConcurrentProcesses":4}}`)

	st, err := store.OpenFile(path)
	require.NoError(t, err)
	defer st.Close()

	core, logs := observer.New(zap.InfoLevel)
	m, err := New(st, WithDetector(platform.Static(linux)), WithLogger(zap.New(core)))
	require.NoError(t, err)
	created := logs.FilterMessage("settings manager created").All()
	require.Len(t, created, 1)
	assert.Equal(t, true, created[0].ContextMap()["watching"])

	m.Dispose()
	writeSettingsFile(t, path, `{"process":{"maxConcurrentProcesses":7}}`)
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, 4, store.Get(st, "process.maxConcurrentProcesses", 0))
}

func TestDispose(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	m, err := New(store.NewMemoryStore(), WithDetector(platform.Static(linux)), WithLogger(zap.New(core)))
	require.NoError(t, err)

	assert.False(t, m.Disposed())
	m.Dispose()
	m.Dispose()
	assert.True(t, m.Disposed())

	assert.Equal(t, 1, logs.FilterMessage("settings manager created").Len())
	assert.Equal(t, 1, logs.FilterMessage("settings manager disposed").Len())
	for _, entry := range logs.All() {
		assert.Equal(t, m.ID(), entry.ContextMap()["managerId"])
	}

	_, err = m.GenerateServerConfig()
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.ServerConfig()
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.Connection()
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.ValidateConfiguration(security.Document{})
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.ExportConfiguration(ctx)
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.ImportConfiguration(ctx, `{"security":{}}`, true)
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.GetPlatformCapabilities()
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.Presets()
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.DiffPreset("balanced")
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, m.ApplyPreset(ctx, "balanced"), ErrDisposed)
	_, err = m.OnPathChange("ui", func(notify.Change) {})
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = m.OnChange(func(notify.Change) {})
	assert.ErrorIs(t, err, ErrDisposed)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "onChange", opErr.Op)
	assert.Equal(t, "onChange: settings manager disposed", err.Error())
}

func TestDisposeConcurrent(t *testing.T) {
	m, err := New(store.NewMemoryStore(), WithDetector(platform.Static(linux)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Dispose()
		}()
	}
	wg.Wait()
	assert.True(t, m.Disposed())
}

func TestGetPlatformCapabilities(t *testing.T) {
	m := newManager(t, store.NewMemoryStore(), WithDetector(platform.Static(platform.ForOS(platform.MacOS, "arm64", "23.1.0"))))
	caps, err := m.GetPlatformCapabilities()
	require.NoError(t, err)
	assert.Equal(t, platform.MacOS, caps.Platform)
	assert.False(t, caps.SupportsNamespaces)

	res, err := m.ValidateConfiguration(security.Document{"enableNamespaces": true})
	require.NoError(t, err)
	require.Len(t, res.WarningsFor("enableNamespaces"), 1)
	assert.Contains(t, res.WarningsFor("enableNamespaces")[0].Message, "not supported on macOS")
}
