package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/sandboxctl/internal/config"
	"github.com/dshills/sandboxctl/internal/config/store"
	"github.com/dshills/sandboxctl/internal/platform"
	"github.com/dshills/sandboxctl/internal/validation"
)

var (
	linux   = platform.ForOS(platform.Linux, "amd64", "6.1.0")
	windows = platform.ForOS(platform.Windows, "amd64", "10.0.22631")
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
}

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	for path, value := range map[string]any{
		"executable.allowedExecutables":      []string{"node", "python3"},
		"process.maxConcurrentProcesses":     4,
		"resources.defaultMaxCpuPercent":     25,
		"sandbox.enableNamespaces":           true,
		"sandbox.namespaces.pid":             true,
		"sandbox.enableSeccomp":              true,
		"sandbox.seccompProfile":             "strict",
		"server.logLevel":                    "debug",
		"ui.refreshInterval":                 1000,
		"executable.blockedArgumentPatterns": []string{`--eval`},
	} {
		require.NoError(t, st.Update(ctx, path, value, store.ScopeGlobal))
	}
	return st
}

func TestExportFormat(t *testing.T) {
	s := New(WithClock(fixedClock), WithAppVersion("1.2.3"))
	out, err := s.Export(context.Background(), store.NewMemoryStore(), linux)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "\n  \"version\": \"1.0.0\"")

	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snap))

	for _, key := range []string{
		"version", "timestamp", "exportedBy", "platform", "platformName", "architecture",
		"release", "nodeVersion", "platformCapabilities", "server", "ui", "security",
	} {
		assert.Contains(t, snap, key)
	}
	assert.Len(t, snap, 12)

	assert.Regexp(t, regexp.MustCompile(`^\d+\.\d+\.\d+$`), snap["version"])
	ts, err := time.Parse(time.RFC3339, snap["timestamp"].(string))
	require.NoError(t, err)
	assert.True(t, ts.Equal(fixedClock()))
	assert.Equal(t, "sandboxctl/1.2.3", snap["exportedBy"])
	assert.Equal(t, "linux", snap["platform"])
	assert.Equal(t, "Linux", snap["platformName"])
	assert.Equal(t, "amd64", snap["architecture"])
	assert.Equal(t, "6.1.0", snap["release"])
	assert.Equal(t, runtime.Version(), snap["nodeVersion"])

	server := snap["server"].(map[string]any)
	assert.Equal(t, true, server["autoStart"])
	assert.Equal(t, "info", server["logLevel"])
	ui := snap["ui"].(map[string]any)
	assert.Equal(t, float64(2000), ui["refreshInterval"])
	assert.Equal(t, true, ui["showResourceUsage"])

	sec := snap["security"].(map[string]any)
	assert.Equal(t, float64(10), sec["maxConcurrentProcesses"])
	assert.NotContains(t, sec, "chrootDirectory")
}

func TestExportReparseIsStable(t *testing.T) {
	out, err := New().Export(context.Background(), seededStore(t), linux)
	require.NoError(t, err)

	var first any
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	again, err := json.Marshal(first)
	require.NoError(t, err)
	var second any
	require.NoError(t, json.Unmarshal(again, &second))

	assert.Equal(t, first, second)
}

func TestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Export(ctx, store.NewMemoryStore(), linux)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededStore(t)
	before := config.Generate(src)
	serverBefore := config.GenerateServer(src)
	uiBefore := config.GenerateUI(src)

	s := New()
	out, err := s.Export(ctx, src, linux)
	require.NoError(t, err)

	for name, dst := range map[string]*store.MemoryStore{
		"same store":  src,
		"fresh store": store.NewMemoryStore(),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := s.Import(ctx, dst, []byte(out), ImportOptions{Capabilities: linux})
			require.NoError(t, err)
			assert.False(t, res.CrossPlatform)
			assert.Empty(t, res.Skipped)
			assert.Contains(t, res.Written, "sandbox.namespaces.pid")
			assert.Contains(t, res.Written, "server.logLevel")
			assert.Contains(t, res.Written, "ui.refreshInterval")

			assert.Equal(t, before, config.Generate(dst))
			assert.Equal(t, serverBefore, config.GenerateServer(dst))
			assert.Equal(t, uiBefore, config.GenerateUI(dst))
		})
	}
}

func TestImportParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"garbage", `{ invalid json }`},
		{"trailing comma", `{"version":"1.0.0",}`},
		{"empty", ``},
		{"truncated", `{"security": {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			_, err := New().Import(context.Background(), st, []byte(tt.input), ImportOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "Invalid JSON")
			assert.ErrorIs(t, err, ErrInvalidJSON)

			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestImportShapeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		contain string
	}{
		{"array", `[1, 2]`, "expected a JSON object"},
		{"string", `"security"`, "expected a JSON object"},
		{"missing security", `{"version":"1.0.0","timestamp":"2026-01-01T00:00:00Z"}`, "missing 'security' section"},
		{"security not object", `{"security": [1]}`, "security"},
		{"server not object", `{"security": {}, "server": true}`, "server"},
		{"bad version", `{"security": {}, "version": "v1"}`, "version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			_, err := New().Import(context.Background(), st, []byte(tt.input), ImportOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidShape)
			assert.Contains(t, err.Error(), "Invalid configuration")
			assert.Contains(t, err.Error(), tt.contain)
			assert.Empty(t, st.Snapshot())
		})
	}
}

func TestImportValidationError(t *testing.T) {
	st := store.NewMemoryStore()
	input := `{"security": {"maxConcurrentProcesses": -5, "enableChroot": true}, "ui": {"refreshInterval": 5}}`

	_, err := New().Import(context.Background(), st, []byte(input), ImportOptions{Capabilities: linux})
	require.Error(t, err)
	assert.ErrorIs(t, err, validation.ErrValidationFailed)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "maxConcurrentProcesses")
	assert.Contains(t, err.Error(), "chrootDirectory")
	assert.Contains(t, err.Error(), "ui.refreshInterval")
	assert.Empty(t, st.Snapshot())
}

func TestImportSkipsUnknownKeys(t *testing.T) {
	st := store.NewMemoryStore()
	input := `{"security": {"maxProcessLifetime": 60, "futureFlag": true}, "server": {"color": "blue"}}`

	res, err := New().Import(context.Background(), st, []byte(input), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"server.color", "security.futureFlag"}, res.Skipped)
	assert.Equal(t, []string{"process.maxProcessLifetime"}, res.Written)
	assert.Equal(t, 60, store.Get(st, "process.maxProcessLifetime", 0))
}

func TestImportWritesScope(t *testing.T) {
	st := store.NewMemoryStore()
	input := `{"security": {"maxProcessLifetime": 60}}`

	_, err := New().Import(context.Background(), st, []byte(input), ImportOptions{Scope: store.ScopeWorkspace})
	require.NoError(t, err)
	_, global := st.LookupScope("process.maxProcessLifetime", store.ScopeGlobal)
	ws, ok := st.LookupScope("process.maxProcessLifetime", store.ScopeWorkspace)
	assert.False(t, global)
	require.True(t, ok)
	assert.Equal(t, 60, ws)
}

func TestImportConfirmation(t *testing.T) {
	ctx := context.Background()
	exported, err := New().Export(ctx, store.NewMemoryStore(), windows)
	require.NoError(t, err)

	t.Run("declined", func(t *testing.T) {
		st := store.NewMemoryStore()
		var prompt Prompt
		confirm := ConfirmFunc(func(_ context.Context, p Prompt) (bool, error) {
			prompt = p
			return false, nil
		})

		_, err := New().Import(ctx, st, []byte(exported), ImportOptions{Capabilities: linux, Confirmer: confirm})
		assert.ErrorIs(t, err, ErrImportCancelled)
		assert.Empty(t, st.Snapshot())
		assert.True(t, prompt.CrossPlatform)
		assert.Equal(t, "windows", prompt.SourcePlatform)
		assert.Equal(t, "linux", prompt.TargetPlatform)
	})

	t.Run("accepted", func(t *testing.T) {
		st := store.NewMemoryStore()
		calls := 0
		confirm := ConfirmFunc(func(context.Context, Prompt) (bool, error) {
			calls++
			return true, nil
		})

		res, err := New().Import(ctx, st, []byte(exported), ImportOptions{Capabilities: linux, Confirmer: confirm})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.True(t, res.CrossPlatform)
		assert.NotEmpty(t, res.Written)
	})

	t.Run("skip warnings", func(t *testing.T) {
		st := store.NewMemoryStore()
		confirm := ConfirmFunc(func(context.Context, Prompt) (bool, error) {
			t.Fatal("confirmer must not be called")
			return false, nil
		})

		res, err := New().Import(ctx, st, []byte(exported), ImportOptions{
			Capabilities: linux, Confirmer: confirm, SkipWarnings: true,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Written)
	})

	t.Run("confirmer error", func(t *testing.T) {
		boom := errors.New("no terminal")
		confirm := ConfirmFunc(func(context.Context, Prompt) (bool, error) { return false, boom })

		_, err := New().Import(ctx, store.NewMemoryStore(), []byte(exported), ImportOptions{Capabilities: linux, Confirmer: confirm})
		assert.ErrorIs(t, err, boom)
	})
}

func TestImportNoPromptWithoutWarnings(t *testing.T) {
	input := `{"platform": "linux", "security": {"allowedExecutables": ["node"]}}`
	confirm := ConfirmFunc(func(context.Context, Prompt) (bool, error) {
		t.Fatal("confirmer must not be called")
		return false, nil
	})

	res, err := New().Import(context.Background(), store.NewMemoryStore(), []byte(input), ImportOptions{Capabilities: linux, Confirmer: confirm})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}

type failingStore struct {
	*store.MemoryStore
	failAfter int
	err       error
}

func (f *failingStore) Update(ctx context.Context, path string, value any, scope store.Scope) error {
	if f.failAfter == 0 {
		return f.err
	}
	f.failAfter--
	return f.MemoryStore.Update(ctx, path, value, scope)
}

func TestImportStoreFailurePropagates(t *testing.T) {
	diskFull := errors.New("disk full")
	st := &failingStore{MemoryStore: store.NewMemoryStore(), failAfter: 2, err: diskFull}
	input := `{"security": {"maxProcessLifetime": 60, "maxConcurrentProcesses": 3, "tmpfsSize": 64}}`

	res, err := New().Import(context.Background(), st, []byte(input), ImportOptions{})
	assert.Same(t, diskFull, err)
	require.NotNil(t, res)
	assert.Len(t, res.Written, 2)
}

func TestErrorTypes(t *testing.T) {
	perr := &ParseError{Err: errors.New("unexpected end")}
	assert.Equal(t, "Invalid JSON: unexpected end", perr.Error())
	assert.Equal(t, "Invalid JSON", (&ParseError{}).Error())

	serr := &ShapeError{Reason: "missing 'security' section"}
	assert.Equal(t, "Invalid configuration: missing 'security' section", serr.Error())
	assert.Nil(t, serr.Unwrap())
	assert.False(t, errors.Is(serr, ErrInvalidJSON))
}
