package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/sandboxctl/internal/config/loader"
	"github.com/dshills/sandboxctl/internal/config/notify"
)

func TestFileStore_Formats(t *testing.T) {
	ctx := context.Background()

	for _, ext := range []string{"json", "toml", "yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "settings."+ext)

			s, err := OpenFile(path)
			require.NoError(t, err)
			defer s.Close()

			_, ok := s.Lookup("ui.refreshInterval")
			assert.False(t, ok)

			require.NoError(t, s.Update(ctx, "ui.refreshInterval", 1500, ScopeGlobal))
			require.NoError(t, s.Update(ctx, "sandbox.namespaces.pid", true, ScopeGlobal))
			require.NoError(t, s.Update(ctx, "executable.allowedExecutables", []string{"node"}, ScopeGlobal))

			reopened, err := OpenFile(path)
			require.NoError(t, err)
			defer reopened.Close()

			assert.Equal(t, 1500, Get(reopened, "ui.refreshInterval", 0))
			assert.True(t, Get(reopened, "sandbox.namespaces.pid", false))
			assert.Equal(t, []string{"node"}, Get(reopened, "executable.allowedExecutables", []string(nil)))

			require.NoError(t, reopened.Update(ctx, "ui.refreshInterval", nil, ScopeGlobal))
			_, ok = reopened.Lookup("ui.refreshInterval")
			assert.False(t, ok, "reset should remove the key")
		})
	}
}

func TestFileStore_JSONPreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"editor":{"fontSize":14},"ui":{"refreshInterval":2000}}`), 0o600))

	s, err := OpenFile(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Update(context.Background(), "ui.refreshInterval", 500, ScopeGlobal))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fontSize": 14`)
	assert.Contains(t, string(data), `"refreshInterval": 500`)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}

func TestFileStore_RejectsWorkspaceScope(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	defer s.Close()

	err = s.Update(context.Background(), "ui.refreshInterval", 1, ScopeWorkspace)
	assert.ErrorIs(t, err, ErrUnsupportedScope)
}

func TestFileStore_OpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenFile(filepath.Join(dir, "settings.ini"))
	assert.ErrorIs(t, err, loader.ErrUnknownFormat)

	bad := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{ invalid json }`), 0o600))
	_, err = OpenFile(bad)
	var perr *loader.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestFileStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\nrefreshInterval = 2000\n"), 0o600))

	s, err := OpenFile(path)
	require.NoError(t, err)
	defer s.Close()

	var reloads int
	s.Subscribe(func(c notify.Change) {
		if c.Type == notify.ChangeReload {
			reloads++
		}
	})

	require.NoError(t, s.Reload())
	assert.Equal(t, 0, reloads, "unchanged content should not publish")

	require.NoError(t, os.WriteFile(path, []byte("[ui]\nrefreshInterval = 750\n"), 0o600))
	require.NoError(t, s.Reload())
	assert.Equal(t, 1, reloads)
	assert.Equal(t, 750, Get(s, "ui.refreshInterval", 0))
}

func TestFileStore_WatchReloadsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ui":{"refreshInterval":2000}}`), 0o600))

	s, err := OpenFile(path)
	require.NoError(t, err)
	defer s.Close()

	reloaded := make(chan struct{}, 4)
	s.Subscribe(func(c notify.Change) {
		if c.Type == notify.ChangeReload {
			reloaded <- struct{}{}
		}
	})
	require.NoError(t, s.Watch())
	require.NoError(t, s.Watch())

	require.NoError(t, writeAtomic(path, []byte(`{"ui":{"refreshInterval":900}}`)))

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("store did not reload")
	}
	assert.Equal(t, 900, Get(s, "ui.refreshInterval", 0))
}

func TestFileStore_Close(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	require.NoError(t, s.Watch())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Update(context.Background(), "ui.refreshInterval", 1, ScopeGlobal), ErrClosed)
	assert.ErrorIs(t, s.Watch(), ErrClosed)
}

func TestFileStore_Keys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ui":{"theme":"dark"},"security":{"enableChroot":true}}`), 0o600))

	s, err := OpenFile(path)
	require.NoError(t, err)
	defer s.Close()

	keys, err := s.Keys(ctx, ScopeGlobal)
	require.NoError(t, err)
	assert.Equal(t, []string{"security.enableChroot", "ui.theme"}, keys)

	keys, err = s.Keys(ctx, ScopeWorkspace)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileStore_Unwatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ui":{"refreshInterval":2000}}`), 0o600))

	s, err := OpenFile(path)
	require.NoError(t, err)
	defer s.Close()

	var st Reloadable = s
	require.NoError(t, st.Unwatch())
	require.NoError(t, st.Watch())
	require.NoError(t, st.Unwatch())
	require.NoError(t, st.Unwatch())

	require.NoError(t, writeAtomic(path, []byte(`{"ui":{"refreshInterval":900}}`)))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 2000, Get(s, "ui.refreshInterval", 0), "edits after Unwatch should not be picked up")

	require.NoError(t, s.Reload())
	assert.Equal(t, 900, Get(s, "ui.refreshInterval", 0))
}
