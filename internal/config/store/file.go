package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/dshills/sandboxctl/internal/config/layer"
	"github.com/dshills/sandboxctl/internal/config/loader"
	"github.com/dshills/sandboxctl/internal/config/notify"
	"github.com/dshills/sandboxctl/internal/config/watcher"
)

// FileStore keeps settings in a single JSON, TOML or YAML document. The file
// holds one scope; it accepts only global writes.
//
// JSON documents are edited in place with gjson and sjson so that keys the
// store does not know about survive a write. TOML and YAML documents are
// decoded, edited as maps and re-encoded.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	format   loader.Format
	raw      []byte
	data     map[string]any
	notifier *notify.Notifier
	watcher  *watcher.Watcher
	logger   *zap.Logger
	closed   bool
}

// reloadDebounce collapses the burst of events an editor save produces.
const reloadDebounce = 50 * time.Millisecond

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets the logger used for reload events.
func WithFileLogger(logger *zap.Logger) FileOption {
	return func(f *FileStore) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// OpenFile loads the document at path. A missing file is treated as empty
// and created on the first write.
func OpenFile(path string, opts ...FileOption) (*FileStore, error) {
	format, err := loader.FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f := &FileStore{
		path:     path,
		format:   format,
		notifier: notify.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}
	data, err := loader.Decode(format, path, raw)
	if err != nil {
		return nil, err
	}
	if format == loader.FormatJSON && len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	f.raw, f.data = raw, data
	return f, nil
}

// Path returns the document path.
func (f *FileStore) Path() string {
	return f.path
}

// Format returns the document encoding.
func (f *FileStore) Format() loader.Format {
	return f.format
}

// Lookup implements Store.
func (f *FileStore) Lookup(path string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.format == loader.FormatJSON {
		res := gjson.GetBytes(f.raw, path)
		if !res.Exists() {
			return nil, false
		}
		return res.Value(), true
	}
	return layer.GetByPath(f.data, path)
}

// Update implements Store. Only ScopeGlobal is accepted.
func (f *FileStore) Update(ctx context.Context, path string, value any, scope Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPath(path); err != nil {
		return err
	}
	if scope != ScopeGlobal {
		return fmt.Errorf("%w: file store holds only global settings, got %s", ErrUnsupportedScope, scope)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}

	old, existed := f.lookupLocked(path)
	if value == nil && !existed {
		f.mu.Unlock()
		return nil
	}

	raw, data, err := f.apply(path, value)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	if err := writeAtomic(f.path, raw); err != nil {
		f.mu.Unlock()
		return err
	}
	f.raw, f.data = raw, data
	f.mu.Unlock()

	if value == nil {
		f.notifier.NotifyDelete(path, scope.String(), old, "file")
	} else {
		f.notifier.NotifySet(path, scope.String(), old, value, "file")
	}
	return nil
}

// apply returns the new encoded document and map with path changed.
func (f *FileStore) apply(path string, value any) ([]byte, map[string]any, error) {
	if f.format == loader.FormatJSON {
		var (
			raw []byte
			err error
		)
		if value == nil {
			raw, err = sjson.DeleteBytes(f.raw, path)
		} else {
			raw, err = sjson.SetBytes(f.raw, path, value)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("updating %s: %w", path, err)
		}
		raw = pretty.PrettyOptions(raw, &pretty.Options{Width: 80, Indent: "  "})
		data, err := loader.Decode(loader.FormatJSON, f.path, raw)
		if err != nil {
			return nil, nil, err
		}
		return raw, data, nil
	}

	data := layer.DeepMerge(nil, f.data)
	if value == nil {
		layer.DeleteByPath(data, path)
	} else {
		layer.SetByPath(data, path, value)
	}
	raw, err := loader.Encode(f.format, data)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding %s: %w", f.path, err)
	}
	return raw, data, nil
}

func (f *FileStore) lookupLocked(path string) (any, bool) {
	if f.format == loader.FormatJSON {
		res := gjson.GetBytes(f.raw, path)
		return res.Value(), res.Exists()
	}
	return layer.GetByPath(f.data, path)
}

// Reload re-reads the document from disk. Unchanged content is ignored;
// otherwise subscribers receive a reload change.
func (f *FileStore) Reload() error {
	// The read happens under the lock so a concurrent Update cannot be
	// replaced by the content it is overwriting.
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	raw, err := os.ReadFile(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		f.mu.Unlock()
		return fmt.Errorf("reading settings file %s: %w", f.path, err)
	}
	data, err := loader.Decode(f.format, f.path, raw)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	if f.format == loader.FormatJSON && len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	if bytes.Equal(raw, f.raw) {
		f.mu.Unlock()
		return nil
	}
	added, modified, removed := layer.DiffMaps(f.data, data)
	f.raw, f.data = raw, data
	f.mu.Unlock()

	f.logger.Info("settings file reloaded",
		zap.String("path", f.path),
		zap.Int("added", len(added)),
		zap.Int("modified", len(modified)),
		zap.Int("removed", len(removed)))
	f.notifier.NotifyReload("file")
	return nil
}

// Watch starts reloading the document when it changes on disk. It is a
// no-op if already watching.
func (f *FileStore) Watch() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.watcher != nil {
		return nil
	}

	w, err := watcher.New(
		watcher.WithDebounce(reloadDebounce),
		watcher.WithErrorHandler(func(err error) {
			f.logger.Warn("settings file watch error", zap.String("path", f.path), zap.Error(err))
		}),
	)
	if err != nil {
		return err
	}
	w.OnChange(func(ev watcher.Event) {
		if err := f.Reload(); err != nil && !errors.Is(err, ErrClosed) {
			f.logger.Warn("settings file reload failed",
				zap.String("path", f.path),
				zap.Stringer("op", ev.Op),
				zap.Error(err))
		}
	})
	if err := w.Watch(f.path); err != nil {
		_ = w.Close()
		return err
	}
	f.watcher = w
	return nil
}

// Unwatch stops reloading on disk changes. It is a no-op when not watching.
func (f *FileStore) Unwatch() error {
	f.mu.Lock()
	w := f.watcher
	f.watcher = nil
	f.mu.Unlock()

	if w == nil {
		return nil
	}
	return errors.Join(w.Unwatch(f.path), w.Close())
}

// Keys returns the sorted paths set in the document. The file holds only
// global settings, so other scopes are empty.
func (f *FileStore) Keys(ctx context.Context, scope Scope) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrClosed
	}
	if scope != ScopeGlobal {
		return nil, nil
	}
	flat := layer.FlattenMap(f.data)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Subscribe implements Watchable.
func (f *FileStore) Subscribe(observer notify.Observer) *notify.Subscription {
	return f.notifier.Subscribe(observer)
}

// Close stops watching and releases subscribers.
func (f *FileStore) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	w := f.watcher
	f.watcher = nil
	f.mu.Unlock()

	f.notifier.Close()
	if w != nil {
		return w.Close()
	}
	return nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
