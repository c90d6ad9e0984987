package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/dshills/sandboxctl/internal/config/notify"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// lookupTimeout bounds the query behind Lookup, which has no context.
const lookupTimeout = 5 * time.Second

// SQLStore keeps settings as JSON-encoded rows in a settings table. Each
// row is one path at one scope.
type SQLStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	driver   string
	notifier *notify.Notifier
	logger   *zap.Logger
	closed   bool
}

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithSQLLogger sets the logger used for query failures.
func WithSQLLogger(logger *zap.Logger) SQLOption {
	return func(s *SQLStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OpenSQL connects to the database and creates the settings table if it
// does not exist.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...SQLOption) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single connection serializes writers and keeps :memory: databases
		// shared across calls.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &SQLStore{
		db:       db,
		driver:   driver,
		notifier: notify.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	const stmt = `CREATE TABLE IF NOT EXISTS settings (
		key        TEXT NOT NULL,
		scope      TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (key, scope)
	)`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating settings table: %w", err)
	}
	return nil
}

// Lookup implements Store. Query failures are logged and reported as absent.
func (s *SQLStore) Lookup(path string) (any, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	val, ok, err := s.LookupContext(ctx, path)
	if err != nil {
		s.logger.Warn("settings lookup failed", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	return val, ok
}

// LookupContext returns the effective value at path, preferring the
// workspace row over the global one.
func (s *SQLStore) LookupContext(ctx context.Context, path string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT scope, value FROM settings WHERE key = ?`), path)
	if err != nil {
		return nil, false, fmt.Errorf("querying %s: %w", path, err)
	}
	defer rows.Close()

	var (
		found     bool
		bestScope = -1
		best      string
	)
	for rows.Next() {
		var scope, value string
		if err := rows.Scan(&scope, &value); err != nil {
			return nil, false, fmt.Errorf("scanning %s: %w", path, err)
		}
		sc, err := ParseScope(scope)
		if err != nil {
			continue
		}
		if int(sc) > bestScope {
			bestScope, best, found = int(sc), value, true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	if !found {
		return nil, false, nil
	}
	return decodeValue(best), true, nil
}

// Update implements Store.
func (s *SQLStore) Update(ctx context.Context, path string, value any, scope Scope) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if scope != ScopeGlobal && scope != ScopeWorkspace {
		return ErrUnsupportedScope
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	old, existed, err := s.scopeValue(ctx, path, scope)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if value == nil {
		if !existed {
			s.mu.Unlock()
			return nil
		}
		_, err = s.db.ExecContext(ctx,
			s.rebind(`DELETE FROM settings WHERE key = ? AND scope = ?`), path, scope.String())
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("resetting %s: %w", path, err)
		}
		s.notifier.NotifyDelete(path, scope.String(), old, "sql")
		return nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO settings (key, scope, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key, scope) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`),
		path, scope.String(), string(encoded), time.Now().UTC().Format(time.RFC3339Nano))
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	s.notifier.NotifySet(path, scope.String(), old, value, "sql")
	return nil
}

// scopeValue reads the explicit value at one scope. Callers hold mu.
func (s *SQLStore) scopeValue(ctx context.Context, path string, scope Scope) (any, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT value FROM settings WHERE key = ? AND scope = ?`),
		path, scope.String()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying %s: %w", path, err)
	}
	return decodeValue(value), true, nil
}

// Keys returns every stored path at scope, sorted.
func (s *SQLStore) Keys(ctx context.Context, scope Scope) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT key FROM settings WHERE scope = ? ORDER BY key`), scope.String())
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Subscribe implements Watchable.
func (s *SQLStore) Subscribe(observer notify.Observer) *notify.Subscription {
	return s.notifier.Subscribe(observer)
}

// Close closes the database and releases subscribers.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.notifier.Close()
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2... for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeValue(value string) any {
	if !gjson.Valid(value) {
		return value
	}
	return gjson.Parse(value).Value()
}
