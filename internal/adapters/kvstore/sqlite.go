// Package kvstore provides persistent key/value store adapters.
// SQLiteStore keeps every scope in one database file so the device scope
// outlives the process and session scopes can be resumed or purged.
package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/chatcart/internal/domain/ports"
)

const (
	// DeviceScope holds state that survives sessions, such as the cart.
	DeviceScope = "device"

	sessionPrefix = "session:"
	dbFile        = "chatcart.db"
)

// SessionScope names the scope of one browsing session.
func SessionScope(id string) string {
	return sessionPrefix + id
}

// SQLiteStore is a scoped key/value store backed by SQLite.
type SQLiteStore struct {
	db       *sql.DB
	dataPath string
	clock    ports.Clock
}

// NewSQLiteStore opens (or creates) the store under dataPath.
func NewSQLiteStore(dataPath string, clock ports.Clock) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		dataPath: dataPath,
		clock:    clock,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (scope, key)
	);
	CREATE INDEX IF NOT EXISTS idx_kv_updated_at ON kv(scope, updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Scope returns the store view for one scope.
func (s *SQLiteStore) Scope(name string) *Scope {
	return &Scope{store: s, name: name}
}

// DropScope removes every key of a scope.
func (s *SQLiteStore) DropScope(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE scope = ?", name)
	if err != nil {
		return fmt.Errorf("dropping scope %s: %w", name, err)
	}
	return nil
}

// PurgeSessions drops session scopes not written to within maxAge and
// returns how many scopes were removed.
func (s *SQLiteStore) PurgeSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-maxAge).UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT scope FROM kv
		WHERE substr(scope, 1, ?) = ?
		GROUP BY scope
		HAVING MAX(updated_at) < ?
	`, len(sessionPrefix), sessionPrefix, cutoff)
	if err != nil {
		return 0, fmt.Errorf("querying stale sessions: %w", err)
	}
	var stale []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning row: %w", err)
		}
		stale = append(stale, scope)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("querying stale sessions: %w", err)
	}

	for _, scope := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE scope = ?", scope); err != nil {
			return 0, fmt.Errorf("dropping scope %s: %w", scope, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Sessions lists the session ids that currently hold data.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT scope FROM kv WHERE substr(scope, 1, ?) = ? ORDER BY scope
	`, len(sessionPrefix), sessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, strings.TrimPrefix(scope, sessionPrefix))
	}
	return ids, rows.Err()
}

// KeyCount returns the number of keys stored in scope.
func (s *SQLiteStore) KeyCount(ctx context.Context, scope string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv WHERE scope = ?", scope).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Scope is one namespace of a SQLiteStore. It implements ports.PersistentStore.
type Scope struct {
	store *SQLiteStore
	name  string
}

// Name returns the scope name.
func (sc *Scope) Name() string { return sc.name }

// Get returns the value for key.
func (sc *Scope) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := sc.store.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE scope = ? AND key = ?", sc.name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s/%s: %w", sc.name, key, err)
	}
	return value, true, nil
}

// Set overwrites the value for key.
func (sc *Scope) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := sc.store.db.ExecContext(ctx, `
		INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sc.name, key, value, sc.store.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", sc.name, key, err)
	}
	return nil
}

// Delete removes key.
func (sc *Scope) Delete(ctx context.Context, key string) error {
	_, err := sc.store.db.ExecContext(ctx, "DELETE FROM kv WHERE scope = ? AND key = ?", sc.name, key)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", sc.name, key, err)
	}
	return nil
}
