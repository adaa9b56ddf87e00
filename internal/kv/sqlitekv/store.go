// Package sqlitekv provides the SQLite-backed key-value engine.
package sqlitekv

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // cgo-free SQLite driver

	"github.com/bandhanheal/backend/internal/kv"
)

// Config holds SQLite engine configuration.
type Config struct {
	Path     string // path to the database file
	MaxConns int    // maximum open connections (default: 4)
}

// Store is a kv.Store persisted in a single SQLite table. The connection can
// be swapped by Reopen while requests are in flight, so access goes through
// conn() under a read lock.
type Store struct {
	mu  sync.RWMutex
	db  *sql.DB
	cfg Config
}

const schema = `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)
`

// NewStore opens (or creates) the database at cfg.Path with WAL mode enabled.
func NewStore(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, cfg: cfg}, nil
}

func open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	// WAL for concurrent readers, busy timeout so concurrent writers retry
	// instead of failing immediately.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return db, nil
}

// conn returns the current database handle.
func (s *Store) conn() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Reopen closes the current handle and opens a fresh one at the same path,
// recreating the schema. Used when the database file is deleted out from
// under a running server.
func (s *Store) Reopen() error {
	db, err := open(s.cfg)
	if err != nil {
		return fmt.Errorf("reopen: %w", err)
	}

	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Get returns the value stored under key, or kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM kv WHERE key = ? LIMIT 1`

	var value []byte
	err := s.conn().QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Set writes value under key, creating or replacing it.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`

	if _, err := s.conn().ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// SetIfMatch writes next under key only if the current value equals expected.
// The single UPDATE makes the compare and the swap one atomic statement.
func (s *Store) SetIfMatch(ctx context.Context, key string, expected, next []byte) (bool, error) {
	const query = `UPDATE kv SET value = ? WHERE key = ? AND value = ?`

	result, err := s.conn().ExecContext(ctx, query, next, key, expected)
	if err != nil {
		return false, fmt.Errorf("set-if-match %q: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set-if-match %q: %w", key, err)
	}
	return affected == 1, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv WHERE key = ?`

	if _, err := s.conn().ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// ScanPrefix returns every entry whose key starts with prefix, ordered by key.
// substr comparison avoids LIKE wildcard escaping for keys containing _ or %.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	const query = `
		SELECT key, value FROM kv
		WHERE substr(key, 1, ?) = ?
		ORDER BY key
	`

	rows, err := s.conn().QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	defer rows.Close()

	var entries []kv.Entry
	for rows.Next() {
		var e kv.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	return entries, nil
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.cfg.Path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn().Close()
}
