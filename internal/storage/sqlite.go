package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Database wraps the SQLite file backing both the key-value store and
// the work session history.
type Database struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS work_sessions (
	id            TEXT PRIMARY KEY,
	started_at    INTEGER NOT NULL,
	ended_at      INTEGER NOT NULL,
	work_time_ms  INTEGER NOT NULL,
	break_type    TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_work_sessions_ended_at ON work_sessions(ended_at);
`

// Open opens (creating if necessary) the SQLite database at path,
// enables WAL mode, and applies the schema.
func Open(path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Database{db: db, path: path}, nil
}

// Store returns the key-value view of the database.
func (database *Database) Store() *SQLiteStore {
	return &SQLiteStore{db: database.db}
}

// Sessions returns the work session history repository.
func (database *Database) Sessions() *SessionRepository {
	return &SessionRepository{db: database.db}
}

// Path returns the database file path.
func (database *Database) Path() string {
	return database.path
}

// Close closes the underlying connection.
func (database *Database) Close() error {
	return database.db.Close()
}

// SQLiteStore implements Store on top of the kv table.
type SQLiteStore struct {
	db *sql.DB
}

func (store *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := store.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (store *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := store.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (store *SQLiteStore) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, err := store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, nil
}

func (store *SQLiteStore) SetMultiple(ctx context.Context, values map[string][]byte) error {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set multiple: %w", err)
	}
	for key, value := range values {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO kv (key, value) VALUES (?, ?) "+
				"ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set %q: %w", key, err)
		}
	}
	return tx.Commit()
}

func (store *SQLiteStore) Remove(ctx context.Context, key string) error {
	_, err := store.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}
