package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// sqliteTable is the table holding cached responses.
const sqliteTable = "api_cache"

// SQLiteStore keeps one row per cache key in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache db %q: %w", path, err)
	}
	// A single connection avoids "database is locked" between writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + sqliteTable + ` (
			cache_key       TEXT PRIMARY KEY,
			cache_value     BLOB NOT NULL,
			cache_timestamp INTEGER NOT NULL
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]Entry, error) {
	query, args, err := sq.Select("cache_key", "cache_value", "cache_timestamp").
		From(sqliteTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building load query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	defer rows.Close()

	out := map[string]Entry{}
	for rows.Next() {
		var (
			key   string
			value []byte
			ts    int64
		)
		if err := rows.Scan(&key, &value, &ts); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ErrCorrupt, err)
		}
		if !json.Valid(value) {
			return nil, fmt.Errorf("%w: invalid JSON under key %q", ErrCorrupt, key)
		}
		out[key] = Entry{Value: json.RawMessage(value), StoredAt: ts}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, e Entry) error {
	query, args, err := sq.Insert(sqliteTable).
		Columns("cache_key", "cache_value", "cache_timestamp").
		Values(key, []byte(e.Value), e.StoredAt).
		Suffix("ON CONFLICT(cache_key) DO UPDATE SET cache_value = excluded.cache_value, cache_timestamp = excluded.cache_timestamp").
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting cache entry %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	query, args, err := sq.Delete(sqliteTable).ToSql()
	if err != nil {
		return fmt.Errorf("building reset: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing cache table: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
