// Package likes persists the articles a user bookmarked, keyed by URL.
package likes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"briefboard/internal/aggregate"
	"briefboard/internal/provider"
)

const table = "liked_articles"

// ErrNoURL is returned when an article without a URL is toggled.
var ErrNoURL = errors.New("article has no url")

// Store is a SQLite-backed set of liked articles.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the likes database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating likes dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening likes db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + table + ` (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			url      TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL DEFAULT '',
			article  BLOB NOT NULL,
			liked_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_liked_articles_category ON ` + table + `(category);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Toggle likes a that is not liked yet and unlikes it otherwise. It reports
// whether a is liked afterwards.
func (s *Store) Toggle(ctx context.Context, a provider.Article) (bool, error) {
	if a.URL == "" {
		return false, ErrNoURL
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting toggle: %w", err)
	}
	defer tx.Rollback()

	del, args, err := sq.Delete(table).Where(sq.Eq{"url": a.URL}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building delete: %w", err)
	}
	res, err := tx.ExecContext(ctx, del, args...)
	if err != nil {
		return false, fmt.Errorf("unliking %s: %w", a.URL, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unliking %s: %w", a.URL, err)
	}

	liked := removed == 0
	if liked {
		payload, err := json.Marshal(a)
		if err != nil {
			return false, fmt.Errorf("encoding article: %w", err)
		}
		ins, args, err := sq.Insert(table).
			Columns("url", "category", "article", "liked_at").
			Values(a.URL, a.Category, payload, s.now().UnixMilli()).
			ToSql()
		if err != nil {
			return false, fmt.Errorf("building insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, ins, args...); err != nil {
			return false, fmt.Errorf("liking %s: %w", a.URL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing toggle: %w", err)
	}
	return liked, nil
}

// IsLiked reports whether the article at url is liked.
func (s *Store) IsLiked(ctx context.Context, url string) (bool, error) {
	query, args, err := sq.Select("1").From(table).Where(sq.Eq{"url": url}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("building lookup: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", url, err)
	}
	return true, nil
}

// Count returns the number of liked articles.
func (s *Store) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting likes: %w", err)
	}
	return n, nil
}

// List returns liked articles in the order they were liked.
func (s *Store) List(ctx context.Context) ([]provider.Article, error) {
	query, args, err := sq.Select("article").From(table).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing likes: %w", err)
	}
	defer rows.Close()

	out := []provider.Article{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning like: %w", err)
		}
		var a provider.Article
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("decoding like: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByCategory returns liked-article counts per category, sorted by
// category. Articles without a category count as aggregate.Uncategorized.
func (s *Store) CountByCategory(ctx context.Context) ([]aggregate.CategoryCount, error) {
	label := sq.Expr("CASE WHEN category = '' THEN ? ELSE category END", aggregate.Uncategorized)
	query, args, err := sq.Select().
		Column(sq.Alias(label, "label")).
		Column("COUNT(*)").
		From(table).
		GroupBy("label").
		OrderBy("label ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building category count: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting likes by category: %w", err)
	}
	defer rows.Close()

	out := []aggregate.CategoryCount{}
	for rows.Next() {
		var c aggregate.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
