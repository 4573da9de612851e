// Package searchindex builds the docset lookup table, a single-file SQLite
// database read by offline documentation viewers.
package searchindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jonathan/posh-docset/internal/types"
)

// FileName is the index database name inside Contents/Resources.
const FileName = "docSet.dsidx"

const schema = `CREATE TABLE searchIndex(id INTEGER PRIMARY KEY, name TEXT, type TEXT, path TEXT);
CREATE UNIQUE INDEX anchor ON searchIndex (name, type, path);`

// Row is one lookup table entry.
type Row struct {
	Name string
	Type types.Kind
	Path string
}

// Store wraps the index database.
type Store struct {
	db *sql.DB
}

// Create deletes any database at path and creates an empty index there.
func Create(ctx context.Context, path string) (*Store, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove previous index %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	// One connection keeps lookups and inserts strictly ordered.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens an existing index for reading.
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert adds row unless a row with the same path or the same name exists.
// It reports whether the row was inserted; a skipped duplicate is not an error.
func (s *Store) Insert(ctx context.Context, row Row) (bool, error) {
	taken, err := s.exists(ctx, `SELECT rowid FROM searchIndex WHERE path = ?`, row.Path)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	taken, err = s.exists(ctx, `SELECT rowid FROM searchIndex WHERE name = ?`, row.Name)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO searchIndex(name, type, path) VALUES (?, ?, ?)`,
		row.Name, string(row.Type), row.Path,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert %q: %w", row.Name, err)
	}
	return true, nil
}

func (s *Store) exists(ctx context.Context, query string, arg string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query index: %w", err)
	}
	return true, nil
}

// Rows returns all rows in insertion order.
func (s *Store) Rows(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type, path FROM searchIndex ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list index rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var r Row
		var kind string
		if err := rows.Scan(&r.Name, &kind, &r.Path); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		r.Type = types.Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}
