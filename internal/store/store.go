// Package store implements relational persistence for secret items.
// Three relations back the object model: items holds metadata,
// attributes holds one row per (object, attribute, value) and secrets
// holds the raw secret bytes. Every mutation commits before returning.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the pure-Go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	object   TEXT PRIMARY KEY,
	label    TEXT NOT NULL,
	created  INTEGER NOT NULL,
	modified INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS attributes (
	object    TEXT NOT NULL,
	attribute TEXT NOT NULL,
	value     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS attributes_lookup ON attributes (attribute, value);
CREATE TABLE IF NOT EXISTS secrets (
	object       TEXT PRIMARY KEY,
	secret       BLOB NOT NULL,
	content_type TEXT NOT NULL
);
`

// Metadata is the items relation row for one object
type Metadata struct {
	Label    string `db:"label"`
	Created  uint64 `db:"created"`
	Modified uint64 `db:"modified"`
}

// SecretRow is the secrets relation row for one object
type SecretRow struct {
	Secret      []byte `db:"secret"`
	ContentType string `db:"content_type"`
}

// Store is a single-file SQLite database holding all item state.
// Operations are serialized behind one mutex; handlers assume atomic
// observe-then-mutate semantics.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; the store mutex serializes access anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// AddItem inserts the metadata, attribute and secret rows for a new
// item in one transaction. Created and modified are set to now.
func (s *Store) AddItem(object, label string, attrs map[string]string, secret []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := uint64(time.Now().Unix())

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO items (object, label, created, modified) VALUES (?, ?, ?, ?)`,
		object, label, now, now); err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	for attribute, value := range attrs {
		if _, err := tx.Exec(
			`INSERT INTO attributes (object, attribute, value) VALUES (?, ?, ?)`,
			object, attribute, value); err != nil {
			return fmt.Errorf("failed to insert attribute: %w", err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO secrets (object, secret, content_type) VALUES (?, ?, ?)`,
		object, secret, contentType); err != nil {
		return fmt.Errorf("failed to insert secret: %w", err)
	}

	return tx.Commit()
}

// FindItems returns the objects whose attribute set is a superset of
// match: every given (attribute, value) pair must be present. The
// query is an N-way intersection of per-pair selections. match must
// not be empty.
func (s *Store) FindItems(match map[string]string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const selection = `SELECT object FROM attributes WHERE attribute = ? AND value = ?`

	parts := make([]string, 0, len(match))
	args := make([]interface{}, 0, 2*len(match))
	for attribute, value := range match {
		parts = append(parts, selection)
		args = append(args, attribute, value)
	}

	objects := []string{}
	if err := s.db.Select(&objects, strings.Join(parts, " INTERSECT "), args...); err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	return objects, nil
}

// GetMetadata returns the metadata row for object, or nil when absent
func (s *Store) GetMetadata(object string) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []Metadata
	if err := s.db.Select(&rows,
		`SELECT label, created, modified FROM items WHERE object = ?`, object); err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// SetLabel updates the item's label. The modified timestamp is left
// untouched.
func (s *Store) SetLabel(object, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		`UPDATE items SET label = ? WHERE object = ?`, label, object); err != nil {
		return fmt.Errorf("failed to set label: %w", err)
	}
	return nil
}

// GetAttributes returns all attribute rows for object
func (s *Store) GetAttributes(object string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []struct {
		Attribute string `db:"attribute"`
		Value     string `db:"value"`
	}
	if err := s.db.Select(&rows,
		`SELECT attribute, value FROM attributes WHERE object = ?`, object); err != nil {
		return nil, fmt.Errorf("failed to read attributes: %w", err)
	}

	attrs := make(map[string]string, len(rows))
	for _, row := range rows {
		attrs[row.Attribute] = row.Value
	}
	return attrs, nil
}

// SetAttributes replaces the full attribute set for object in one
// transaction.
func (s *Store) SetAttributes(object string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM attributes WHERE object = ?`, object); err != nil {
		return fmt.Errorf("failed to clear attributes: %w", err)
	}
	for attribute, value := range attrs {
		if _, err := tx.Exec(
			`INSERT INTO attributes (object, attribute, value) VALUES (?, ?, ?)`,
			object, attribute, value); err != nil {
			return fmt.Errorf("failed to insert attribute: %w", err)
		}
	}

	return tx.Commit()
}

// GetSecret returns the secret row for object, or nil when absent
func (s *Store) GetSecret(object string) (*SecretRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []SecretRow
	if err := s.db.Select(&rows,
		`SELECT secret, content_type FROM secrets WHERE object = ?`, object); err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// SetSecret replaces the secret bytes and content type for object and
// advances the modified timestamp.
func (s *Store) SetSecret(object string, secret []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := uint64(time.Now().Unix())

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE secrets SET secret = ?, content_type = ? WHERE object = ?`,
		secret, contentType, object); err != nil {
		return fmt.Errorf("failed to set secret: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE items SET modified = ? WHERE object = ?`, now, object); err != nil {
		return fmt.Errorf("failed to touch item: %w", err)
	}

	return tx.Commit()
}

// DeleteItem removes the rows of all three relations for object in one
// transaction.
func (s *Store) DeleteItem(object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM items WHERE object = ?`,
		`DELETE FROM attributes WHERE object = ?`,
		`DELETE FROM secrets WHERE object = ?`,
	} {
		if _, err := tx.Exec(stmt, object); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
	}

	return tx.Commit()
}

// ItemExists reports whether a metadata row exists for object
func (s *Store) ItemExists(object string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.Get(&count,
		`SELECT COUNT(*) FROM items WHERE object = ?`, object); err != nil {
		return false, fmt.Errorf("failed to check item: %w", err)
	}
	return count > 0, nil
}
