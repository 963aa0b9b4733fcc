// Package sqlitestore is a concrete ports.Settings backed by
// modernc.org/sqlite, standing in for the platform settings/KV backend
// the spec treats as external (§6 "Settings (consumed)"). Grounded on
// getployz-ployz/internal/adapter/sqlite's open-a-single-table,
// WAL-plus-busy-timeout shape.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-ble/meshaccess/ports"

	_ "modernc.org/sqlite"
)

// Store is a single-table key/value settings backend: one row per
// settings path, storing the raw record bytes.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the sqlite database at path and ensures the
// settings table exists.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS settings (
	path TEXT PRIMARY KEY,
	data BLOB NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize settings schema: %w", err)
	}
	return &Store{db: db}, nil
}

// openDB opens a SQLite database with WAL mode and a busy timeout, the
// same pragmas getployz-ployz's adapter sets.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveOne upserts one settings record.
func (s *Store) SaveOne(path string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (path, data) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data`,
		path, data,
	)
	if err != nil {
		return fmt.Errorf("save settings record %q: %w", path, err)
	}
	return nil
}

// Delete removes one settings record, if present.
func (s *Store) Delete(path string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete settings record %q: %w", path, err)
	}
	return nil
}

// LoadSubtreeDirect streams every record whose path equals prefix or is
// nested under it, matching ports.Settings's "load_subtree_direct"
// contract (§6).
func (s *Store) LoadSubtreeDirect(prefix string, cb ports.ReadCallback) error {
	rows, err := s.db.Query(
		`SELECT path, data FROM settings WHERE path = ? OR path LIKE ? ESCAPE '\' ORDER BY path`,
		prefix, escapeLike(prefix)+"/%",
	)
	if err != nil {
		return fmt.Errorf("query settings subtree %q: %w", prefix, err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var data []byte
		if err := rows.Scan(&path, &data); err != nil {
			return fmt.Errorf("scan settings row: %w", err)
		}
		blob := data
		readFn := func(buf []byte) (int, error) { return copy(buf, blob), nil }
		if err := cb(path, len(data), readFn); err != nil {
			return err
		}
	}
	return rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
