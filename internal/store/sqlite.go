package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

// Current schema version
const SchemaVersion = "1"

// SQLite is a SQLite-backed store. cells are keyed by zero-based row and
// column.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens or creates a SQLite store at the given path
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS cells (
			row_index INTEGER NOT NULL,
			col_index INTEGER NOT NULL,
			input TEXT NOT NULL,
			PRIMARY KEY (row_index, col_index)
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}

	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if err := s.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return s, nil
}

func (s *SQLite) Get(addr spreadsheet.CellAddress) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var text string
	err := s.db.QueryRow("SELECT input FROM cells WHERE row_index = ? AND col_index = ?", addr.Row, addr.Column).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (s *SQLite) Put(addr spreadsheet.CellAddress, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" {
		return s.deleteUnlocked(addr)
	}
	_, err := s.db.Exec(`
		INSERT INTO cells (row_index, col_index, input) VALUES (?, ?, ?)
		ON CONFLICT(row_index, col_index) DO UPDATE SET input = excluded.input
	`, addr.Row, addr.Column, text)
	return err
}

func (s *SQLite) Delete(addr spreadsheet.CellAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteUnlocked(addr)
}

func (s *SQLite) deleteUnlocked(addr spreadsheet.CellAddress) error {
	_, err := s.db.Exec("DELETE FROM cells WHERE row_index = ? AND col_index = ?", addr.Row, addr.Column)
	return err
}

func (s *SQLite) All() (map[spreadsheet.CellAddress]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT row_index, col_index, input FROM cells")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cells := make(map[spreadsheet.CellAddress]string)
	for rows.Next() {
		var addr spreadsheet.CellAddress
		var text string
		if err := rows.Scan(&addr.Row, &addr.Column, &text); err != nil {
			return nil, err
		}
		cells[addr] = text
	}
	return cells, rows.Err()
}

// Replace swaps the stored cells for cells in one transaction
func (s *SQLite) Replace(cells map[spreadsheet.CellAddress]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cells"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO cells (row_index, col_index, input) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for addr, text := range cells {
		if text == "" {
			continue
		}
		if _, err := stmt.Exec(addr.Row, addr.Column, text); err != nil {
			return fmt.Errorf("cell %s: %w", addr, err)
		}
	}
	return tx.Commit()
}

// GetMetadata retrieves a metadata value by key
func (s *SQLite) GetMetadata(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetadataUnlocked(key)
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock)
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata stores a metadata value by key
func (s *SQLite) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMetadataUnlocked(key, value)
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock)
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}
