package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// Store provides SQLite persistence for output records.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new store with the given database path.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outputs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		unique_id TEXT NOT NULL UNIQUE,
		output_type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		pin TEXT NOT NULL DEFAULT '',
		interface TEXT NOT NULL DEFAULT '',
		amperage REAL NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL,
		settings_json TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_outputs_sort_order ON outputs(sort_order);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load retrieves every output ordered by sort order.
func (s *Store) Load() ([]output.Output, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, unique_id, output_type, name, pin, interface, amperage,
		       sort_order, settings_json
		FROM outputs
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outputs []output.Output
	for rows.Next() {
		var o output.Output
		var typ, settings string

		if err := rows.Scan(
			&o.ID, &o.UniqueID, &typ, &o.Name, &o.Pin, &o.Interface,
			&o.Amperage, &o.SortOrder, &settings,
		); err != nil {
			return nil, err
		}
		o.Type = output.Type(typ)

		if settings != "" {
			if err := json.Unmarshal([]byte(settings), &o.Settings); err != nil {
				return nil, fmt.Errorf("output %s: decode settings: %w", o.UniqueID, err)
			}
		}

		outputs = append(outputs, o)
	}

	return outputs, rows.Err()
}

// Insert creates the outputs in one transaction and assigns their IDs.
func (s *Store) Insert(outputs []*output.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range outputs {
		settings, err := json.Marshal(o.Settings)
		if err != nil {
			return err
		}

		res, err := tx.Exec(`
			INSERT INTO outputs (unique_id, output_type, name, pin, interface,
			                     amperage, sort_order, settings_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, o.UniqueID, string(o.Type), o.Name, o.Pin, o.Interface,
			o.Amperage, o.SortOrder, string(settings))
		if err != nil {
			return fmt.Errorf("insert output %s: %w", o.UniqueID, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		o.ID = id
	}

	return tx.Commit()
}

// Update writes the mutable attributes of an output. The type and unique ID
// are never changed.
func (s *Store) Update(o output.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := json.Marshal(o.Settings)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		UPDATE outputs
		SET name = ?, pin = ?, interface = ?, amperage = ?, settings_json = ?
		WHERE unique_id = ?
	`, o.Name, o.Pin, o.Interface, o.Amperage, string(settings), o.UniqueID)

	return err
}

// Delete removes an output and writes the remaining sort order in one
// transaction. Deleting an absent output is not an error.
func (s *Store) Delete(uniqueID string, order map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM outputs WHERE unique_id = ?`, uniqueID); err != nil {
		return err
	}
	if err := writeOrder(tx, order); err != nil {
		return err
	}

	return tx.Commit()
}

// SetOrder writes the sort order of the given outputs in one transaction.
func (s *Store) SetOrder(order map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := writeOrder(tx, order); err != nil {
		return err
	}

	return tx.Commit()
}

func writeOrder(tx *sql.Tx, order map[string]int) error {
	stmt, err := tx.Prepare(`UPDATE outputs SET sort_order = ? WHERE unique_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, pos := range order {
		if _, err := stmt.Exec(pos, id); err != nil {
			return fmt.Errorf("update sort order of %s: %w", id, err)
		}
	}
	return nil
}

// Count returns the number of stored outputs.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM outputs`).Scan(&count)
	return count, err
}
