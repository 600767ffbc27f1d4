// Package profile records execution history in a SQLite database.
package profile

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// RunRecord is one recorded execution.
type RunRecord struct {
	ID           string
	Module       string
	Result       string
	Instructions uint64
	Duration     time.Duration
	Error        string
}

// Store persists run records.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (creating if needed) the run-history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Busy timeout for concurrent CLI invocations sharing one database.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		module TEXT NOT NULL,
		result TEXT,
		instructions INTEGER NOT NULL,
		duration_us INTEGER NOT NULL,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts a run record, assigning it a fresh id, and returns the id.
func (s *Store) Record(r RunRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	_, err := s.db.Exec(
		"INSERT INTO runs (id, module, result, instructions, duration_us, error) VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, r.Module, r.Result, int64(r.Instructions), r.Duration.Microseconds(), r.Error,
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return r.ID, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, module, result, instructions, duration_us, error FROM runs ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var instructions, durationUS int64
		if err := rows.Scan(&r.ID, &r.Module, &r.Result, &instructions, &durationUS, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Instructions = uint64(instructions)
		r.Duration = time.Duration(durationUS) * time.Microsecond
		records = append(records, r)
	}
	return records, rows.Err()
}
