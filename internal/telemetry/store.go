package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go driver
)

// Store persists daily outcome totals in SQLite.
type Store struct {
	db *sql.DB
}

// DailyTotal is one row of hook_outcomes.
type DailyTotal struct {
	Date       string `json:"date"`
	Collection string `json:"collection"`
	Outcome    string `json:"outcome"`
	Count      int64  `json:"count"`
}

// OpenStore opens (creating if needed) the telemetry database at path.
// An empty path opens an in-memory database.
func OpenStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create telemetry directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// InitSchema creates the telemetry tables if they don't exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS hook_outcomes (
		date TEXT NOT NULL,
		collection TEXT NOT NULL,
		outcome TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, collection, outcome)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// SaveCounts adds counts to the totals of date.
func (s *Store) SaveCounts(date string, counts map[Key]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO hook_outcomes (date, collection, outcome, count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, collection, outcome) DO UPDATE SET count = count + excluded.count
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for k, n := range counts {
		if _, err := stmt.Exec(date, k.Collection, k.Outcome, n); err != nil {
			return fmt.Errorf("upsert outcome count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DailyTotals returns rows with from <= date <= to, ordered by date,
// collection and outcome.
func (s *Store) DailyTotals(from, to string) ([]DailyTotal, error) {
	rows, err := s.db.Query(`
		SELECT date, collection, outcome, count
		FROM hook_outcomes
		WHERE date >= ? AND date <= ?
		ORDER BY date, collection, outcome
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query outcome totals: %w", err)
	}
	defer rows.Close()

	var out []DailyTotal
	for rows.Next() {
		var d DailyTotal
		if err := rows.Scan(&d.Date, &d.Collection, &d.Outcome, &d.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
