package connector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go driver

	"github.com/Aman-CERP/meilihook/internal/entry"
	"github.com/Aman-CERP/meilihook/internal/errors"
)

// SQLite indexes records into an FTS5 table.
type SQLite struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var (
	_ Connector = (*SQLite)(nil)
	_ Searcher  = (*SQLite)(nil)
)

// NewSQLite opens or creates an FTS5 index at path. An empty path creates an
// in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.IOError("create index directory", err)
		}
		if validErr := validateSQLiteIndex(path); validErr != nil {
			slog.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot clear corrupt index", rmErr).
					WithDetail("path", path)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.IOError("open sqlite index", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, errors.IOError("set pragma", err)
		}
	}

	const schema = `
	CREATE VIRTUAL TABLE IF NOT EXISTS entries USING fts5(
		doc_key UNINDEXED,
		collection UNINDEXED,
		content,
		tokenize='unicode61'
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.IOError("initialize schema", err)
	}

	return &SQLite{db: db, path: path}, nil
}

func validateSQLiteIndex(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// AddOneEntry replaces the row for collection/id.
func (s *SQLite) AddOneEntry(ctx context.Context, collection string, e entry.Entry) error {
	id, ok := e.ID()
	if !ok {
		return errors.New(errors.ErrCodeMissingID, "entry has no id", nil).
			WithDetail("collection", collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeIndexClosed, "index is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.IOError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	key := docKey(collection, id)
	// FTS5 has no REPLACE; delete then insert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE doc_key = ?`, key); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "delete previous row", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries(doc_key, collection, content) VALUES (?, ?, ?)`,
		key, collection, e.Text()); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "insert row", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "commit", err)
	}
	return nil
}

// DeleteEntries removes the given ids of collection.
func (s *SQLite) DeleteEntries(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeIndexClosed, "index is closed", nil)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = docKey(collection, id)
	}
	q := fmt.Sprintf("DELETE FROM entries WHERE doc_key IN (%s)", strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "delete rows", err)
	}
	return nil
}

// Search runs an FTS5 match. An empty collection searches all.
func (s *SQLite) Search(ctx context.Context, collection, q string, limit int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(errors.ErrCodeIndexClosed, "index is closed", nil)
	}

	terms := strings.Fields(q)
	if len(terms) == 0 {
		return []Hit{}, nil
	}
	// Quote each term so user input cannot inject FTS5 syntax.
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	match := strings.Join(terms, " ")

	stmt := `SELECT doc_key, bm25(entries) AS score FROM entries WHERE entries MATCH ?`
	args := []any{"content: " + "(" + match + ")"}
	if collection != "" {
		stmt += ` AND collection = ?`
		args = append(args, collection)
	}
	stmt += ` ORDER BY score LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "search", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var key string
		var score float64
		if err := rows.Scan(&key, &score); err != nil {
			return nil, errors.New(errors.ErrCodeSearchFailed, "scan row", err)
		}
		coll, id, _ := strings.Cut(key, "/")
		// bm25() is negative; lower is better.
		hits = append(hits, Hit{Collection: coll, ID: id, Score: -score})
	}
	return hits, rows.Err()
}

// Close checkpoints the WAL and closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}
