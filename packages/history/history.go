// Package history keeps a SQLite log of executed exchanges.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restexec/packages/rest"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_id TEXT NOT NULL,
	method         TEXT NOT NULL,
	resource       TEXT NOT NULL,
	status         INTEGER NOT NULL DEFAULT 0,
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	error_kind     TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	response_size  INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
`

// Entry is one recorded exchange.
type Entry struct {
	ID            int64
	TransactionID string
	Method        string
	Resource      string
	Status        int
	DurationMs    int64
	ErrorKind     string
	Error         string
	ResponseSize  int
	CreatedAt     time.Time
}

// Failed reports whether the exchange ended in an error.
func (e *Entry) Failed() bool {
	return e.Error != ""
}

// Store is a history database.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	now          func() time.Time
}

// Open opens or creates the history database at dsn. Both a plain path and
// the sqlite:// and sqlite: prefixes are accepted.
func Open(dsn string) (*Store, error) {
	path := parseDSN(dsn)
	if path == "" {
		return nil, errors.New("history database path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
		now:          time.Now,
	}, nil
}

func parseDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	return strings.TrimPrefix(dsn, "sqlite:")
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores the outcome of executing req. resp is nil when execErr is set.
func (s *Store) Record(req *rest.Request, resp *rest.Response, execErr error) (int64, error) {
	if req == nil {
		return 0, errors.New("cannot record a nil request")
	}

	entry := Entry{
		TransactionID: req.TransactionID,
		Method:        string(req.Method),
		Resource:      req.Resource,
		CreatedAt:     s.now().UTC(),
	}
	if resp != nil {
		entry.TransactionID = resp.TransactionID
		entry.Status = resp.StatusCode
		entry.DurationMs = resp.DurationMs()
		entry.ResponseSize = len(resp.Body)
	}
	if execErr != nil {
		entry.Error = execErr.Error()
		var restErr *rest.Error
		if errors.As(execErr, &restErr) {
			entry.ErrorKind = string(restErr.Kind)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (transaction_id, method, resource, status, duration_ms, error_kind, error, response_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TransactionID, entry.Method, entry.Resource, entry.Status, entry.DurationMs,
		entry.ErrorKind, entry.Error, entry.ResponseSize, entry.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record exchange: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent entries, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]*Entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	query := `SELECT id, transaction_id, method, resource, status, duration_ms, error_kind, error, response_size, created_at
		FROM exchanges ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Method, &e.Resource, &e.Status,
			&e.DurationMs, &e.ErrorKind, &e.Error, &e.ResponseSize, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM exchanges`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}
