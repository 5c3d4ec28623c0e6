package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteMirror copies audit entries into an append-only table.
type SQLiteMirror struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens (or creates) the mirror database and applies migrations.
func OpenSQLite(dbPath string) (*SQLiteMirror, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	m := &SQLiteMirror{db: db, dbPath: dbPath}
	if err := m.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return m, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Append inserts one entry.
func (m *SQLiteMirror) Append(ctx context.Context, e Entry) error {
	var payload sql.NullString
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO audit_entries (run_id, timestamp, kind, status, reason, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Timestamp.UTC(), string(e.Kind), e.Status, e.Reason, payload)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Entries returns a run's entries in insertion order. An empty runID returns
// every entry.
func (m *SQLiteMirror) Entries(ctx context.Context, runID string) ([]Entry, error) {
	query := `SELECT run_id, timestamp, kind, status, reason, payload FROM audit_entries`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id ASC`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var reason, payload sql.NullString
		if err := rows.Scan(&e.RunID, &e.Timestamp, &kind, &e.Status, &reason, &payload); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.Reason = reason.String
		if payload.Valid {
			var v any
			if err := json.Unmarshal([]byte(payload.String), &v); err == nil {
				e.Payload = v
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// Exec runs a raw statement. Used by tests to probe the append-only triggers.
func (m *SQLiteMirror) Exec(query string, args ...any) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

// Close closes the database connection.
func (m *SQLiteMirror) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
