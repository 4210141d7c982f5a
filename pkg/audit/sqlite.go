package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists audit events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite audit database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, event Event) error {
	args, err := encodeArguments(event.Arguments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turn_audit_events (
			turn_id, kind, origin, input, tool, arguments_json, success, message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.TurnID,
		event.Kind,
		event.Origin,
		event.Input,
		event.Tool,
		args,
		event.Success,
		event.Message,
		normalizeTime(event.StartedAt),
		normalizeTime(event.FinishedAt),
	)
	return err
}

// List implements Store. Events return in recorded order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT turn_id, kind, origin, input, tool, arguments_json, success, message, started_at, finished_at
		FROM turn_audit_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.TurnID != "" {
		addFilter("turn_id = ?", filter.TurnID)
	}
	if filter.Kind != "" {
		addFilter("kind = ?", filter.Kind)
	}
	query += where + " ORDER BY rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event    Event
			argsJSON string
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(
			&event.TurnID,
			&event.Kind,
			&event.Origin,
			&event.Input,
			&event.Tool,
			&argsJSON,
			&event.Success,
			&event.Message,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if argsJSON != "" {
			_ = json.Unmarshal([]byte(argsJSON), &event.Arguments)
		}
		if started.Valid {
			event.StartedAt = started.Time
		}
		if finished.Valid {
			event.FinishedAt = finished.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ensureAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS turn_audit_events (
			turn_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			origin TEXT,
			input TEXT,
			tool TEXT,
			arguments_json TEXT,
			success INTEGER,
			message TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		)
	`)
	return err
}

func encodeArguments(args map[string]any) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	out, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func normalizeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

var _ Store = (*SQLiteStore)(nil)
