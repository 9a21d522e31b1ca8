// Package audit persists a log of answered questions in an embedded SQLite
// database so any past answer can be inspected and replayed.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a request id has no log entry.
var ErrNotFound = errors.New("audit: entry not found")

// Outcome records which path produced the answer.
type Outcome string

const (
	OutcomeExact    Outcome = "exact"
	OutcomeFallback Outcome = "fallback"
	OutcomeError    Outcome = "error"
)

// Entry is one answered question.
type Entry struct {
	RequestID  string
	AskedAt    time.Time
	SourceRef  string
	Question   string
	IntentJSON string
	Script     string
	Outcome    Outcome
	Answer     string
}

// Store is a SQLite-backed audit log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path and ensures
// the schema exists. Startup is idempotent.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping %s: %w", path, err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS query_log (
		request_id  TEXT PRIMARY KEY,
		asked_at    TEXT NOT NULL,
		source_ref  TEXT NOT NULL,
		question    TEXT NOT NULL,
		intent_json TEXT NOT NULL,
		script      TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		answer      TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert records an entry. A zero AskedAt is stamped with the current time.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	askedAt := e.AskedAt
	if askedAt.IsZero() {
		askedAt = time.Now()
	}

	// Timestamps are stored as RFC3339Nano TEXT for reliable round trips
	// with modernc.org/sqlite.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (request_id, asked_at, source_ref, question, intent_json, script, outcome, answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID,
		askedAt.UTC().Format(time.RFC3339Nano),
		e.SourceRef,
		e.Question,
		e.IntentJSON,
		e.Script,
		string(e.Outcome),
		e.Answer)
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", e.RequestID, err)
	}
	return nil
}

// Get loads the entry for a request id.
func (s *Store) Get(ctx context.Context, requestID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_id, asked_at, source_ref, question, intent_json, script, outcome, answer
		 FROM query_log WHERE request_id = ?`, requestID)

	var e Entry
	var askedAt, outcome string
	err := row.Scan(&e.RequestID, &askedAt, &e.SourceRef, &e.Question, &e.IntentJSON, &e.Script, &outcome, &e.Answer)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("audit: get %s: %w", requestID, err)
	}

	e.Outcome = Outcome(outcome)
	if t, perr := time.Parse(time.RFC3339Nano, askedAt); perr == nil {
		e.AskedAt = t
	}
	return e, nil
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, asked_at, source_ref, question, intent_json, script, outcome, answer
		 FROM query_log ORDER BY asked_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var askedAt, outcome string
		if err := rows.Scan(&e.RequestID, &askedAt, &e.SourceRef, &e.Question, &e.IntentJSON, &e.Script, &outcome, &e.Answer); err != nil {
			return nil, fmt.Errorf("audit: recent scan: %w", err)
		}
		e.Outcome = Outcome(outcome)
		if t, perr := time.Parse(time.RFC3339Nano, askedAt); perr == nil {
			e.AskedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
