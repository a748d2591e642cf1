// Package history persists answered queries to PostgreSQL.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Entry is one answered query.
type Entry struct {
	RequestID        string    `json:"requestId"`
	Query            string    `json:"query"`
	PropertyID       string    `json:"propertyId,omitempty"`
	SpreadsheetID    string    `json:"spreadsheetId,omitempty"`
	Intent           string    `json:"intent"`
	AgentsUsed       []string  `json:"agentsUsed"`
	Success          bool      `json:"success"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS query_history (
	request_id         TEXT PRIMARY KEY,
	query              TEXT NOT NULL,
	property_id        TEXT NOT NULL DEFAULT '',
	spreadsheet_id     TEXT NOT NULL DEFAULT '',
	intent             TEXT NOT NULL,
	agents_used        TEXT[] NOT NULL DEFAULT '{}',
	success            BOOLEAN NOT NULL,
	processing_time_ms BIGINT NOT NULL,
	error              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL
)`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the query_history table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create query_history: %w", err)
	}
	return nil
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	agents := e.AgentsUsed
	if agents == nil {
		agents = []string{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_history (
			request_id, query, property_id, spreadsheet_id, intent,
			agents_used, success, processing_time_ms, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (request_id) DO NOTHING`,
		e.RequestID, e.Query, e.PropertyID, e.SpreadsheetID, e.Intent,
		pq.Array(agents), e.Success, e.ProcessingTimeMs, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query_history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, query, property_id, spreadsheet_id, intent,
		       agents_used, success, processing_time_ms, error, created_at
		FROM query_history
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query query_history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.RequestID, &e.Query, &e.PropertyID, &e.SpreadsheetID, &e.Intent,
			pq.Array(&e.AgentsUsed), &e.Success, &e.ProcessingTimeMs, &e.Error, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query_history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
