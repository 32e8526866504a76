package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "subvault/pkg/domain"
	"subvault/pkg/platform/events"
)

// Store persists registry events in an append-only PostgreSQL table.
// Payloads are stored as JSON so the schema never chases the event shape.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed event store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the DDL the store expects. Deployments apply it through their
// migration tooling; tests apply it directly.
const Schema = `
CREATE TABLE IF NOT EXISTS registry_events (
    id          UUID PRIMARY KEY,
    account_id  UUID NOT NULL,
    kind        TEXT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS registry_events_account_idx
    ON registry_events (account_id, occurred_at);
`

// Append writes one event. Append-only: rows are never updated or deleted.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	const query = `
		INSERT INTO registry_events (id, account_id, kind, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.New(),
		uuid.UUID(event.AccountID),
		string(event.Kind),
		event.Timestamp,
		payload,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListByAccount returns all events for an account in commit order.
func (s *Store) ListByAccount(ctx context.Context, accountID id.AccountID) ([]events.Event, error) {
	const query = `
		SELECT payload FROM registry_events
		WHERE account_id = $1
		ORDER BY occurred_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var event events.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
