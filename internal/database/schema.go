package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sweep_run (
		id           UUID PRIMARY KEY,
		status       TEXT NOT NULL,
		retailers    TEXT[] NOT NULL,
		products     TEXT[] NOT NULL DEFAULT '{}',
		error        TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at   TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sweep_result (
		run_id          UUID NOT NULL REFERENCES sweep_run(id) ON DELETE CASCADE,
		retailer        TEXT NOT NULL,
		search_term     TEXT NOT NULL,
		name            TEXT,
		price           TEXT,
		seller_matches  BOOLEAN NOT NULL,
		link            TEXT,
		status          TEXT NOT NULL,
		score           DOUBLE PRECISION NOT NULL DEFAULT 0,
		error           TEXT,
		checked_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, retailer, search_term)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		target_stream  TEXT NOT NULL,
		status         TEXT NOT NULL,
		retry_count    INT NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_event_pending_idx
		ON outbox_event (status, next_retry_at)`,
}

// EnsureSchema creates the tables the sweeper writes to.
func EnsureSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
