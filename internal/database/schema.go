package database

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS scrape_results (
		id            UUID PRIMARY KEY,
		run_id        TEXT NOT NULL DEFAULT '',
		search_term   TEXT NOT NULL,
		scraped_at    TIMESTAMPTZ NOT NULL,
		outcome       TEXT NOT NULL,
		attempts      INTEGER NOT NULL,
		listing_count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_results_term ON scrape_results (search_term, scraped_at DESC)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id        BIGSERIAL PRIMARY KEY,
		result_id UUID NOT NULL REFERENCES scrape_results (id) ON DELETE CASCADE,
		position  INTEGER NOT NULL,
		title     TEXT NOT NULL,
		price     TEXT NOT NULL,
		link      TEXT NOT NULL,
		store     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_result ON listings (result_id, position)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		target_stream  TEXT NOT NULL,
		status         TEXT NOT NULL,
		retry_count    INTEGER NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending ON outbox_event (status, next_retry_at)`,
}

// EnsureSchema creates the result, listing and outbox tables if absent.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
