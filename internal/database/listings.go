package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/shop-search-scraper/internal/models"
)

// ListingStore persists scrape results and their listings.
type ListingStore struct {
	db     *DB
	outbox *OutboxRepository
	runID  string
}

func NewListingStore(db *DB, runID string) *ListingStore {
	return &ListingStore{
		db:     db,
		outbox: NewOutboxRepository(db),
		runID:  runID,
	}
}

// Save implements the scraper result sink.
func (s *ListingStore) Save(ctx context.Context, result *models.ScrapeResult) error {
	_, err := s.SaveResult(ctx, result)
	return err
}

// SaveResult writes the result row, its listings and any outbox events in one
// transaction and returns the new result id.
func (s *ListingStore) SaveResult(ctx context.Context, result *models.ScrapeResult, events ...*OutboxEvent) (uuid.UUID, error) {
	id := uuid.New()

	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO scrape_results (
				id, run_id, search_term, scraped_at, outcome, attempts, listing_count
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, s.runID, result.SearchTerm, result.CompletedAt,
			string(result.Outcome), result.Attempts, result.ListingCount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scrape result: %w", err)
		}

		if err := insertListings(ctx, tx, id, result.Listings); err != nil {
			return err
		}

		for _, event := range events {
			if event.AggregateID == "" {
				event.AggregateID = id.String()
			}
			if err := s.outbox.InsertWithTx(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

func insertListings(ctx context.Context, tx pgx.Tx, resultID uuid.UUID, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, l := range listings {
		batch.Queue(`
			INSERT INTO listings (result_id, position, title, price, link, store)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			resultID, i, l.Title, l.Price, l.Link, l.Store)
	}

	br := tx.SendBatch(ctx, batch)
	for range listings {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert listing: %w", err)
		}
	}
	return br.Close()
}

// CountListings returns how many listings have been stored for term.
func (s *ListingStore) CountListings(ctx context.Context, term string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM listings l
		JOIN scrape_results r ON r.id = l.result_id
		WHERE r.search_term = $1`, term).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return count, nil
}
