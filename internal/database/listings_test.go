package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/shop-search-scraper/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn, Config{MaxConns: 2})
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "scraper", Password: "p@ss/word", Database: "shop_scraper"}
	assert.Equal(t, "postgres://scraper:p%40ss%2Fword@db:5432/shop_scraper?sslmode=disable", cfg.DSN())
}

func TestListingStore_SaveResult(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	term := "integration-" + time.Now().Format("150405.000000")
	listings := []models.Listing{
		{Title: "Desk Lamp", Price: "$19.00", Link: "https://www.bing.com/shop/p/1", Store: "LampCo"},
		{Title: "Desk Lamp XL", Price: "$29.00", Link: "https://www.bing.com/shop/p/2", Store: models.NotAvailable},
	}
	result := models.NewScrapeResult(term, listings, time.Now(), models.OutcomeSuccess, 2)

	event := &OutboxEvent{
		AggregateType: "search_result",
		EventType:     "SEARCH_RESULT_SCRAPED",
		Payload:       json.RawMessage(`{"search_term":"` + term + `"}`),
	}

	store := NewListingStore(db, "run-test")
	id, err := store.SaveResult(ctx, result, event)
	require.NoError(t, err)

	assert.Equal(t, id.String(), event.AggregateID)
	assert.Equal(t, OutboxStatusPending, event.Status)
	assert.Equal(t, DefaultStream, event.TargetStream)

	count, err := store.CountListings(ctx, term)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	repo := NewOutboxRepository(db)
	require.NoError(t, repo.MarkProcessed(ctx, event.ID))
}
