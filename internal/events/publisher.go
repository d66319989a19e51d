package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/shop-search-scraper/internal/database"
	"github.com/maltedev/shop-search-scraper/internal/models"
)

const (
	EventTypeSearchResultScraped = "SEARCH_RESULT_SCRAPED"
	AggregateSearchResult        = "search_result"
	Source                       = "bing-shop"
)

// SearchResultScrapedPayload is published once per term that yielded listings.
type SearchResultScrapedPayload struct {
	EventID      string           `json:"event_id"`
	EventType    string           `json:"event_type"`
	Timestamp    time.Time        `json:"timestamp"`
	SearchTerm   string           `json:"search_term"`
	ScrapedAt    string           `json:"scraped_at"`
	ListingCount int              `json:"listing_count"`
	Outcome      string           `json:"outcome"`
	Attempts     int              `json:"attempts"`
	Listings     []models.Listing `json:"listings"`
	Source       string           `json:"source"`
}

func NewSearchResultScraped(result *models.ScrapeResult) *SearchResultScrapedPayload {
	return &SearchResultScrapedPayload{
		EventID:      uuid.New().String(),
		EventType:    EventTypeSearchResultScraped,
		Timestamp:    time.Now().UTC(),
		SearchTerm:   result.SearchTerm,
		ScrapedAt:    result.Timestamp,
		ListingCount: result.ListingCount,
		Outcome:      string(result.Outcome),
		Attempts:     result.Attempts,
		Listings:     result.Listings,
		Source:       Source,
	}
}

// OutboxEvent wraps the payload for the outbox table or a direct publish.
func (p *SearchResultScrapedPayload) OutboxEvent(stream string) (*database.OutboxEvent, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	id, err := uuid.Parse(p.EventID)
	if err != nil {
		id = uuid.New()
	}

	return &database.OutboxEvent{
		ID:            id,
		AggregateType: AggregateSearchResult,
		EventType:     p.EventType,
		Payload:       payload,
		TargetStream:  stream,
	}, nil
}

// Publisher stores results and their SEARCH_RESULT_SCRAPED event in one
// transaction; the database relay forwards the event to Redis later.
type Publisher struct {
	store  *database.ListingStore
	stream string
	logger *slog.Logger
}

func NewPublisher(store *database.ListingStore, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) Save(ctx context.Context, result *models.ScrapeResult) error {
	event, err := NewSearchResultScraped(result).OutboxEvent(p.stream)
	if err != nil {
		return err
	}

	id, err := p.store.SaveResult(ctx, result, event)
	if err != nil {
		return fmt.Errorf("failed to store result with event: %w", err)
	}

	p.logger.Info("result stored",
		"result_id", id,
		"event_id", event.ID,
		"term", result.SearchTerm,
		"listings", result.ListingCount)
	return nil
}

// StreamPublisher XADDs events straight to Redis without a database.
type StreamPublisher struct {
	client database.RedisClient
	stream string
	logger *slog.Logger
}

func NewStreamPublisher(client database.RedisClient, stream string, logger *slog.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "stream_publisher"),
	}
}

func (p *StreamPublisher) PublishResult(ctx context.Context, result *models.ScrapeResult) error {
	event, err := NewSearchResultScraped(result).OutboxEvent(p.stream)
	if err != nil {
		return err
	}
	event.AggregateID = result.SearchTerm
	event.Prepare(time.Now())

	if err := database.Publish(ctx, p.client, event); err != nil {
		return err
	}

	p.logger.Info("event published",
		"event_id", event.ID,
		"stream", event.TargetStream,
		"term", result.SearchTerm)
	return nil
}

func (p *StreamPublisher) Save(ctx context.Context, result *models.ScrapeResult) error {
	return p.PublishResult(ctx, result)
}
