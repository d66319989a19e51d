package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/shop-search-scraper/internal/api"
	"github.com/maltedev/shop-search-scraper/internal/config"
	"github.com/maltedev/shop-search-scraper/internal/database"
	"github.com/maltedev/shop-search-scraper/internal/events"
	"github.com/maltedev/shop-search-scraper/internal/storage"
)

// resultSinks owns every destination a finished result is written to.
type resultSinks struct {
	storage.MultiSink

	db          *database.DB
	redis       *redis.Client
	relay       *database.Relay
	relayCancel context.CancelFunc
	relayDone   chan struct{}
	logger      *slog.Logger
}

func openSinks(ctx context.Context, cfg *config.Config, runID string, logger *slog.Logger) (*resultSinks, error) {
	s := &resultSinks{logger: logger}
	s.MultiSink = append(s.MultiSink, storage.NewJSONWriter(cfg.Scraper.OutputDir, logger))

	if cfg.Redis.Enabled {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.db = db

		if err := db.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	switch {
	case s.db != nil && s.redis != nil:
		store := database.NewListingStore(s.db, runID)
		s.MultiSink = append(s.MultiSink, events.NewPublisher(store, cfg.Redis.Stream, logger))
		s.startRelay()
	case s.db != nil:
		s.MultiSink = append(s.MultiSink, database.NewListingStore(s.db, runID))
	case s.redis != nil:
		s.MultiSink = append(s.MultiSink, events.NewStreamPublisher(s.redis, cfg.Redis.Stream, logger))
	}

	return s, nil
}

func (s *resultSinks) startRelay() {
	s.relay = database.NewRelay(s.db, s.redis, s.logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.relayCancel = cancel
	s.relayDone = make(chan struct{})

	go func() {
		defer close(s.relayDone)
		if err := s.relay.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("relay stopped with error", "error", err)
		}
	}()
}

// Flush stops the background relay and publishes whatever is still pending.
func (s *resultSinks) Flush(ctx context.Context) {
	if s.relay == nil {
		return
	}

	s.relayCancel()
	<-s.relayDone

	drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.relay.Drain(drainCtx); err != nil {
		s.logger.Warn("outbox not fully drained", "error", err)
	}
	s.relay = nil
}

func (s *resultSinks) outboxStats() api.OutboxStats {
	if s.db == nil {
		return nil
	}
	return database.NewOutboxRepository(s.db)
}

func (s *resultSinks) Close() {
	if s.relay != nil {
		s.relayCancel()
		<-s.relayDone
		s.relay = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("failed to close Redis client", "error", err)
		}
		s.redis = nil
	}
}
