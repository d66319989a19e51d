package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/maltedev/shop-search-scraper/internal/api"
	"github.com/maltedev/shop-search-scraper/internal/config"
	"github.com/maltedev/shop-search-scraper/internal/dispatch"
	"github.com/maltedev/shop-search-scraper/internal/fetch"
	"github.com/maltedev/shop-search-scraper/internal/parser"
	"github.com/maltedev/shop-search-scraper/internal/ratelimit"
	"github.com/maltedev/shop-search-scraper/internal/scraper"
	"github.com/maltedev/shop-search-scraper/internal/terms"
	"github.com/maltedev/shop-search-scraper/internal/tor"
	"github.com/maltedev/shop-search-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var (
		inputFile = flag.String("input", cfg.Scraper.InputFile, "File with one search term per line")
		outputDir = flag.String("out", cfg.Scraper.OutputDir, "Directory for result JSON files")
		workers   = flag.Int("workers", cfg.Scraper.MaxWorkers, "Maximum concurrent workers")
		batchSize = flag.Int("batch-size", cfg.Scraper.BatchSize, "Search terms per batch")
		retries   = flag.Int("retries", cfg.Scraper.RetryAttempts, "Retry attempts per search term")
		useTor    = flag.Bool("tor", cfg.Tor.Enabled, "Route requests through Tor and rotate identities")
		strict    = flag.Bool("strict-rotation", cfg.Tor.StrictRotation, "Require an observed address change after rotation")
		statusAdr = flag.String("status-addr", cfg.Status.Addr, "Listen address for the status API (empty disables it)")
	)
	flag.Parse()

	cfg.Scraper.InputFile = *inputFile
	cfg.Scraper.OutputDir = *outputDir
	cfg.Scraper.MaxWorkers = *workers
	cfg.Scraper.BatchSize = *batchSize
	cfg.Scraper.RetryAttempts = *retries
	cfg.Tor.Enabled = *useTor
	cfg.Tor.StrictRotation = *strict
	cfg.Status.Addr = *statusAdr

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	searchTerms, err := terms.Load(cfg.Scraper.InputFile)
	if err != nil {
		logger.Error("failed to load search terms", "file", cfg.Scraper.InputFile, "error", err)
		os.Exit(1)
	}

	runID := uuid.New().String()
	logger = logger.With("run_id", runID)

	banner := []any{
		"terms", len(searchTerms),
		"batch_size", cfg.Scraper.BatchSize,
		"workers", cfg.Scraper.MaxWorkers,
		"retries", cfg.Scraper.RetryAttempts,
		"tor", cfg.Tor.Enabled,
	}
	if cfg.Tor.Enabled {
		banner = append(banner,
			"tor_socks", cfg.Tor.TorSocksAddr(),
			"tor_control", cfg.Tor.ControlAddr(),
			"strict_rotation", cfg.Tor.StrictRotation)
	}
	logger.Info("starting shop search scraper", banner...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	sinks, err := openSinks(ctx, cfg, runID, logger)
	if err != nil {
		logger.Error("failed to set up result sinks", "error", err)
		os.Exit(1)
	}

	progress := dispatch.NewProgress()
	if cfg.Status.Addr != "" {
		handlers := api.NewHandlers(progress, sinks.outboxStats(), logger)
		go func() {
			if err := api.Serve(ctx, cfg.Status.Addr, api.NewRouter(handlers), logger); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
	}

	opts := scraper.DefaultOptions()
	opts.Endpoint = cfg.Scraper.SearchEndpoint
	opts.MaxRetries = cfg.Scraper.RetryAttempts
	opts.FetchTimeout = cfg.Scraper.FetchTimeout
	opts.RotatingTimeout = cfg.Scraper.RotatingTimeout

	searchScraper := scraper.NewSearchScraper(parser.NewBingShopParser(), sinks.MultiSink, opts, logger)

	limiter := ratelimit.NewRequestLimiter(cfg.Scraper.RequestsPerSecond)
	dispatcher := dispatch.New(searchScraper, sessionFactory(cfg, limiter, logger), dispatch.Config{
		RunID:      runID,
		MaxWorkers: cfg.Scraper.MaxWorkers,
		BatchSize:  cfg.Scraper.BatchSize,
		BatchPause: cfg.Scraper.BatchPause,
	}, progress, logger)

	summary, err := dispatcher.Run(ctx, searchTerms)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dispatch failed", "error", err)
	}

	sinks.Flush(context.Background())

	fmt.Printf("Processed %d/%d search terms: %d with items, %d empty, %d blocked, %d errors (%d items total)\n",
		summary.Completed, summary.TotalTerms, summary.Succeeded, summary.Empty,
		summary.Blocked, summary.Failed, summary.Listings)

	os.Exit(shutdown(sinks, err))
}

// shutdown releases every sink and maps the dispatch error to an exit code.
func shutdown(sinks *resultSinks, err error) int {
	sinks.Close()
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 0
}

// sessionFactory builds an exclusive fetcher for every search term.
func sessionFactory(cfg *config.Config, limiter *ratelimit.RequestLimiter, logger *slog.Logger) dispatch.SessionFactory {
	fetchOpts := fetch.Options{Logger: logger, Limiter: limiter}

	if !cfg.Tor.Enabled {
		return func(term string) (scraper.Session, error) {
			return scraper.DirectSession(fetch.NewDirect(fetchOpts)), nil
		}
	}

	return func(term string) (scraper.Session, error) {
		f, err := tor.NewRotatingFetcher(tor.RotatingOptions{
			SocksAddr:       cfg.Tor.TorSocksAddr(),
			ControlAddr:     cfg.Tor.ControlAddr(),
			ControlPassword: cfg.Tor.ControlPassword,
			EchoURL:         cfg.Tor.EchoURL,
			EchoTimeout:     cfg.Tor.EchoTimeout,
			Rotator: tor.RotatorConfig{
				IdentityWait: cfg.Tor.IdentityWait,
				PollInterval: cfg.Tor.PollInterval,
				Strict:       cfg.Tor.StrictRotation,
			},
			Fetch: fetchOpts,
		}, logger.With("term", term))
		if err != nil {
			return scraper.Session{}, err
		}
		return scraper.RotatingSession(f), nil
	}
}
