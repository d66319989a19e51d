package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/shop-search-scraper/internal/config"
	"github.com/maltedev/shop-search-scraper/internal/fetch"
	"github.com/maltedev/shop-search-scraper/internal/tor"
	"github.com/maltedev/shop-search-scraper/pkg/logger"
)

// tor-check verifies a local Tor setup: it observes the exit address,
// requests a new identity, observes again, then sends a GET and a POST
// through the proxy.
func main() {
	var (
		getURL  = flag.String("get-url", "https://httpbin.org/headers", "URL for the proxied GET check")
		postURL = flag.String("post-url", "https://httpbin.org/post", "URL for the proxied POST check")
		timeout = flag.Duration("timeout", 25*time.Second, "Per-request timeout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	f, err := tor.NewRotatingFetcher(tor.RotatingOptions{
		SocksAddr:       cfg.Tor.TorSocksAddr(),
		ControlAddr:     cfg.Tor.ControlAddr(),
		ControlPassword: cfg.Tor.ControlPassword,
		EchoURL:         cfg.Tor.EchoURL,
		EchoTimeout:     cfg.Tor.EchoTimeout,
		Rotator: tor.RotatorConfig{
			IdentityWait: cfg.Tor.IdentityWait,
			PollInterval: cfg.Tor.PollInterval,
			Strict:       true,
		},
		Fetch: fetch.Options{},
	}, logger)
	if err != nil {
		logger.Error("failed to create rotating fetcher", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	failed := false

	initial, err := f.ObserveAddress(ctx)
	if err != nil {
		logger.Warn("could not determine initial address, skipping rotation check", "error", err)
	} else {
		logger.Info("initial exit address", "address", initial)

		if f.RotateIdentity(ctx) {
			current, _ := f.ObserveAddress(ctx)
			logger.Info("address changed", "previous", initial, "current", current)
		} else {
			logger.Error("identity rotation failed or address unchanged")
			failed = true
		}
	}

	get := f.Get(ctx, *getURL, *timeout)
	if get.Succeeded && get.StatusCode == http.StatusOK {
		logger.Info("GET through proxy succeeded", "url", *getURL)
	} else {
		logger.Error("GET through proxy failed", "url", *getURL, "status", get.StatusCode, "error", get.Err)
		failed = true
	}

	post := f.Post(ctx, *postURL, []byte(`{"key":"value"}`), "application/json", *timeout)
	if post.Succeeded && post.StatusCode == http.StatusOK {
		logger.Info("POST through proxy succeeded", "url", *postURL)
	} else {
		logger.Error("POST through proxy failed", "url", *postURL, "status", post.StatusCode, "error", post.Err)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}
