package scraper

import (
	"context"
	"time"

	"github.com/maltedev/shop-search-scraper/internal/models"
)

// Fetcher performs one request and folds every failure into the result.
type Fetcher interface {
	Get(ctx context.Context, url string, timeout time.Duration) models.FetchResult
	Close()
}

// IdentityRotator requests a new egress identity. false is a hard failure.
type IdentityRotator interface {
	RotateIdentity(ctx context.Context) bool
}

type RotatingFetcher interface {
	Fetcher
	IdentityRotator
}

// Session is the fetch capability owned by one search-term run. Rotator is
// nil for direct sessions.
type Session struct {
	Fetcher Fetcher
	Rotator IdentityRotator
}

func DirectSession(f Fetcher) Session {
	return Session{Fetcher: f}
}

func RotatingSession(f RotatingFetcher) Session {
	return Session{Fetcher: f, Rotator: f}
}

func (s Session) Rotating() bool {
	return s.Rotator != nil
}

func (s Session) Close() {
	if s.Fetcher != nil {
		s.Fetcher.Close()
	}
}

// ResultSink persists a result that carries at least one listing.
type ResultSink interface {
	Save(ctx context.Context, result *models.ScrapeResult) error
}

type Options struct {
	Endpoint        string
	MaxRetries      int
	FetchTimeout    time.Duration
	RotatingTimeout time.Duration
	DirectBackoff   time.Duration
	RotatingBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{
		Endpoint:        "https://www.bing.com/shop",
		MaxRetries:      15,
		FetchTimeout:    20 * time.Second,
		RotatingTimeout: 25 * time.Second,
		DirectBackoff:   3 * time.Second,
		RotatingBackoff: 7 * time.Second,
	}
}

func (o Options) timeoutFor(s Session) time.Duration {
	if s.Rotating() {
		return o.RotatingTimeout
	}
	return o.FetchTimeout
}

func (o Options) backoffFor(s Session) time.Duration {
	if s.Rotating() {
		return o.RotatingBackoff
	}
	return o.DirectBackoff
}
