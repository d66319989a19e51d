package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/shop-search-scraper/internal/models"
	"github.com/maltedev/shop-search-scraper/internal/parser"
	"github.com/maltedev/shop-search-scraper/internal/ratelimit"
)

var blockIndicators = []string{
	"captcha",
	"access denied",
	"blocked",
	"unable to process request",
}

// ContainsBlockIndicator reports whether body looks like a refusal page.
func ContainsBlockIndicator(body string) bool {
	lower := strings.ToLower(body)
	for _, indicator := range blockIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func BuildSearchURL(endpoint, term string) string {
	return endpoint + "?q=" + url.QueryEscape(term) + "&cc=us&first=1"
}

// SearchScraper runs the fetch, classify and retry loop for one term at a
// time. It holds no per-term state and is safe for concurrent use as long as
// each call gets its own Session.
type SearchScraper struct {
	parser  parser.Parser
	sink    ResultSink
	sleeper ratelimit.Sleeper
	opts    Options
	now     func() time.Time
	logger  *slog.Logger
}

func NewSearchScraper(p parser.Parser, sink ResultSink, opts Options, logger *slog.Logger) *SearchScraper {
	return &SearchScraper{
		parser:  p,
		sink:    sink,
		sleeper: ratelimit.TimerSleeper{},
		opts:    opts,
		now:     time.Now,
		logger:  logger.With("component", "search_scraper"),
	}
}

func (s *SearchScraper) WithSleeper(sleeper ratelimit.Sleeper) *SearchScraper {
	s.sleeper = sleeper
	return s
}

func (s *SearchScraper) WithClock(now func() time.Time) *SearchScraper {
	s.now = now
	return s
}

// Scrape always returns a result. The error is non-nil only when the
// context was cancelled or the sink failed to persist a non-empty result.
func (s *SearchScraper) Scrape(ctx context.Context, session Session, term string) (*models.ScrapeResult, error) {
	term = strings.TrimSpace(term)
	searchURL := BuildSearchURL(s.opts.Endpoint, term)
	timeout := s.opts.timeoutFor(session)
	backoff := s.opts.backoffFor(session)

	log := s.logger.With("term", term, "rotating", session.Rotating())
	log.Info("scraping search term", "url", searchURL)

	var (
		listings []models.Listing
		outcome  = models.OutcomeEmpty
		attempts int
		ctxErr   error
	)

retry:
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if session.Rotating() && !session.Rotator.RotateIdentity(ctx) {
				log.Warn("identity rotation failed, giving up", "attempt", attempt)
				break
			}
			if err := s.sleeper.Sleep(ctx, backoff); err != nil {
				ctxErr = err
				break
			}
			log.Info("retrying search", "attempt", attempt+1, "max_attempts", s.opts.MaxRetries+1)
		}

		attempts++
		result := session.Fetcher.Get(ctx, searchURL, timeout)

		found := s.extract(result, log)
		if len(found) > 0 {
			listings = found
			outcome = models.OutcomeSuccess
			break
		}

		switch {
		case ctx.Err() != nil:
			ctxErr = ctx.Err()
			break retry
		case result.Succeeded && ContainsBlockIndicator(result.Body):
			if !session.Rotating() {
				log.Warn("blocked without rotation, stopping", "attempt", attempt, "status", result.StatusCode)
				outcome = models.OutcomeBlocked
				break retry
			}
			log.Info("blocked, rotating identity", "attempt", attempt, "status", result.StatusCode)
		case !result.Succeeded:
			log.Debug("fetch failed", "attempt", attempt, "error", result.Err)
		default:
			log.Debug("no listings on page", "attempt", attempt, "status", result.StatusCode)
		}
	}

	if ctxErr == nil && outcome != models.OutcomeSuccess {
		ctxErr = ctx.Err()
	}
	if ctxErr != nil {
		outcome = models.OutcomeError
	} else if outcome == models.OutcomeEmpty && attempts == s.opts.MaxRetries+1 {
		log.Warn("failed to fetch data", "attempts", attempts)
	}

	scraped := models.NewScrapeResult(term, listings, s.now(), outcome, attempts)
	log.Info("search term finished",
		"outcome", scraped.Outcome,
		"listings", scraped.ListingCount,
		"attempts", scraped.Attempts)

	if ctxErr != nil {
		return scraped, fmt.Errorf("scrape of %q interrupted: %w", term, ctxErr)
	}

	if scraped.HasListings() && s.sink != nil {
		if err := s.sink.Save(ctx, scraped); err != nil {
			return scraped, fmt.Errorf("failed to persist results for %q: %w", term, err)
		}
	}

	return scraped, nil
}

func (s *SearchScraper) extract(result models.FetchResult, log *slog.Logger) []models.Listing {
	if !result.HasBody() {
		return nil
	}
	// A 404 search page never carries listings.
	if result.StatusCode == http.StatusNotFound {
		return nil
	}

	listings, err := s.parser.ParseListings(result.Body)
	if err != nil {
		log.Warn("failed to parse results page", "error", err)
		return nil
	}
	return listings
}
