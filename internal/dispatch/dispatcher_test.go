package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/shop-search-scraper/internal/models"
	"github.com/maltedev/shop-search-scraper/internal/scraper"
	"github.com/maltedev/shop-search-scraper/pkg/logger"
)

type nopFetcher struct {
	closed *atomic.Int32
}

func (f nopFetcher) Get(ctx context.Context, url string, timeout time.Duration) models.FetchResult {
	return models.FetchResult{}
}

func (f nopFetcher) Close() {
	if f.closed != nil {
		f.closed.Add(1)
	}
}

type fakeRunner struct {
	mu       sync.Mutex
	terms    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	fn       func(term string) (*models.ScrapeResult, error)
}

func (r *fakeRunner) Scrape(ctx context.Context, session scraper.Session, term string) (*models.ScrapeResult, error) {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		peak := r.peak.Load()
		if cur <= peak || r.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	r.mu.Lock()
	r.terms = append(r.terms, term)
	r.mu.Unlock()

	if r.fn != nil {
		return r.fn(term)
	}
	listing := models.Listing{Title: term, Price: models.NotAvailable, Link: models.NotAvailable, Store: models.NotAvailable}
	return models.NewScrapeResult(term, []models.Listing{listing}, time.Now(), models.OutcomeSuccess, 1), nil
}

func (r *fakeRunner) processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.terms)
}

// pauseRecorder remembers how many terms had completed at each pause.
type pauseRecorder struct {
	runner *fakeRunner
	seen   []int
	slept  []time.Duration
}

func (p *pauseRecorder) Sleep(ctx context.Context, d time.Duration) error {
	p.seen = append(p.seen, p.runner.processed())
	p.slept = append(p.slept, d)
	return ctx.Err()
}

func makeTerms(n int) []string {
	terms := make([]string, n)
	for i := range terms {
		terms[i] = fmt.Sprintf("term-%02d", i)
	}
	return terms
}

func directSessions(closed *atomic.Int32) SessionFactory {
	return func(term string) (scraper.Session, error) {
		return scraper.DirectSession(nopFetcher{closed: closed}), nil
	}
}

func TestBatches(t *testing.T) {
	batches := Batches(makeTerms(12), 5)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 5)
	assert.Len(t, batches[1], 5)
	assert.Len(t, batches[2], 2)
	assert.Equal(t, "term-10", batches[2][0])

	assert.Empty(t, Batches(nil, 5))
	assert.Len(t, Batches(makeTerms(3), 0), 3)
}

func TestRunPausesBetweenBatchesOnly(t *testing.T) {
	runner := &fakeRunner{}
	pauses := &pauseRecorder{runner: runner}
	var closed atomic.Int32

	d := New(runner, directSessions(&closed), Config{MaxWorkers: 3, BatchSize: 5, BatchPause: 10 * time.Second}, nil, logger.Discard()).
		WithSleeper(pauses)

	summary, err := d.Run(context.Background(), makeTerms(12))
	require.NoError(t, err)

	assert.Equal(t, []int{5, 10}, pauses.seen)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, pauses.slept)
	assert.Equal(t, 12, runner.processed())
	assert.LessOrEqual(t, runner.peak.Load(), int32(3))
	assert.EqualValues(t, 12, closed.Load())

	assert.Equal(t, 12, summary.TotalTerms)
	assert.Equal(t, 12, summary.Completed)
	assert.Equal(t, 12, summary.Succeeded)
	assert.Equal(t, 12, summary.Listings)
	assert.Equal(t, 3, summary.TotalBatches)
	assert.Equal(t, 3, summary.Batch)
	assert.False(t, summary.Running)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunIsolatesTermFailures(t *testing.T) {
	runner := &fakeRunner{fn: func(term string) (*models.ScrapeResult, error) {
		switch term {
		case "term-00":
			panic("boom")
		case "term-01":
			return nil, errors.New("unexpected")
		case "term-02":
			return models.NewScrapeResult(term, nil, time.Now(), models.OutcomeBlocked, 1), nil
		case "term-03":
			return models.NewScrapeResult(term, nil, time.Now(), models.OutcomeEmpty, 16), nil
		}
		listing := models.Listing{Title: term}
		return models.NewScrapeResult(term, []models.Listing{listing, listing}, time.Now(), models.OutcomeSuccess, 1), nil
	}}

	progress := NewProgress()
	d := New(runner, directSessions(nil), Config{MaxWorkers: 2, BatchSize: 5}, progress, logger.Discard()).
		WithSleeper(&pauseRecorder{runner: runner})

	summary, err := d.Run(context.Background(), makeTerms(6))
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Completed)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Blocked)
	assert.Equal(t, 1, summary.Empty)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 4, summary.Listings)
	assert.Equal(t, summary, progress.Snapshot())
}

func TestRunSessionFactoryError(t *testing.T) {
	runner := &fakeRunner{}
	factory := func(term string) (scraper.Session, error) {
		return scraper.Session{}, errors.New("socks proxy unreachable")
	}

	d := New(runner, factory, Config{MaxWorkers: 1, BatchSize: 2}, nil, logger.Discard()).
		WithSleeper(&pauseRecorder{runner: runner})

	summary, err := d.Run(context.Background(), makeTerms(2))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 0, runner.processed())
}

func TestRunStopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(runner, directSessions(nil), DefaultConfig(), nil, logger.Discard()).
		WithSleeper(&pauseRecorder{runner: runner})

	summary, err := d.Run(ctx, makeTerms(7))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Completed)
	assert.False(t, summary.Running)
}
