package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/shop-search-scraper/internal/models"
	"github.com/maltedev/shop-search-scraper/internal/ratelimit"
	"github.com/maltedev/shop-search-scraper/internal/scraper"
)

// Runner scrapes one term with a session it does not share.
type Runner interface {
	Scrape(ctx context.Context, session scraper.Session, term string) (*models.ScrapeResult, error)
}

// SessionFactory builds a fresh fetch session for a single term.
type SessionFactory func(term string) (scraper.Session, error)

type Config struct {
	// RunID tags logs and progress; a random one is generated when empty.
	RunID      string
	MaxWorkers int
	BatchSize  int
	BatchPause time.Duration
}

func DefaultConfig() Config {
	return Config{MaxWorkers: 3, BatchSize: 5, BatchPause: 10 * time.Second}
}

type Dispatcher struct {
	runner   Runner
	sessions SessionFactory
	cfg      Config
	sleeper  ratelimit.Sleeper
	progress *Progress
	logger   *slog.Logger
}

func New(runner Runner, sessions SessionFactory, cfg Config, progress *Progress, logger *slog.Logger) *Dispatcher {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if progress == nil {
		progress = NewProgress()
	}
	return &Dispatcher{
		runner:   runner,
		sessions: sessions,
		cfg:      cfg,
		sleeper:  ratelimit.TimerSleeper{},
		progress: progress,
		logger:   logger.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) WithSleeper(s ratelimit.Sleeper) *Dispatcher {
	d.sleeper = s
	return d
}

// Batches splits terms into consecutive groups of at most size.
func Batches(terms []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, (len(terms)+size-1)/size)
	for start := 0; start < len(terms); start += size {
		end := min(start+size, len(terms))
		batches = append(batches, terms[start:end])
	}
	return batches
}

type job struct {
	term string
	done *sync.WaitGroup
}

// Run processes terms batch by batch on a fixed pool of workers. Each batch
// finishes completely before the pause that precedes the next one. Per-term
// failures are recorded and never abort the run; only ctx cancellation
// stops it early.
func (d *Dispatcher) Run(ctx context.Context, terms []string) (Summary, error) {
	batches := Batches(terms, d.cfg.BatchSize)
	runID := d.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	log := d.logger.With("run_id", runID)

	d.progress.start(runID, len(terms), len(batches), time.Now())
	log.Info("dispatch started",
		"terms", len(terms),
		"batches", len(batches),
		"batch_size", d.cfg.BatchSize,
		"workers", d.cfg.MaxWorkers)

	jobs := make(chan job)
	var g errgroup.Group
	for range d.cfg.MaxWorkers {
		g.Go(func() error {
			for j := range jobs {
				d.process(ctx, j.term, log)
				j.done.Done()
			}
			return nil
		})
	}

	var runErr error
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		n := i + 1
		d.progress.startBatch(n)
		log.Info("processing batch", "batch", n, "of", len(batches), "terms", len(batch))

		var wg sync.WaitGroup
		wg.Add(len(batch))
		for _, term := range batch {
			jobs <- job{term: term, done: &wg}
		}
		wg.Wait()

		snap := d.progress.Snapshot()
		log.Info("batch completed",
			"batch", n,
			"completed", snap.Completed,
			"total", snap.TotalTerms,
			"listings", snap.Listings)

		if n < len(batches) {
			log.Info("pausing before next batch", "pause", d.cfg.BatchPause)
			if err := d.sleeper.Sleep(ctx, d.cfg.BatchPause); err != nil {
				runErr = err
				break
			}
		}
	}

	close(jobs)
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	d.progress.finish(time.Now())
	summary := d.progress.Snapshot()
	log.Info("dispatch finished",
		"completed", summary.Completed,
		"succeeded", summary.Succeeded,
		"empty", summary.Empty,
		"blocked", summary.Blocked,
		"failed", summary.Failed,
		"listings", summary.Listings)

	return summary, runErr
}

func (d *Dispatcher) process(ctx context.Context, term string, log *slog.Logger) {
	log = log.With("term", term)

	outcome, listings, err := d.runTerm(ctx, term)
	d.progress.record(outcome, listings)

	switch {
	case err != nil:
		log.Error("error while processing term", "error", err)
	case listings > 0:
		log.Info("items found", "count", listings)
	default:
		log.Warn("no items found", "outcome", outcome)
	}
}

func (d *Dispatcher) runTerm(ctx context.Context, term string) (outcome models.Outcome, listings int, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, listings = models.OutcomeError, 0
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	session, err := d.sessions(term)
	if err != nil {
		return models.OutcomeError, 0, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	result, err := d.runner.Scrape(ctx, session, term)
	if result == nil {
		if err == nil {
			err = errors.New("scraper returned no result")
		}
		return models.OutcomeError, 0, err
	}
	if err != nil {
		// Sink failures still carry the scraped listings.
		return models.OutcomeError, result.ListingCount, err
	}
	return result.Outcome, result.ListingCount, nil
}
