package dispatch

import (
	"sync"
	"time"

	"github.com/maltedev/shop-search-scraper/internal/models"
)

// Summary is a point-in-time view of a dispatch run.
type Summary struct {
	RunID        string    `json:"run_id"`
	TotalTerms   int       `json:"total_terms"`
	Completed    int       `json:"completed"`
	Succeeded    int       `json:"succeeded"`
	Empty        int       `json:"empty"`
	Blocked      int       `json:"blocked"`
	Failed       int       `json:"failed"`
	Listings     int       `json:"listings"`
	Batch        int       `json:"batch"`
	TotalBatches int       `json:"total_batches"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Running      bool      `json:"running"`
}

// Progress is shared between the dispatcher and the status API.
type Progress struct {
	mu sync.RWMutex
	s  Summary
}

func NewProgress() *Progress {
	return &Progress{}
}

func (p *Progress) start(runID string, totalTerms, totalBatches int, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = Summary{
		RunID:        runID,
		TotalTerms:   totalTerms,
		TotalBatches: totalBatches,
		StartedAt:    now,
		Running:      true,
	}
}

func (p *Progress) startBatch(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s.Batch = n
}

func (p *Progress) record(outcome models.Outcome, listings int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.s.Completed++
	p.s.Listings += listings
	switch outcome {
	case models.OutcomeSuccess:
		p.s.Succeeded++
	case models.OutcomeBlocked:
		p.s.Blocked++
	case models.OutcomeEmpty:
		p.s.Empty++
	default:
		p.s.Failed++
	}
}

func (p *Progress) finish(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s.Running = false
	p.s.FinishedAt = now
}

func (p *Progress) Snapshot() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.s
}
