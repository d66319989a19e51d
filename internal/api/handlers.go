package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maltedev/shop-search-scraper/internal/database"
	"github.com/maltedev/shop-search-scraper/internal/dispatch"
)

// ProgressSource reports the state of the current dispatch run.
type ProgressSource interface {
	Snapshot() dispatch.Summary
}

// OutboxStats is implemented by *database.OutboxRepository.
type OutboxStats interface {
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
}

type Handlers struct {
	progress ProgressSource
	outbox   OutboxStats
	logger   *slog.Logger
}

// NewHandlers builds the status handlers. outbox may be nil when no
// database is configured.
func NewHandlers(progress ProgressSource, outbox OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		progress: progress,
		outbox:   outbox,
		logger:   logger.With("component", "api"),
	}
}

type OutboxHealth struct {
	Pending    int64 `json:"pending"`
	DeadLetter int64 `json:"dead_letter"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Outbox  *OutboxHealth `json:"outbox,omitempty"`
}

// Health reports liveness plus outbox backlog when a database is attached.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		pending, err := h.outbox.CountByStatus(r.Context(), database.OutboxStatusPending, database.OutboxStatusFailed)
		if err != nil {
			h.logger.Error("failed to count pending outbox events", "error", err)
			h.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "error", Message: "database unavailable"})
			return
		}
		deadLetter, err := h.outbox.CountByStatus(r.Context(), database.OutboxStatusDeadLetter)
		if err != nil {
			h.logger.Error("failed to count dead letter events", "error", err)
			h.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "error", Message: "database unavailable"})
			return
		}

		resp.Outbox = &OutboxHealth{Pending: pending, DeadLetter: deadLetter}
		if pending > 1000 {
			resp.Status = "warning"
			resp.Message = "High number of pending outbox events"
		}
		if deadLetter > 100 {
			resp.Status = "error"
			resp.Message = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, resp)
}

func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.progress.Snapshot())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
