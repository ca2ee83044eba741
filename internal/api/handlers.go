package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/starford/newsbot/internal/pipeline"
	"github.com/starford/newsbot/internal/seen"
)

// StatsFunc reads aggregate seen-set counts.
type StatsFunc func(ctx context.Context) (seen.Stats, error)

// RunReporter exposes the most recent pipeline run.
type RunReporter interface {
	LastRun() (pipeline.Result, bool)
}

// Handler holds the status route handlers.
type Handler struct {
	stats  StatsFunc
	runs   RunReporter
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(stats StatsFunc, runs RunReporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{stats: stats, runs: runs, logger: logger.With("component", "api")}
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Ready handles GET /health/ready. It fails while the seen store cannot be read.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.stats(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// LastRun handles GET /api/runs/last.
func (h *Handler) LastRun(w http.ResponseWriter, _ *http.Request) {
	res, ok := h.runs.LastRun()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no run yet"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
