package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/GovindGNampoothiri/windCode/internal/config"
	"github.com/GovindGNampoothiri/windCode/internal/operations"
)

// StatusProvider exposes the live run state
type StatusProvider interface {
	Snapshot() operations.StatusSnapshot
}

// StatusHandler serves health and run progress
type StatusHandler struct {
	status  StatusProvider
	started time.Time
	logger  *slog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(status StatusProvider, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		status:  status,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "status")),
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	RunStatus string `json:"run_status"`
	Uptime    string `json:"uptime"`
}

// HealthCheck handles GET /health. It reports unhealthy once the run failed.
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	resp := HealthResponse{
		Status:    "ok",
		Version:   config.AppVersion,
		RunStatus: string(snap.Status),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	if snap.Status == operations.RunStatusFailed {
		resp.Status = "failed"
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}

// Status handles GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.status.Snapshot())
}
