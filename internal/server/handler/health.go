package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode      string
	readOnly  bool
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler for a process running in mode.
func NewHealthHandler(mode string, readOnly bool, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{mode: mode, readOnly: readOnly, startedAt: time.Now(), logger: logger}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mode":      h.mode,
		"read_only": h.readOnly,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
