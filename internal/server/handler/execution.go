package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// ExecutionReader is the read side of the execution history.
type ExecutionReader interface {
	GetByID(ctx context.Context, id string) (domain.ArbExecution, error)
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ArbExecution, error)
}

// ExecutionHandler serves the execution history.
type ExecutionHandler struct {
	store  ExecutionReader
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler.
func NewExecutionHandler(store ExecutionReader, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{store: store, logger: logger}
}

type legView struct {
	MarketID string `json:"market_id"`
	TokenID  string `json:"token_id"`
	Outcome  string `json:"outcome"`
	Price    string `json:"price"`
	Size     string `json:"size"`
	OrderID  string `json:"order_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type executionView struct {
	ID             string    `json:"id"`
	Pair           string    `json:"pair"`
	PriceA         string    `json:"price_a"`
	PriceB         string    `json:"price_b"`
	TotalCost      string    `json:"total_cost"`
	ExpectedProfit string    `json:"expected_profit"`
	Outcome        string    `json:"outcome"`
	Status         string    `json:"status"`
	SkipReason     string    `json:"skip_reason,omitempty"`
	ReadOnly       bool      `json:"read_only"`
	Spend          string    `json:"spend_usdc"`
	Units          string    `json:"units"`
	ReadyReason    string    `json:"readiness_reason,omitempty"`
	Legs           []legView `json:"legs,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

func newExecutionView(e domain.ArbExecution) executionView {
	opp := e.Opportunity
	v := executionView{
		ID:             e.ID,
		Pair:           opp.Label(),
		PriceA:         opp.PriceA.String(),
		PriceB:         opp.PriceB.String(),
		TotalCost:      opp.TotalCost.String(),
		ExpectedProfit: opp.ExpectedProfit.String(),
		Outcome:        string(e.Outcome),
		Status:         string(e.Status),
		SkipReason:     e.SkipReason,
		ReadOnly:       e.ReadOnly,
		Spend:          e.Spend.String(),
		Units:          e.Units.String(),
		StartedAt:      e.StartedAt,
		CompletedAt:    e.CompletedAt,
	}
	if e.Readiness != nil {
		v.ReadyReason = string(e.Readiness.Reason)
	}
	for _, l := range e.Legs {
		v.Legs = append(v.Legs, legView{
			MarketID: l.MarketID,
			TokenID:  l.TokenID,
			Outcome:  string(l.Outcome),
			Price:    l.Price.String(),
			Size:     l.Size.String(),
			OrderID:  l.OrderID,
			Status:   string(l.Status),
			Error:    l.Error,
		})
	}
	return v
}

// ListRecent returns executions newest first, without legs.
// GET /api/executions?limit=50&offset=0&since=2026-01-01T00:00:00Z
func (h *ExecutionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since/until must be RFC 3339 timestamps")
		return
	}

	list, err := h.store.ListRecent(r.Context(), opts)
	if err != nil {
		logHandler(h.logger, "executions").ErrorContext(r.Context(), "list executions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	out := make([]executionView, 0, len(list))
	for _, e := range list {
		out = append(out, newExecutionView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": out})
}

// GetExecution returns one execution with its legs.
// GET /api/executions/{id}
func (h *ExecutionHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	exec, err := h.store.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "execution not found")
		return
	case err != nil:
		logHandler(h.logger, "executions").ErrorContext(r.Context(), "get execution failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}
	writeJSON(w, http.StatusOK, newExecutionView(exec))
}
