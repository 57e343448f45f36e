package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// QuoteReader reads the mirrored quotes.
type QuoteReader interface {
	GetQuote(ctx context.Context, tokenID string) (domain.OutcomeQuote, time.Time, error)
}

// QuoteHandler serves the last quotes seen by the monitor.
type QuoteHandler struct {
	quotes QuoteReader
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(quotes QuoteReader, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, logger: logger}
}

type quoteView struct {
	TokenID   string    `json:"token_id"`
	BestBid   *string   `json:"best_bid"`
	BestAsk   *string   `json:"best_ask"`
	UpdatedAt time.Time `json:"updated_at"`
}

func nullable(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

// GetQuote returns the mirrored top of book for a token. A missing side is
// null.
// GET /api/quotes/{token}
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	q, at, err := h.quotes.GetQuote(r.Context(), token)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no quote for token")
		return
	case err != nil:
		logHandler(h.logger, "quotes").ErrorContext(r.Context(), "get quote failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get quote")
		return
	}
	writeJSON(w, http.StatusOK, quoteView{
		TokenID:   token,
		BestBid:   nullable(q.BestBid),
		BestAsk:   nullable(q.BestAsk),
		UpdatedAt: at.UTC(),
	})
}
