package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/cryptogyan1/polyarb/internal/executor"
	"github.com/cryptogyan1/polyarb/internal/readiness"
)

// WalletStatusReader reads the funder's balance and exchange authorization.
type WalletStatusReader interface {
	Status(ctx context.Context) (readiness.WalletStatus, error)
	MinAllowance() *big.Int
}

// WalletHandler serves the wallet status. It never sends transactions.
type WalletHandler struct {
	status WalletStatusReader
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(status WalletStatusReader, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{status: status, logger: logger}
}

// GetStatus returns balance, allowance and operator approval.
// GET /api/wallet
func (h *WalletHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.status.Status(r.Context())
	if err != nil {
		logHandler(h.logger, "wallet").ErrorContext(r.Context(), "wallet status failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to read wallet status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":            st.Wallet.Hex(),
		"kind":              string(st.Kind),
		"balance_usdc":      executor.FromBaseUnits(st.Balance).String(),
		"allowance_usdc":    executor.FromBaseUnits(st.Allowance).String(),
		"operator_approved": st.OperatorApproved,
		"authorized":        st.Authorized(h.status.MinAllowance()),
	})
}
