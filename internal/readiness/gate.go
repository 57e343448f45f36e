// Package readiness decides, right before each execution, whether the
// trading wallet is funded and authorized to trade on the exchange.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// DefaultMinAllowance is $1 in USDC base units.
var DefaultMinAllowance = big.NewInt(1_000_000)

// maxUint256 is the "unlimited" allowance sent by auto-remediation.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ChainClient is the on-chain capability the gate needs. Write methods block
// until the transaction is mined and fail if it reverted.
type ChainClient interface {
	// BalanceOf returns the USDC balance of owner in base units.
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	// Allowance returns the USDC allowance owner granted to spender.
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	// Approve sets the USDC allowance of spender, sent from the bot's key.
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error)
	// IsApprovedForAll reports the CTF (ERC-1155) operator approval.
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	// SetApprovalForAll grants or revokes CTF operator approval from the bot's key.
	SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (common.Hash, error)
	// IsContract reports whether code is deployed at addr.
	IsContract(ctx context.Context, addr common.Address) (bool, error)
}

// Config configures a Gate.
type Config struct {
	Wallet       common.Address // funder whose balance and approvals are checked
	Exchange     common.Address // spender / operator
	MinAllowance *big.Int
	// AutoRemediate enables approval transactions for EOA wallets. Disabled
	// in read-only mode.
	AutoRemediate bool
}

// Gate runs the readiness check. Apart from the wallet kind, which is probed
// once, nothing is cached between checks.
type Gate struct {
	chain  ChainClient
	cfg    Config
	logger *slog.Logger

	kindMu sync.Mutex
	kind   domain.WalletKind
}

// NewGate creates a readiness gate.
func NewGate(chain ChainClient, cfg Config, logger *slog.Logger) *Gate {
	if cfg.MinAllowance == nil {
		cfg.MinAllowance = DefaultMinAllowance
	}
	return &Gate{
		chain:  chain,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "readiness")),
	}
}

// WalletKind probes whether the wallet is an EOA or a contract. The first
// successful probe is remembered for the life of the gate.
func (g *Gate) WalletKind(ctx context.Context) (domain.WalletKind, error) {
	g.kindMu.Lock()
	defer g.kindMu.Unlock()

	if g.kind != "" {
		return g.kind, nil
	}
	isContract, err := g.chain.IsContract(ctx, g.cfg.Wallet)
	if err != nil {
		return "", fmt.Errorf("readiness: probe wallet code: %w", err)
	}
	g.kind = domain.WalletEOA
	if isContract {
		g.kind = domain.WalletContract
	}
	g.logger.Info("wallet kind detected",
		slog.String("wallet", g.cfg.Wallet.Hex()),
		slog.String("kind", string(g.kind)),
	)
	return g.kind, nil
}

// authState is the allowance/approval view of the wallet.
type authState struct {
	allowance *big.Int
	approved  bool
}

func (s authState) allowanceOK(min *big.Int) bool { return s.allowance.Cmp(min) >= 0 }

// Check verifies balance, then allowance and operator approval, for a
// required USDC amount in base units. The returned error is only set for
// chain read failures; a failed check is reported through the result.
func (g *Gate) Check(ctx context.Context, required *big.Int) (domain.ReadinessResult, error) {
	res := domain.ReadinessResult{Required: new(big.Int).Set(required)}

	balance, err := g.chain.BalanceOf(ctx, g.cfg.Wallet)
	if err != nil {
		return res, fmt.Errorf("readiness: balance: %w", err)
	}
	res.Available = balance
	if balance.Cmp(required) < 0 {
		res.Reason = domain.ReasonInsufficientBalance
		res.Remediation = domain.RemediationManual
		return res, nil
	}

	kind, err := g.WalletKind(ctx)
	if err != nil {
		return res, err
	}
	res.WalletKind = kind

	state, err := g.readAuth(ctx)
	if err != nil {
		return res, err
	}
	if state.allowanceOK(g.cfg.MinAllowance) && state.approved {
		res.Ready = true
		return res, nil
	}

	res.Reason = missingReason(state, g.cfg.MinAllowance)
	if !kind.CanSelfApprove() {
		// Contract wallets are approved by their owners, never by the bot.
		res.Remediation = domain.RemediationManual
		g.logger.Warn("wallet not authorized, manual approval required",
			slog.String("wallet", g.cfg.Wallet.Hex()),
			slog.String("reason", string(res.Reason)),
			slog.String("allowance", state.allowance.String()),
			slog.Bool("operator_approved", state.approved),
		)
		return res, nil
	}

	res.Remediation = domain.RemediationAuto
	if !g.cfg.AutoRemediate {
		g.logger.Warn("wallet not authorized, auto approval disabled",
			slog.String("reason", string(res.Reason)),
		)
		return res, nil
	}

	hashes, err := g.remediate(ctx, state)
	res.TxHashes = hashes
	if err != nil {
		res.Cause = err
		return res, nil
	}

	// Re-read: the transactions may be mined but external state can differ.
	after, err := g.readAuth(ctx)
	if err != nil {
		return res, err
	}
	if !after.allowanceOK(g.cfg.MinAllowance) || !after.approved {
		res.Reason = missingReason(after, g.cfg.MinAllowance)
		res.Cause = fmt.Errorf("readiness: still unauthorized after approval transactions")
		return res, nil
	}

	res.Ready = true
	res.Reason = domain.ReasonNone
	res.Remediated = true
	return res, nil
}

func (g *Gate) readAuth(ctx context.Context) (authState, error) {
	allowance, err := g.chain.Allowance(ctx, g.cfg.Wallet, g.cfg.Exchange)
	if err != nil {
		return authState{}, fmt.Errorf("readiness: allowance: %w", err)
	}
	approved, err := g.chain.IsApprovedForAll(ctx, g.cfg.Wallet, g.cfg.Exchange)
	if err != nil {
		return authState{}, fmt.Errorf("readiness: isApprovedForAll: %w", err)
	}
	return authState{allowance: allowance, approved: approved}, nil
}

// remediate sends whichever approval transactions are missing.
func (g *Gate) remediate(ctx context.Context, state authState) ([]string, error) {
	var hashes []string

	if !state.allowanceOK(g.cfg.MinAllowance) {
		g.logger.Info("sending approval transaction",
			slog.String("event", "auto_remediation"),
			slog.String("kind", "usdc_approve"),
			slog.String("spender", g.cfg.Exchange.Hex()),
		)
		tx, err := g.chain.Approve(ctx, g.cfg.Exchange, new(big.Int).Set(maxUint256))
		if err != nil {
			return hashes, fmt.Errorf("readiness: approve: %w", err)
		}
		hashes = append(hashes, tx.Hex())
		g.logger.Info("approval confirmed",
			slog.String("event", "auto_remediation"),
			slog.String("kind", "usdc_approve"),
			slog.String("tx", tx.Hex()),
		)
	}

	if !state.approved {
		g.logger.Info("sending approval transaction",
			slog.String("event", "auto_remediation"),
			slog.String("kind", "ctf_set_approval_for_all"),
			slog.String("operator", g.cfg.Exchange.Hex()),
		)
		tx, err := g.chain.SetApprovalForAll(ctx, g.cfg.Exchange, true)
		if err != nil {
			return hashes, fmt.Errorf("readiness: setApprovalForAll: %w", err)
		}
		hashes = append(hashes, tx.Hex())
		g.logger.Info("approval confirmed",
			slog.String("event", "auto_remediation"),
			slog.String("kind", "ctf_set_approval_for_all"),
			slog.String("tx", tx.Hex()),
		)
	}

	return hashes, nil
}

func missingReason(s authState, min *big.Int) domain.ReadinessReason {
	if !s.allowanceOK(min) {
		return domain.ReasonAllowanceMissing
	}
	return domain.ReasonApprovalMissing
}

// WalletStatus is a read-only view of the wallet's trading readiness.
type WalletStatus struct {
	Wallet           common.Address
	Kind             domain.WalletKind
	Balance          *big.Int
	Allowance        *big.Int
	OperatorApproved bool
}

// Authorized reports whether allowance and operator approval are both in
// place.
func (s WalletStatus) Authorized(minAllowance *big.Int) bool {
	return s.OperatorApproved && s.Allowance != nil && s.Allowance.Cmp(minAllowance) >= 0
}

// Status reads balance, wallet kind, allowance and approval without sending
// any transaction.
func (g *Gate) Status(ctx context.Context) (WalletStatus, error) {
	st := WalletStatus{Wallet: g.cfg.Wallet}

	balance, err := g.chain.BalanceOf(ctx, g.cfg.Wallet)
	if err != nil {
		return st, fmt.Errorf("readiness: balance: %w", err)
	}
	st.Balance = balance

	kind, err := g.WalletKind(ctx)
	if err != nil {
		return st, err
	}
	st.Kind = kind

	auth, err := g.readAuth(ctx)
	if err != nil {
		return st, err
	}
	st.Allowance = auth.allowance
	st.OperatorApproved = auth.approved
	return st, nil
}

// MinAllowance returns the allowance threshold in USDC base units.
func (g *Gate) MinAllowance() *big.Int { return new(big.Int).Set(g.cfg.MinAllowance) }
