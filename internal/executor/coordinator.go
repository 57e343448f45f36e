// Package executor turns detected opportunities into exchange orders: it
// sizes the trade, checks wallet readiness, then signs and submits both
// legs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/crypto"
	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/cryptogyan1/polyarb/internal/sizing"
)

var two = decimal.NewFromInt(2)

// ReadinessChecker is the pre-trade wallet check.
type ReadinessChecker interface {
	Check(ctx context.Context, required *big.Int) (domain.ReadinessResult, error)
}

// OrderBuilder builds and signs one leg.
type OrderBuilder interface {
	Build(p crypto.LegParams) (domain.SignedOrder, error)
}

// OrderSubmitter sends a signed order to the exchange.
type OrderSubmitter interface {
	PostOrder(ctx context.Context, order domain.SignedOrder) (domain.OrderResult, error)
}

// ExecutionRecorder receives every finished execution (history store,
// archive, notifications). Failures are logged and never change the result.
type ExecutionRecorder interface {
	Record(ctx context.Context, exec domain.ArbExecution) error
}

// execState is the coordinator's position in one execution.
type execState string

const (
	stateIdle    execState = "idle"
	stateSizing  execState = "sizing"
	stateGating  execState = "gating"
	stateAborted execState = "aborted"
	stateLeg1    execState = "leg1"
	stateLeg2    execState = "leg2"
	stateDone    execState = "done"
)

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Balance   *BalanceState
	Sizer     *sizing.Sizer
	Gate      ReadinessChecker
	Builder   OrderBuilder
	Submitter OrderSubmitter
	Recorders []ExecutionRecorder
}

// Coordinator executes one opportunity at a time. The two legs are sent
// sequentially and are not atomic: if only one is accepted the position is
// unhedged and is reported as a partial execution.
//
// An abort is recorded only when its reason differs from the previous
// abort. Repeats are logged and nothing else until the gate passes again.
type Coordinator struct {
	deps     Deps
	readOnly bool
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	lastAbort string
}

// NewCoordinator creates a Coordinator. In read-only mode orders are built
// and signed but never submitted.
func NewCoordinator(deps Deps, readOnly bool, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		deps:     deps,
		readOnly: readOnly,
		logger:   logger.With(slog.String("component", "coordinator")),
		now:      time.Now,
	}
}

// Execute sizes, gates, and submits opp. Skips and gate aborts are ordinary
// outcomes reported in the returned execution with a nil error. A non-nil
// error means a chain read failed before any order was built; the execution
// is then reported as aborted.
func (c *Coordinator) Execute(ctx context.Context, opp domain.ArbitrageOpportunity) (domain.ArbExecution, error) {
	exec := domain.ArbExecution{
		ID:          uuid.New().String(),
		Opportunity: opp,
		ReadOnly:    c.readOnly,
		Status:      domain.ArbExecNone,
		StartedAt:   c.now().UTC(),
	}
	log := c.logger.With(
		slog.String("exec_id", exec.ID),
		slog.String("pair", opp.Label()),
	)
	c.transition(log, stateIdle, stateSizing)

	balance, err := c.deps.Balance.Refresh(ctx)
	if err != nil {
		c.transition(log, stateSizing, stateAborted)
		exec.Outcome = domain.ExecAborted
		exec.SkipReason = "balance unavailable"
		exec.CompletedAt = c.now().UTC()
		log.Warn("balance refresh failed, aborting", slog.Any("error", err))
		c.recordAbort(ctx, log, exec)
		return exec, err
	}
	exec.Balance = balance

	sz := c.deps.Sizer.Size(balance, opp)
	exec.Spend, exec.Units = sz.Spend, sz.Units
	if sz.Skip {
		c.transition(log, stateSizing, stateIdle)
		exec.Outcome = domain.ExecSkipped
		exec.SkipReason = sz.Reason
		exec.CompletedAt = c.now().UTC()
		log.Info("opportunity skipped",
			slog.String("reason", sz.Reason),
			slog.String("balance", balance.String()),
			slog.String("spend", sz.Spend.String()),
		)
		c.record(ctx, log, exec)
		return exec, nil
	}

	c.transition(log, stateSizing, stateGating)
	required := sz.Spend.Mul(two)
	ready, err := c.deps.Gate.Check(ctx, ToBaseUnits(required))
	if err != nil {
		c.transition(log, stateGating, stateAborted)
		exec.Outcome = domain.ExecAborted
		exec.SkipReason = "readiness check failed"
		exec.CompletedAt = c.now().UTC()
		log.Warn("readiness check failed, aborting", slog.Any("error", err))
		c.recordAbort(ctx, log, exec)
		return exec, err
	}
	exec.Readiness = &ready
	if !ready.Ready {
		c.transition(log, stateGating, stateAborted)
		exec.Outcome = domain.ExecAborted
		exec.SkipReason = string(ready.Reason)
		exec.CompletedAt = c.now().UTC()
		log.Warn("wallet not ready, aborting",
			slog.String("reason", string(ready.Reason)),
			slog.String("remediation", string(ready.Remediation)),
			slog.String("required", required.String()),
			slog.String("available", FromBaseUnits(ready.Available).String()),
			slog.Any("error", ready.Cause),
		)
		c.recordAbort(ctx, log, exec)
		return exec, nil
	}
	c.setLastAbort("")

	c.transition(log, stateGating, stateLeg1)
	legA := c.runLeg(ctx, log, opp.MarketA, opp.TokenA, opp.OutcomeA, opp.PriceA, sz.Units)

	// The second leg is attempted whatever happened to the first.
	c.transition(log, stateLeg1, stateLeg2)
	legB := c.runLeg(ctx, log, opp.MarketB, opp.TokenB, opp.OutcomeB, opp.PriceB, sz.Units)

	c.transition(log, stateLeg2, stateDone)
	exec.Legs = []domain.ArbLeg{legA, legB}
	exec.Outcome = domain.ExecAttempted
	exec.Status = domain.FillStatus(exec.Legs)
	exec.CompletedAt = c.now().UTC()

	attrs := []any{
		slog.String("status", string(exec.Status)),
		slog.String("units", sz.Units.String()),
		slog.String("committed", sz.Committed.String()),
		slog.String("expected_profit", opp.ExpectedProfit.Mul(sz.Units).String()),
		slog.String("leg_a", string(legA.Status)),
		slog.String("leg_b", string(legB.Status)),
		slog.Bool("read_only", c.readOnly),
	}
	switch exec.Status {
	case domain.ArbExecPartial:
		log.Error("unhedged: only one leg accepted", attrs...)
	case domain.ArbExecNone:
		log.Warn("arb execution failed on both legs", attrs...)
	default:
		log.Info("arb executed", attrs...)
	}

	c.record(ctx, log, exec)
	return exec, nil
}

// runLeg builds, signs and submits (or simulates) one BUY leg.
func (c *Coordinator) runLeg(ctx context.Context, log *slog.Logger, market, tokenID string, outcome domain.Outcome, price, units decimal.Decimal) domain.ArbLeg {
	leg := domain.ArbLeg{
		MarketID: market,
		TokenID:  tokenID,
		Outcome:  outcome,
		Side:     domain.OrderSideBuy,
		Price:    price,
		Size:     units,
	}
	log = log.With(
		slog.String("market", market),
		slog.String("outcome", string(outcome)),
		slog.String("price", price.String()),
		slog.String("size", units.String()),
	)

	order, err := c.deps.Builder.Build(crypto.LegParams{
		TokenID: tokenID,
		Side:    domain.OrderSideBuy,
		Price:   price,
		Size:    units,
	})
	if err != nil {
		leg.Status = domain.LegSigningFailed
		leg.Error = err.Error()
		log.Error("leg signing failed", slog.Any("error", err))
		return leg
	}

	if c.readOnly {
		leg.Status = domain.LegSimulated
		log.Info("read-only: order not submitted",
			slog.String("maker_amount", order.MakerAmount.String()),
			slog.String("taker_amount", order.TakerAmount.String()),
		)
		return leg
	}

	res, err := c.deps.Submitter.PostOrder(ctx, order)
	leg.OrderID = res.OrderID
	if err != nil {
		leg.Status = domain.LegRejected
		if errors.Is(err, domain.ErrNetwork) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			leg.Status = domain.LegNetworkError
		}
		leg.Error = err.Error()
		log.Error("leg submission failed",
			slog.String("leg_status", string(leg.Status)),
			slog.Any("error", err),
		)
		return leg
	}

	leg.Status = domain.LegAccepted
	log.Info("leg accepted",
		slog.String("order_id", res.OrderID),
		slog.String("exchange_status", res.Status),
	)
	return leg
}

// record fans exec out to every recorder. A recorder gets its own short
// deadline so a cancelled window context does not lose history.
func (c *Coordinator) record(ctx context.Context, log *slog.Logger, exec domain.ArbExecution) {
	if len(c.deps.Recorders) == 0 {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for _, r := range c.deps.Recorders {
		if err := r.Record(rctx, exec); err != nil {
			log.Warn("execution record failed",
				slog.String("recorder", fmt.Sprintf("%T", r)),
				slog.Any("error", err),
			)
		}
	}
}

// recordAbort records an aborted execution unless the previous abort had
// the same reason.
func (c *Coordinator) recordAbort(ctx context.Context, log *slog.Logger, exec domain.ArbExecution) {
	key := "aborted: " + exec.SkipReason
	if c.setLastAbort(key) == key {
		log.Debug("repeated abort not recorded", slog.String("reason", exec.SkipReason))
		return
	}
	c.record(ctx, log, exec)
}

// setLastAbort stores key and returns the previous one.
func (c *Coordinator) setLastAbort(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.lastAbort
	c.lastAbort = key
	return prev
}

func (c *Coordinator) transition(log *slog.Logger, from, to execState) {
	log.Debug("state transition", slog.String("from", string(from)), slog.String("to", string(to)))
}
