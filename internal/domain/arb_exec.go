package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecOutcome summarises what the coordinator did with one opportunity.
type ExecOutcome string

const (
	ExecSkipped   ExecOutcome = "skipped"   // size below minimum, nothing sent
	ExecAborted   ExecOutcome = "aborted"   // readiness gate blocked, nothing sent
	ExecAttempted ExecOutcome = "attempted" // both legs were attempted
)

// ArbExecStatus is the fill state across both legs.
type ArbExecStatus string

const (
	ArbExecNone    ArbExecStatus = "none"    // no leg accepted
	ArbExecPartial ArbExecStatus = "partial" // exactly one leg accepted: unhedged
	ArbExecFilled  ArbExecStatus = "filled"  // both legs accepted
)

// ArbExecution records one opportunity and what happened to it.
type ArbExecution struct {
	ID          string
	Opportunity ArbitrageOpportunity
	Outcome     ExecOutcome
	Status      ArbExecStatus
	SkipReason  string
	ReadOnly    bool

	Balance decimal.Decimal // USDC observed at the start of the attempt
	Spend   decimal.Decimal
	Units   decimal.Decimal

	Readiness *ReadinessResult
	Legs      []ArbLeg

	StartedAt   time.Time
	CompletedAt time.Time
}

// ArbLeg is one leg of an arb execution.
type ArbLeg struct {
	MarketID string
	TokenID  string
	Outcome  Outcome
	Side     OrderSide
	Price    decimal.Decimal
	Size     decimal.Decimal
	OrderID  string
	Status   LegStatus
	Error    string
}

// Accepted reports whether the exchange took the leg (or it was simulated).
func (l ArbLeg) Accepted() bool {
	return l.Status == LegAccepted || l.Status == LegSimulated
}

// FillStatus derives the execution status from the leg outcomes.
func FillStatus(legs []ArbLeg) ArbExecStatus {
	n := 0
	for _, l := range legs {
		if l.Accepted() {
			n++
		}
	}
	switch {
	case n == 0:
		return ArbExecNone
	case n == len(legs):
		return ArbExecFilled
	default:
		return ArbExecPartial
	}
}
