// Package sizing converts a wallet balance and an opportunity's edge into a
// number of outcome shares to buy on each leg.
package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

var (
	dynamicBase = decimal.RequireFromString("0.01")
	dynamicCap  = decimal.RequireFromString("0.25")
	one         = decimal.NewFromInt(1)
)

// Sizing is the result of one sizing decision.
type Sizing struct {
	Spend     decimal.Decimal // USDC budget chosen by the policy
	Units     decimal.Decimal // whole shares per leg
	Committed decimal.Decimal // Units * TotalCost, what both legs actually cost
	Skip      bool
	Reason    string
}

// Sizer applies a fixed SizingPolicy.
type Sizer struct {
	policy       domain.SizingPolicy
	minOrderSize decimal.Decimal
}

// NewSizer creates a sizer. minOrderSize is the smallest spend worth
// submitting (the exchange rejects orders under $1).
func NewSizer(policy domain.SizingPolicy, minOrderSize decimal.Decimal) (*Sizer, error) {
	if !policy.Mode.Valid() {
		return nil, fmt.Errorf("sizing: unknown mode %q", policy.Mode)
	}
	return &Sizer{policy: policy, minOrderSize: minOrderSize}, nil
}

// Spend returns the USDC budget the policy allows for an opportunity with the
// given expected profit.
func (s *Sizer) Spend(balance, expectedProfit decimal.Decimal) decimal.Decimal {
	switch s.policy.Mode {
	case domain.SizingFixed:
		return s.policy.FixedAmount
	case domain.SizingPercentage:
		return balance.Mul(s.policy.Fraction)
	case domain.SizingDynamic:
		scaled := balance.Mul(dynamicBase).Mul(one.Add(expectedProfit))
		return decimal.Min(scaled, balance.Mul(dynamicCap))
	case domain.SizingFree:
		if s.policy.FreeCap.IsPositive() {
			return decimal.Min(balance, s.policy.FreeCap)
		}
		return balance
	}
	return decimal.Zero
}

// Size computes spend and units for opp. A Skip result is an ordinary
// outcome, not an error.
func (s *Sizer) Size(balance decimal.Decimal, opp domain.ArbitrageOpportunity) Sizing {
	spend := s.Spend(balance, opp.ExpectedProfit)
	out := Sizing{Spend: spend, Units: decimal.Zero, Committed: decimal.Zero}

	if !opp.TotalCost.IsPositive() {
		out.Skip, out.Reason = true, "non-positive total cost"
		return out
	}
	if !spend.IsPositive() {
		out.Skip, out.Reason = true, "non-positive spend"
		return out
	}
	if spend.LessThan(s.minOrderSize) {
		out.Skip, out.Reason = true, fmt.Sprintf("spend %s below minimum order %s", spend.StringFixed(2), s.minOrderSize.StringFixed(2))
		return out
	}

	out.Units = spend.Div(opp.TotalCost).Floor()
	out.Committed = out.Units.Mul(opp.TotalCost)
	if !out.Units.IsPositive() {
		out.Skip, out.Reason = true, "spend buys less than one unit"
	}
	return out
}
