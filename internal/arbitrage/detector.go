// Package arbitrage finds complementary up/down pairs across two correlated
// markets whose combined ask leaves a guaranteed payout above cost.
package arbitrage

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

var one = decimal.NewFromInt(1)

// DetectorConfig holds the profitability and sanity thresholds. All values
// are in price units (0..1).
type DetectorConfig struct {
	MinProfitThreshold decimal.Decimal // minimum 1 - (a+b)
	MaxSumThreshold    decimal.Decimal // a+b must stay strictly below this
	MinReasonablePrice decimal.Decimal // both legs below this => stale/zero quotes
	MaxReasonablePrice decimal.Decimal // both legs above this => no arb possible
	MinTotalCost       decimal.Decimal // a+b below this => corrupted feed
}

// DefaultDetectorConfig returns the thresholds used when nothing is configured.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinProfitThreshold: decimal.RequireFromString("0.005"),
		MaxSumThreshold:    decimal.RequireFromString("0.99"),
		MinReasonablePrice: decimal.RequireFromString("0.15"),
		MaxReasonablePrice: decimal.RequireFromString("0.95"),
		MinTotalCost:       decimal.RequireFromString("0.50"),
	}
}

// Detector evaluates market snapshots. It holds no mutable state: the same
// snapshot always yields the same opportunities.
type Detector struct {
	cfg    DetectorConfig
	logger *slog.Logger
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg DetectorConfig, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "arb_detector")),
	}
}

// pairing is one complementary combination: an outcome of market A bought
// together with the opposite outcome of market B.
type pairing struct {
	a domain.Outcome
	b domain.Outcome
}

var pairings = [2]pairing{
	{a: domain.OutcomeUp, b: domain.OutcomeDown},
	{a: domain.OutcomeDown, b: domain.OutcomeUp},
}

// Detect evaluates both complementary pairings of snap independently and
// returns zero, one or two opportunities.
func (d *Detector) Detect(snap domain.MarketSnapshot) []domain.ArbitrageOpportunity {
	var out []domain.ArbitrageOpportunity
	for _, p := range pairings {
		if opp, ok := d.evaluate(snap, p); ok {
			out = append(out, opp)
		}
	}
	return out
}

func (d *Detector) evaluate(snap domain.MarketSnapshot, p pairing) (domain.ArbitrageOpportunity, bool) {
	qa := snap.A.Quote(p.a)
	qb := snap.B.Quote(p.b)
	if !qa.HasAsk() || !qb.HasAsk() {
		return domain.ArbitrageOpportunity{}, false
	}

	priceA := qa.BestAsk.Decimal
	priceB := qb.BestAsk.Decimal
	total := priceA.Add(priceB)
	profit := one.Sub(total)

	if reason := d.reject(priceA, priceB, total, profit); reason != "" {
		d.logger.Debug("pairing rejected",
			slog.String("pairing", snap.A.MarketID+"-"+string(p.a)+"+"+snap.B.MarketID+"-"+string(p.b)),
			slog.String("filter", reason),
			slog.String("price_a", priceA.String()),
			slog.String("price_b", priceB.String()),
			slog.String("total", total.String()),
		)
		return domain.ArbitrageOpportunity{}, false
	}

	return domain.ArbitrageOpportunity{
		MarketA:        snap.A.MarketID,
		MarketB:        snap.B.MarketID,
		TokenA:         qa.TokenID,
		TokenB:         qb.TokenID,
		OutcomeA:       p.a,
		OutcomeB:       p.b,
		PriceA:         priceA,
		PriceB:         priceB,
		TotalCost:      total,
		ExpectedProfit: profit,
		DetectedAt:     snap.ObservedAt,
	}, true
}

// reject applies the safety filters in order and returns the name of the
// first one that fails, or "" when the pairing passes.
func (d *Detector) reject(a, b, total, profit decimal.Decimal) string {
	switch {
	case a.LessThan(d.cfg.MinReasonablePrice) && b.LessThan(d.cfg.MinReasonablePrice):
		return "below_min_reasonable_price"
	case a.GreaterThan(d.cfg.MaxReasonablePrice) && b.GreaterThan(d.cfg.MaxReasonablePrice):
		return "above_max_reasonable_price"
	case total.LessThan(d.cfg.MinTotalCost):
		return "below_min_total_cost"
	case total.GreaterThanOrEqual(d.cfg.MaxSumThreshold):
		return "above_max_sum"
	case profit.LessThan(d.cfg.MinProfitThreshold):
		return "below_min_profit"
	}
	return ""
}
