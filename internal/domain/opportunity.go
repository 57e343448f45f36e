package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageOpportunity is a complementary pair of outcomes, one per market,
// whose combined ask is below break-even. Leg A belongs to the snapshot's
// first market and leg B to the second.
type ArbitrageOpportunity struct {
	MarketA  string
	MarketB  string
	TokenA   string
	TokenB   string
	OutcomeA Outcome
	OutcomeB Outcome

	PriceA         decimal.Decimal
	PriceB         decimal.Decimal
	TotalCost      decimal.Decimal
	ExpectedProfit decimal.Decimal // 1 - TotalCost

	DetectedAt time.Time
}

// Label returns a short human readable description such as
// "ETH-up+BTC-down".
func (o ArbitrageOpportunity) Label() string {
	return o.MarketA + "-" + string(o.OutcomeA) + "+" + o.MarketB + "-" + string(o.OutcomeB)
}
