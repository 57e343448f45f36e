package domain

import "github.com/shopspring/decimal"

// SizingMode selects how much quote currency is committed per opportunity.
type SizingMode string

const (
	SizingFixed      SizingMode = "fixed"      // constant USDC amount
	SizingPercentage SizingMode = "percentage" // fraction of balance
	SizingDynamic    SizingMode = "dynamic"    // edge-scaled, capped at 25% of balance
	SizingFree       SizingMode = "free"       // whole balance, optionally capped
)

// Valid reports whether m is one of the known sizing modes.
func (m SizingMode) Valid() bool {
	switch m {
	case SizingFixed, SizingPercentage, SizingDynamic, SizingFree:
		return true
	}
	return false
}

// SizingPolicy is chosen once from configuration and never changes for the
// life of the process. Only the fields relevant to Mode are read.
type SizingPolicy struct {
	Mode        SizingMode
	FixedAmount decimal.Decimal // Fixed: USDC per opportunity
	Fraction    decimal.Decimal // Percentage: 0.10 == 10%
	FreeCap     decimal.Decimal // Free: zero means uncapped
}
