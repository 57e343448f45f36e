package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome names one resolution side of a binary up/down market.
type Outcome string

const (
	OutcomeUp   Outcome = "up"
	OutcomeDown Outcome = "down"
)

// OutcomeQuote is the best bid and ask observed for one outcome token. An
// invalid NullDecimal means no liquidity on that side.
type OutcomeQuote struct {
	TokenID string
	BestBid decimal.NullDecimal
	BestAsk decimal.NullDecimal
}

// HasAsk reports whether an ask price was observed.
func (q OutcomeQuote) HasAsk() bool { return q.BestAsk.Valid }

// MarketQuotes groups the up and down quotes of one market.
type MarketQuotes struct {
	MarketID string // e.g. "ETH"
	Slug     string
	Up       OutcomeQuote
	Down     OutcomeQuote
}

// Quote returns the quote for the given outcome.
func (m MarketQuotes) Quote(o Outcome) OutcomeQuote {
	if o == OutcomeDown {
		return m.Down
	}
	return m.Up
}

// MarketSnapshot is the four outcome quotes of a market pair captured at a
// single instant.
type MarketSnapshot struct {
	A          MarketQuotes
	B          MarketQuotes
	ObservedAt time.Time
}
