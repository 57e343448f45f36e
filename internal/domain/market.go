package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market represents one Polymarket up/down prediction market.
type Market struct {
	ID          string
	Question    string
	Slug        string
	Asset       string    // "ETH", "BTC"
	Outcomes    [2]string // ["Up","Down"]
	TokenIDs    [2]string // ERC-1155 token IDs (76-digit strings), Up first
	ConditionID string
	Status      MarketStatus
	EndsAt      *time.Time
}

// UpTokenID returns the token of the first ("Up") outcome.
func (m Market) UpTokenID() string { return m.TokenIDs[0] }

// DownTokenID returns the token of the second ("Down") outcome.
func (m Market) DownTokenID() string { return m.TokenIDs[1] }

// Window is one fixed-length trading window shared by all paired markets.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// MarketPair is the two correlated markets traded against each other during
// one window.
type MarketPair struct {
	Window Window
	A      Market
	B      Market
}

// TokenIDs returns all four outcome tokens of the pair, A's first.
func (p MarketPair) TokenIDs() []string {
	return []string{p.A.TokenIDs[0], p.A.TokenIDs[1], p.B.TokenIDs[0], p.B.TokenIDs[1]}
}
