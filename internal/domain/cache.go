package domain

import (
	"context"
	"time"
)

// QuoteCache mirrors the most recent snapshot quotes for external tooling.
type QuoteCache interface {
	SetQuotes(ctx context.Context, snap MarketSnapshot, ttl time.Duration) error
	GetQuote(ctx context.Context, tokenID string) (OutcomeQuote, time.Time, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
