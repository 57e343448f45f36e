package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// QuoteCache implements domain.QuoteCache. Each token's last quote is a hash
// at "quote:{tokenID}" with fields bid, ask (empty when no liquidity) and ts
// (unix nanoseconds).
type QuoteCache struct {
	c *Client
}

// NewQuoteCache creates a QuoteCache.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{c: c}
}

func (qc *QuoteCache) quoteKey(tokenID string) string {
	return qc.c.key("quote:" + tokenID)
}

// SetQuotes writes all four quotes of snap in one transaction and sets
// their expiry to ttl.
func (qc *QuoteCache) SetQuotes(ctx context.Context, snap domain.MarketSnapshot, ttl time.Duration) error {
	ts := strconv.FormatInt(snap.ObservedAt.UnixNano(), 10)
	quotes := []domain.OutcomeQuote{snap.A.Up, snap.A.Down, snap.B.Up, snap.B.Down}

	_, err := qc.c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, q := range quotes {
			if q.TokenID == "" {
				continue
			}
			key := qc.quoteKey(q.TokenID)
			pipe.HSet(ctx, key, map[string]any{
				"bid": nullString(q.BestBid),
				"ask": nullString(q.BestAsk),
				"ts":  ts,
			})
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set quotes: %w", err)
	}
	return nil
}

// GetQuote returns the mirrored quote of tokenID and when it was observed.
// It returns domain.ErrNotFound when nothing is cached.
func (qc *QuoteCache) GetQuote(ctx context.Context, tokenID string) (domain.OutcomeQuote, time.Time, error) {
	vals, err := qc.c.rdb.HGetAll(ctx, qc.quoteKey(tokenID)).Result()
	if err != nil {
		return domain.OutcomeQuote{}, time.Time{}, fmt.Errorf("redis: get quote %s: %w", tokenID, err)
	}
	if len(vals) == 0 {
		return domain.OutcomeQuote{}, time.Time{}, domain.ErrNotFound
	}

	q := domain.OutcomeQuote{TokenID: tokenID}
	if q.BestBid, err = parseNull(vals["bid"]); err != nil {
		return domain.OutcomeQuote{}, time.Time{}, fmt.Errorf("redis: parse bid %s: %w", tokenID, err)
	}
	if q.BestAsk, err = parseNull(vals["ask"]); err != nil {
		return domain.OutcomeQuote{}, time.Time{}, fmt.Errorf("redis: parse ask %s: %w", tokenID, err)
	}
	nanos, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.OutcomeQuote{}, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", tokenID, err)
	}
	return q, time.Unix(0, nanos), nil
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func parseNull(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
