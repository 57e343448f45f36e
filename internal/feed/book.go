// Package feed keeps outcome-token quotes current, either by polling the
// CLOB price endpoint or by mirroring the market WebSocket channel into an
// in-memory book view.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/cryptogyan1/polyarb/internal/platform/polymarket"
)

// QuoteSource returns the current best bid/ask of one outcome token.
type QuoteSource interface {
	Quote(ctx context.Context, tokenID string) (domain.OutcomeQuote, error)
}

type tokenBook struct {
	bids      map[string]polymarket.PriceLevel
	asks      map[string]polymarket.PriceLevel
	updatedAt time.Time
}

// BookView is an in-memory copy of the books of a set of tokens, built from
// WebSocket snapshots and level changes. It is safe for concurrent use.
type BookView struct {
	mu    sync.RWMutex
	books map[string]*tokenBook
	now   func() time.Time
}

// NewBookView creates an empty view.
func NewBookView() *BookView {
	return &BookView{books: make(map[string]*tokenBook), now: time.Now}
}

// ApplyBook replaces the book of one token.
func (v *BookView) ApplyBook(u polymarket.BookUpdate) {
	b := &tokenBook{
		bids:      make(map[string]polymarket.PriceLevel, len(u.Bids)),
		asks:      make(map[string]polymarket.PriceLevel, len(u.Asks)),
		updatedAt: v.now(),
	}
	for _, l := range u.Bids {
		if l.Size.IsPositive() {
			b.bids[l.Price.String()] = l
		}
	}
	for _, l := range u.Asks {
		if l.Size.IsPositive() {
			b.asks[l.Price.String()] = l
		}
	}

	v.mu.Lock()
	v.books[u.AssetID] = b
	v.mu.Unlock()
}

// ApplyChange sets or removes one level. Changes for tokens without a prior
// snapshot start a new book.
func (v *BookView) ApplyChange(c polymarket.LevelChange) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, ok := v.books[c.AssetID]
	if !ok {
		b = &tokenBook{
			bids: make(map[string]polymarket.PriceLevel),
			asks: make(map[string]polymarket.PriceLevel),
		}
		v.books[c.AssetID] = b
	}
	side := b.bids
	if c.Side == domain.OrderSideSell {
		side = b.asks
	}
	key := c.Price.String()
	if c.Size.IsPositive() {
		side[key] = polymarket.PriceLevel{Price: c.Price, Size: c.Size}
	} else {
		delete(side, key)
	}
	b.updatedAt = v.now()
}

// Reset drops every book, used when the subscribed token set changes.
func (v *BookView) Reset() {
	v.mu.Lock()
	v.books = make(map[string]*tokenBook)
	v.mu.Unlock()
}

// Quote implements QuoteSource. A token never seen yields an empty quote
// (no liquidity), not an error.
func (v *BookView) Quote(_ context.Context, tokenID string) (domain.OutcomeQuote, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	q := domain.OutcomeQuote{TokenID: tokenID}
	b, ok := v.books[tokenID]
	if !ok {
		return q, nil
	}
	q.BestBid, q.BestAsk = polymarket.BestBidAsk(levels(b.bids), levels(b.asks))
	return q, nil
}

// UpdatedAt returns when the token's book last changed.
func (v *BookView) UpdatedAt(tokenID string) (time.Time, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	b, ok := v.books[tokenID]
	if !ok {
		return time.Time{}, false
	}
	return b.updatedAt, true
}

func levels(m map[string]polymarket.PriceLevel) []polymarket.PriceLevel {
	out := make([]polymarket.PriceLevel, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	return out
}

// RESTSource polls the CLOB /price endpoint for every quote.
type RESTSource struct {
	clob *polymarket.ClobClient
}

// NewRESTSource creates a polling quote source.
func NewRESTSource(clob *polymarket.ClobClient) *RESTSource {
	return &RESTSource{clob: clob}
}

// Quote implements QuoteSource.
func (s *RESTSource) Quote(ctx context.Context, tokenID string) (domain.OutcomeQuote, error) {
	return s.clob.GetQuote(ctx, tokenID)
}
