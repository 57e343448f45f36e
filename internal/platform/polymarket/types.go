package polymarket

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/shopspring/decimal"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrder is the "order" object of a POST /order body. All integer fields
// travel as decimal strings.
type APIOrder struct {
	Salt          uint64 `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"` // "BUY" or "SELL"
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// PostOrderRequest is the full POST /order payload.
type PostOrderRequest struct {
	Order     APIOrder `json:"order"`
	Owner     string   `json:"owner"`
	OrderType string   `json:"orderType"`
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// PriceResponse is the body of GET /price.
type PriceResponse struct {
	Price string `json:"price"`
}

// BookResponse is the body of GET /book.
type BookResponse struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
}

// NewAPIOrder converts a signed order to its wire form.
func NewAPIOrder(o domain.SignedOrder) (APIOrder, error) {
	for _, f := range []struct {
		name string
		v    *big.Int
	}{
		{"salt", o.Salt}, {"tokenId", o.TokenID}, {"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount}, {"expiration", o.Expiration},
		{"nonce", o.Nonce}, {"feeRateBps", o.FeeRateBps},
	} {
		if f.v == nil {
			return APIOrder{}, fmt.Errorf("polymarket: %w: %s not set", domain.ErrInvalidOrder, f.name)
		}
	}
	if o.Signature == "" {
		return APIOrder{}, fmt.Errorf("polymarket: %w: order is unsigned", domain.ErrInvalidOrder)
	}
	if !o.Salt.IsUint64() {
		return APIOrder{}, fmt.Errorf("polymarket: %w: salt exceeds uint64", domain.ErrInvalidOrder)
	}

	return APIOrder{
		Salt:          o.Salt.Uint64(),
		Maker:         o.Maker,
		Signer:        o.Signer,
		Taker:         o.Taker,
		TokenID:       o.TokenID.String(),
		MakerAmount:   o.MakerAmount.String(),
		TakerAmount:   o.TakerAmount.String(),
		Side:          o.Side.Wire(),
		Expiration:    o.Expiration.String(),
		Nonce:         o.Nonce.String(),
		FeeRateBps:    o.FeeRateBps.String(),
		SignatureType: o.SignatureType,
		Signature:     o.Signature,
	}, nil
}

// ToDomainOrderResult converts an APIOrderResult to a domain.OrderResult.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	return domain.OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Status:  r.Status,
		Message: r.ErrorMsg,
	}
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	Active  flexBool    `json:"active"`
	Closed  bool        `json:"closed"`
	Markets []APIMarket `json:"markets"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
// The 15-minute up/down markets frequently omit "tokens"; clobTokenIds is
// the authoritative source of outcome token ids.
type APIMarket struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	ConditionID  string   `json:"conditionId"`
	Slug         string   `json:"slug"`
	Active       flexBool `json:"active"`
	Closed       bool     `json:"closed"`
	Outcomes     string   `json:"outcomes"`     // JSON-encoded: e.g. "[\"Up\",\"Down\"]"
	ClobTokenIDs string   `json:"clobTokenIds"` // JSON-encoded: e.g. "[\"123\",\"456\"]"
	EndDateISO   string   `json:"endDateIso"`
	EndDate      string   `json:"endDate"`
	Tokens       []Token  `json:"tokens"`
}

// Token represents a token entry inside the Gamma API market response.
type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. The first
// clobTokenId is the Up outcome, the second Down.
func (m *APIMarket) ToDomainMarket(asset string) (domain.Market, error) {
	dm := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		Asset:       asset,
		ConditionID: m.ConditionID,
		Outcomes:    [2]string{"Up", "Down"},
	}

	switch {
	case m.Closed:
		dm.Status = domain.MarketStatusClosed
	case bool(m.Active):
		dm.Status = domain.MarketStatusActive
	default:
		dm.Status = domain.MarketStatusSettled
	}

	var ids []string
	if m.ClobTokenIDs != "" {
		if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
			return domain.Market{}, fmt.Errorf("polymarket: parse clobTokenIds of %s: %w", m.Slug, err)
		}
	} else {
		for _, t := range m.Tokens {
			ids = append(ids, t.TokenID)
		}
	}
	if len(ids) < 2 {
		return domain.Market{}, fmt.Errorf("polymarket: market %s has %d tokens, need 2", m.Slug, len(ids))
	}
	dm.TokenIDs = [2]string{ids[0], ids[1]}

	var outcomes []string
	if m.Outcomes != "" && json.Unmarshal([]byte(m.Outcomes), &outcomes) == nil && len(outcomes) >= 2 {
		dm.Outcomes = [2]string{outcomes[0], outcomes[1]}
	}

	for _, s := range []string{m.EndDateISO, m.EndDate} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			dm.EndsAt = &t
			break
		}
	}

	return dm, nil
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSPriceLevel is a single bid/ask level in book data.
type WSPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookMessage is a full orderbook snapshot delivered over WebSocket.
type BookMessage struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
}

// PriceChangeMessage carries one or more incremental level updates.
type PriceChangeMessage struct {
	EventType    string            `json:"event_type"`
	Market       string            `json:"market"`
	PriceChanges []PriceChangeItem `json:"price_changes"`
	Timestamp    string            `json:"timestamp"`
}

// PriceChangeItem is a single level update. Size "0" removes the level.
type PriceChangeItem struct {
	AssetID string `json:"asset_id"`
	Side    string `json:"side"` // "BUY" or "SELL"
	Price   string `json:"price"`
	Size    string `json:"size"`
}

// WSCommand is the JSON payload sent to the market channel to subscribe.
type WSCommand struct {
	Type   string   `json:"type"` // "market"
	Assets []string `json:"assets_ids"`
}

// PriceLevel is a parsed book level.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookUpdate is a full replacement of one token's book.
type BookUpdate struct {
	AssetID string
	Bids    []PriceLevel
	Asks    []PriceLevel
}

// LevelChange sets the size at one price level of one side of a book.
type LevelChange struct {
	AssetID string
	Side    domain.OrderSide // buy = bids, sell = asks
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// ToBookUpdate parses a BookMessage, dropping malformed levels.
func (b *BookMessage) ToBookUpdate() BookUpdate {
	return BookUpdate{
		AssetID: b.AssetID,
		Bids:    parseLevels(b.Bids),
		Asks:    parseLevels(b.Asks),
	}
}

// ToLevelChanges parses a PriceChangeMessage, dropping malformed entries.
func (p *PriceChangeMessage) ToLevelChanges() []LevelChange {
	out := make([]LevelChange, 0, len(p.PriceChanges))
	for _, c := range p.PriceChanges {
		price, err := decimal.NewFromString(c.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(c.Size)
		if err != nil {
			continue
		}
		side := domain.OrderSideBuy
		if strings.EqualFold(c.Side, "SELL") {
			side = domain.OrderSideSell
		}
		out = append(out, LevelChange{AssetID: c.AssetID, Side: side, Price: price, Size: size})
	}
	return out
}

// BestBidAsk returns the highest bid and lowest ask of a set of levels with
// positive size. Levels are not assumed to be sorted.
func BestBidAsk(bids, asks []PriceLevel) (bid, ask decimal.NullDecimal) {
	for _, l := range bids {
		if !l.Size.IsPositive() {
			continue
		}
		if !bid.Valid || l.Price.GreaterThan(bid.Decimal) {
			bid = decimal.NewNullDecimal(l.Price)
		}
	}
	for _, l := range asks {
		if !l.Size.IsPositive() {
			continue
		}
		if !ask.Valid || l.Price.LessThan(ask.Decimal) {
			ask = decimal.NewNullDecimal(l.Price)
		}
	}
	return bid, ask
}

func parseLevels(in []WSPriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(in))
	for _, l := range in {
		p, err := decimal.NewFromString(l.Price)
		if err != nil {
			continue
		}
		s, err := decimal.NewFromString(l.Size)
		if err != nil {
			continue
		}
		out = append(out, PriceLevel{Price: p, Size: s})
	}
	return out
}
