package polymarket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

func TestGetMarketBySlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/markets" && r.URL.Query().Get("slug") == "eth-updown-15m-1700000100":
			w.Write([]byte(`[{"id":"m1","question":"ETH up or down?","conditionId":"0xc1","slug":"eth-updown-15m-1700000100","active":"true","closed":false,"outcomes":"[\"Up\",\"Down\"]","clobTokenIds":"[\"111\",\"222\"]","endDate":"2023-11-14T22:30:00Z"}]`))
		case r.URL.Path == "/markets":
			w.Write([]byte(`[]`))
		case r.URL.Path == "/events/slug/btc-updown-15m-1700000100":
			w.Write([]byte(`{"id":"e1","slug":"btc-updown-15m-1700000100","markets":[{"id":"m2","conditionId":"0xc2","active":true,"clobTokenIds":"[\"333\",\"444\"]"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewGammaClient(srv.URL)

	m, err := g.GetMarketBySlug(context.Background(), "eth-updown-15m-1700000100", "ETH")
	if err != nil {
		t.Fatalf("GetMarketBySlug eth: %v", err)
	}
	if m.UpTokenID() != "111" || m.DownTokenID() != "222" {
		t.Fatalf("tokens = %v", m.TokenIDs)
	}
	if m.Asset != "ETH" || m.Status != domain.MarketStatusActive || m.EndsAt == nil {
		t.Fatalf("unexpected market %+v", m)
	}

	m, err = g.GetMarketBySlug(context.Background(), "btc-updown-15m-1700000100", "BTC")
	if err != nil {
		t.Fatalf("GetMarketBySlug btc (event fallback): %v", err)
	}
	if m.UpTokenID() != "333" || m.Slug != "btc-updown-15m-1700000100" {
		t.Fatalf("unexpected market %+v", m)
	}

	_, err = g.GetMarketBySlug(context.Background(), "sol-updown-15m-1700000100", "SOL")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestToDomainMarket_TooFewTokens(t *testing.T) {
	m := APIMarket{Slug: "x", ClobTokenIDs: `["1"]`}
	if _, err := m.ToDomainMarket("ETH"); err == nil {
		t.Fatal("expected error for single token")
	}
}
