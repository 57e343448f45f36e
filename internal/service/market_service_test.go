package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

type fakeFinder struct {
	markets map[string]domain.Market
	calls   []string
}

func (f *fakeFinder) GetMarketBySlug(ctx context.Context, slug, asset string) (domain.Market, error) {
	f.calls = append(f.calls, slug)
	m, ok := f.markets[slug]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestWindowAt(t *testing.T) {
	w := WindowAt(time.Unix(1_700_000_050, 0), DefaultWindow)
	if w.Start.Unix() != 1_699_999_200 {
		t.Fatalf("start = %d, want 1699999200", w.Start.Unix())
	}
	if w.End.Sub(w.Start) != 15*time.Minute {
		t.Fatalf("length = %s", w.End.Sub(w.Start))
	}
	if !w.Contains(time.Unix(1_700_000_050, 0)) || w.Contains(w.End) {
		t.Fatal("window bounds wrong")
	}

	// A time exactly on the boundary starts a new window.
	w2 := WindowAt(time.Unix(1_700_000_100, 0), DefaultWindow)
	if w2.Start.Unix() != 1_700_000_100 {
		t.Fatalf("boundary start = %d", w2.Start.Unix())
	}
}

func TestSlug(t *testing.T) {
	got := Slug("ETH", DefaultWindow, time.Unix(1_700_000_100, 0))
	if got != "eth-updown-15m-1700000100" {
		t.Fatalf("slug = %q", got)
	}
}

func TestDiscoverPair_CurrentWindow(t *testing.T) {
	f := &fakeFinder{markets: map[string]domain.Market{
		"eth-updown-15m-1700000100": {Slug: "eth-updown-15m-1700000100", ConditionID: "c1", Status: domain.MarketStatusActive, TokenIDs: [2]string{"1", "2"}},
		"btc-updown-15m-1700000100": {Slug: "btc-updown-15m-1700000100", ConditionID: "c2", Status: domain.MarketStatusActive, TokenIDs: [2]string{"3", "4"}},
	}}
	s := NewMarketService(f, [2]string{"ETH", "BTC"}, DefaultWindow, DefaultLookback, testLogger())
	s.now = func() time.Time { return time.Unix(1_700_000_500, 0) }

	pair, err := s.DiscoverPair(context.Background())
	if err != nil {
		t.Fatalf("DiscoverPair: %v", err)
	}
	if pair.A.Asset != "ETH" || pair.B.Asset != "BTC" {
		t.Fatalf("assets = %s, %s", pair.A.Asset, pair.B.Asset)
	}
	if pair.Window.Start.Unix() != 1_700_000_100 {
		t.Fatalf("window start = %d", pair.Window.Start.Unix())
	}
	if got := pair.TokenIDs(); len(got) != 4 || got[0] != "1" || got[3] != "4" {
		t.Fatalf("token ids = %v", got)
	}
}

func TestDiscoverPair_FallsBackToPreviousWindows(t *testing.T) {
	f := &fakeFinder{markets: map[string]domain.Market{
		// Current ETH window is closed, the one before is still active.
		"eth-updown-15m-1700000100": {ConditionID: "c0", Status: domain.MarketStatusClosed},
		"eth-updown-15m-1699999200": {ConditionID: "c1", Status: domain.MarketStatusActive},
		// BTC only listed three windows back.
		"btc-updown-15m-1699997400": {ConditionID: "c2", Status: domain.MarketStatusActive},
	}}
	s := NewMarketService(f, [2]string{"ETH", "BTC"}, DefaultWindow, DefaultLookback, testLogger())
	s.now = func() time.Time { return time.Unix(1_700_000_500, 0) }

	pair, err := s.DiscoverPair(context.Background())
	if err != nil {
		t.Fatalf("DiscoverPair: %v", err)
	}
	if pair.A.ConditionID != "c1" || pair.B.ConditionID != "c2" {
		t.Fatalf("picked %s / %s", pair.A.ConditionID, pair.B.ConditionID)
	}
}

func TestDiscoverPair_RejectsSameCondition(t *testing.T) {
	same := domain.Market{ConditionID: "c1", Status: domain.MarketStatusActive}
	f := &fakeFinder{markets: map[string]domain.Market{
		"eth-updown-15m-1700000100": same,
		"btc-updown-15m-1700000100": same,
	}}
	s := NewMarketService(f, [2]string{"ETH", "BTC"}, DefaultWindow, DefaultLookback, testLogger())
	s.now = func() time.Time { return time.Unix(1_700_000_500, 0) }

	_, err := s.DiscoverPair(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDiscoverPair_GivesUpAfterLookback(t *testing.T) {
	f := &fakeFinder{markets: map[string]domain.Market{}}
	s := NewMarketService(f, [2]string{"ETH", "BTC"}, DefaultWindow, DefaultLookback, testLogger())
	s.now = func() time.Time { return time.Unix(1_700_000_500, 0) }

	if _, err := s.DiscoverPair(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	// Current window plus three previous ones for the first asset only.
	if len(f.calls) != DefaultLookback+1 {
		t.Fatalf("lookups = %d, want %d", len(f.calls), DefaultLookback+1)
	}
}
