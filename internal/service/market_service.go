package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

const (
	// DefaultWindow is the length of one up/down market window.
	DefaultWindow = 15 * time.Minute
	// DefaultLookback is how many previous windows are searched when the
	// current window's market is not listed yet.
	DefaultLookback = 3
)

// MarketFinder looks up a market by slug.
type MarketFinder interface {
	GetMarketBySlug(ctx context.Context, slug, asset string) (domain.Market, error)
}

// WindowAt returns the window of the given length containing t, aligned to
// multiples of the length since the Unix epoch.
func WindowAt(t time.Time, length time.Duration) domain.Window {
	secs := int64(length / time.Second)
	start := t.Unix() / secs * secs
	s := time.Unix(start, 0).UTC()
	return domain.Window{Start: s, End: s.Add(length)}
}

// Slug builds the market slug of asset for the window starting at start,
// e.g. "eth-updown-15m-1700000100".
func Slug(asset string, length time.Duration, start time.Time) string {
	return fmt.Sprintf("%s-updown-%dm-%d", strings.ToLower(asset), int(length/time.Minute), start.Unix())
}

// MarketService discovers the pair of up/down markets traded in the current
// window.
type MarketService struct {
	finder   MarketFinder
	assets   [2]string
	window   time.Duration
	lookback int
	logger   *slog.Logger
	now      func() time.Time
}

// NewMarketService creates a MarketService for two assets, e.g. ETH and BTC.
func NewMarketService(finder MarketFinder, assets [2]string, window time.Duration, lookback int, logger *slog.Logger) *MarketService {
	if window <= 0 {
		window = DefaultWindow
	}
	if lookback < 0 {
		lookback = DefaultLookback
	}
	return &MarketService{
		finder:   finder,
		assets:   assets,
		window:   window,
		lookback: lookback,
		logger:   logger.With(slog.String("component", "market_service")),
		now:      time.Now,
	}
}

// CurrentWindow returns the window containing the current time.
func (s *MarketService) CurrentWindow() domain.Window {
	return WindowAt(s.now(), s.window)
}

// DiscoverPair finds one active market per asset for the current window. The
// two markets must have distinct condition ids.
func (s *MarketService) DiscoverPair(ctx context.Context) (domain.MarketPair, error) {
	w := s.CurrentWindow()
	seen := make(map[string]struct{}, 2)

	a, err := s.discover(ctx, s.assets[0], w, seen)
	if err != nil {
		return domain.MarketPair{}, err
	}
	seen[a.ConditionID] = struct{}{}

	b, err := s.discover(ctx, s.assets[1], w, seen)
	if err != nil {
		return domain.MarketPair{}, err
	}

	s.logger.InfoContext(ctx, "market pair discovered",
		slog.String("window_start", w.Start.Format(time.RFC3339)),
		slog.String("market_a", a.Slug),
		slog.String("market_b", b.Slug),
	)
	return domain.MarketPair{Window: w, A: a, B: b}, nil
}

func (s *MarketService) discover(ctx context.Context, asset string, w domain.Window, seen map[string]struct{}) (domain.Market, error) {
	for i := 0; i <= s.lookback; i++ {
		start := w.Start.Add(-time.Duration(i) * s.window)
		slug := Slug(asset, s.window, start)

		m, err := s.finder.GetMarketBySlug(ctx, slug, asset)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Market{}, ctx.Err()
			}
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.WarnContext(ctx, "market lookup failed",
					slog.String("slug", slug),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if m.Status != domain.MarketStatusActive {
			continue
		}
		if _, dup := seen[m.ConditionID]; dup && m.ConditionID != "" {
			continue
		}
		m.Asset = asset
		return m, nil
	}
	return domain.Market{}, fmt.Errorf("market_service: no active %s market: %w", asset, domain.ErrNotFound)
}
