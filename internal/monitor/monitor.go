// Package monitor drives the trading loop: one market pair per window, one
// snapshot per tick, and every detected opportunity handed to the executor
// before the next tick.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/cryptogyan1/polyarb/internal/feed"
)

// Defaults applied by New when the config leaves a field zero.
const (
	DefaultInterval   = time.Second
	DefaultRetryDelay = 10 * time.Second
	DefaultQuoteTTL   = 30 * time.Second
)

// PairDiscoverer finds the market pair of the current window.
type PairDiscoverer interface {
	DiscoverPair(ctx context.Context) (domain.MarketPair, error)
}

// OpportunityDetector evaluates a snapshot.
type OpportunityDetector interface {
	Detect(snap domain.MarketSnapshot) []domain.ArbitrageOpportunity
}

// Executor acts on one opportunity.
type Executor interface {
	Execute(ctx context.Context, opp domain.ArbitrageOpportunity) (domain.ArbExecution, error)
}

// WindowFeed is a streaming quote source that must be started for each
// window's tokens.
type WindowFeed interface {
	feed.QuoteSource
	Run(ctx context.Context, assetIDs []string) error
}

// Config tunes the loop.
type Config struct {
	Interval   time.Duration // snapshot period
	RetryDelay time.Duration // wait after a failed discovery
	QuoteTTL   time.Duration // expiry of mirrored quotes
}

// Deps are the collaborators of a Monitor. Feed, Locks and Cache are
// optional. When Feed is set it replaces Quotes.
type Deps struct {
	Discoverer PairDiscoverer
	Detector   OpportunityDetector
	Executor   Executor
	Quotes     feed.QuoteSource
	Feed       WindowFeed
	Locks      domain.LockManager
	Cache      domain.QuoteCache
}

// Monitor runs the window loop.
type Monitor struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// New creates a Monitor.
func New(cfg Config, deps Deps, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = DefaultQuoteTTL
	}
	if deps.Feed != nil {
		deps.Quotes = deps.Feed
	}
	return &Monitor{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "monitor")),
	}
}

// Run trades window after window until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pair, err := m.deps.Discoverer.DiscoverPair(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.WarnContext(ctx, "pair discovery failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", m.cfg.RetryDelay),
			)
			if !sleep(ctx, m.cfg.RetryDelay) {
				return ctx.Err()
			}
			continue
		}

		if err := m.RunWindow(ctx, pair); err != nil {
			return err
		}
	}
}

// RunWindow trades one pair until its window ends. Rollover cancels the
// window context; in-flight requests observe it and nothing is drained. The
// returned error is non-nil only when the parent ctx is done.
func (m *Monitor) RunWindow(ctx context.Context, pair domain.MarketPair) error {
	wctx, cancel := context.WithDeadline(ctx, pair.Window.End)
	defer cancel()

	logger := m.logger.With(
		slog.String("market_a", pair.A.Slug),
		slog.String("market_b", pair.B.Slug),
		slog.Time("window_end", pair.Window.End),
	)

	if m.deps.Locks != nil {
		key := fmt.Sprintf("window:%s:%s", pair.A.ConditionID, pair.B.ConditionID)
		unlock, err := m.deps.Locks.Acquire(wctx, key, time.Until(pair.Window.End)+time.Minute)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			logger.InfoContext(wctx, "window held by another instance, standing by")
			<-wctx.Done()
			return ctx.Err()
		case err != nil:
			logger.WarnContext(wctx, "window lock unavailable, trading unlocked",
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	g, gctx := errgroup.WithContext(wctx)
	if m.deps.Feed != nil {
		g.Go(func() error {
			err := m.deps.Feed.Run(gctx, pair.TokenIDs())
			if err != nil && gctx.Err() == nil {
				logger.ErrorContext(gctx, "feed stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	g.Go(func() error {
		m.trade(gctx, pair, logger)
		return nil
	})
	_ = g.Wait()

	logger.InfoContext(ctx, "window closed")
	return ctx.Err()
}

func (m *Monitor) trade(ctx context.Context, pair domain.MarketPair, logger *slog.Logger) {
	logger.InfoContext(ctx, "monitoring window",
		slog.Duration("interval", m.cfg.Interval),
	)
	for snap, err := range m.Snapshots(ctx, pair) {
		if err != nil {
			logger.WarnContext(ctx, "snapshot failed, skipping cycle", slog.String("error", err.Error()))
			continue
		}
		m.mirror(ctx, snap, logger)

		for _, opp := range m.deps.Detector.Detect(snap) {
			if _, err := m.deps.Executor.Execute(ctx, opp); err != nil {
				logger.ErrorContext(ctx, "execution failed",
					slog.String("opportunity", opp.Label()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (m *Monitor) mirror(ctx context.Context, snap domain.MarketSnapshot, logger *slog.Logger) {
	if m.deps.Cache == nil {
		return
	}
	if err := m.deps.Cache.SetQuotes(ctx, snap, m.cfg.QuoteTTL); err != nil {
		logger.DebugContext(ctx, "quote cache write failed", slog.String("error", err.Error()))
	}
}

// Snapshots yields one snapshot of pair per tick until ctx is done. The
// first snapshot is taken immediately. A failed fetch yields its error and
// the stream continues with the next tick. Ticks never overlap: the next
// one is awaited only after the consumer returns.
func (m *Monitor) Snapshots(ctx context.Context, pair domain.MarketPair) iter.Seq2[domain.MarketSnapshot, error] {
	return func(yield func(domain.MarketSnapshot, error) bool) {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			snap, err := m.Snapshot(ctx, pair)
			if ctx.Err() != nil {
				return
			}
			if !yield(snap, err) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// Snapshot fetches all four outcome quotes of pair concurrently. A token
// whose fetch fails is left without bid or ask, so only the pairings that
// need it are skipped. The error is non-nil only when every fetch failed.
func (m *Monitor) Snapshot(ctx context.Context, pair domain.MarketPair) (domain.MarketSnapshot, error) {
	ids := pair.TokenIDs()
	quotes := make([]domain.OutcomeQuote, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			q, err := m.deps.Quotes.Quote(ctx, id)
			if err != nil {
				errs[i] = fmt.Errorf("monitor: quote %s: %w", id, err)
				q = domain.OutcomeQuote{}
			}
			q.TokenID = id
			quotes[i] = q
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			m.logger.WarnContext(ctx, "quote unavailable", slog.String("error", err.Error()))
		}
	}
	if failed == len(ids) {
		return domain.MarketSnapshot{}, errors.Join(errs...)
	}

	return domain.MarketSnapshot{
		A: domain.MarketQuotes{
			MarketID: pair.A.Asset, Slug: pair.A.Slug,
			Up: quotes[0], Down: quotes[1],
		},
		B: domain.MarketQuotes{
			MarketID: pair.B.Asset, Slug: pair.B.Slug,
			Up: quotes[2], Down: quotes[3],
		},
		ObservedAt: time.Now(),
	}, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
