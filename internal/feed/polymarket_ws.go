package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/cryptogyan1/polyarb/internal/platform/polymarket"
)

// BookSeeder fetches a full book over REST.
type BookSeeder interface {
	GetBook(ctx context.Context, tokenID string) (polymarket.BookUpdate, error)
}

// PolymarketWSFeed mirrors the CLOB market channel for one set of tokens
// into a BookView. The view doubles as the QuoteSource the monitor reads.
type PolymarketWSFeed struct {
	client *polymarket.WSClient
	view   *BookView
	seeder BookSeeder
	logger *slog.Logger
}

// NewPolymarketWSFeed creates a feed. seeder may be nil; when set, every
// book is loaded over REST before the socket delivers its first snapshot.
func NewPolymarketWSFeed(wsURL string, reconnectDelay time.Duration, seeder BookSeeder, logger *slog.Logger) *PolymarketWSFeed {
	f := &PolymarketWSFeed{
		client: polymarket.NewWSClient(wsURL, reconnectDelay, logger),
		view:   NewBookView(),
		seeder: seeder,
		logger: logger.With(slog.String("component", "polymarket_ws_feed")),
	}
	f.client.OnBookUpdate(f.view.ApplyBook)
	f.client.OnLevelChange(f.view.ApplyChange)
	return f
}

// View returns the book view kept current by Run.
func (f *PolymarketWSFeed) View() *BookView { return f.view }

// Quote reads the top of book for tokenID from the view.
func (f *PolymarketWSFeed) Quote(ctx context.Context, tokenID string) (domain.OutcomeQuote, error) {
	return f.view.Quote(ctx, tokenID)
}

// Run subscribes to assetIDs and keeps the view current until ctx is
// cancelled. The view is reset first so quotes of a previous window never
// leak into this one.
func (f *PolymarketWSFeed) Run(ctx context.Context, assetIDs []string) error {
	if len(assetIDs) == 0 {
		f.logger.Info("no asset IDs to subscribe, exiting")
		return nil
	}
	f.view.Reset()

	if f.seeder != nil {
		for _, id := range assetIDs {
			book, err := f.seeder.GetBook(ctx, id)
			if err != nil {
				f.logger.Warn("book seed failed", slog.String("asset", id), slog.Any("error", err))
				continue
			}
			f.view.ApplyBook(book)
		}
	}

	return f.client.Run(ctx, assetIDs)
}
