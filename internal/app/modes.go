package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cryptogyan1/polyarb/internal/arbitrage"
	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/cryptogyan1/polyarb/internal/executor"
	"github.com/cryptogyan1/polyarb/internal/feed"
	"github.com/cryptogyan1/polyarb/internal/monitor"
	"github.com/cryptogyan1/polyarb/internal/server"
	"github.com/cryptogyan1/polyarb/internal/server/handler"
	"github.com/cryptogyan1/polyarb/internal/service"
	"github.com/cryptogyan1/polyarb/internal/sizing"
)

var hundred = decimal.NewFromInt(100)

// ErrNotReady is returned by CheckMode when the wallet cannot trade.
var ErrNotReady = errors.New("app: wallet not ready to trade")

// TradeMode detects opportunities and executes them through the coordinator.
// The wallet report runs alongside when enabled.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	coord, err := a.newCoordinator(deps)
	if err != nil {
		return fmt.Errorf("trade mode: %w", err)
	}

	// Surface a missing approval at startup instead of at the first
	// opportunity. The gate runs again before every trade.
	if st, err := deps.Gate.Status(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial wallet status failed", slog.String("error", err.Error()))
	} else if !st.Authorized(deps.Gate.MinAllowance()) {
		a.logger.WarnContext(ctx, "wallet not authorized for the exchange yet",
			slog.String("wallet", st.Wallet.Hex()),
			slog.String("kind", string(st.Kind)),
			slog.String("allowance", st.Allowance.String()),
			slog.Bool("operator_approved", st.OperatorApproved),
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startMonitor(ctx, g, deps, coord)
	a.startHTTPServer(ctx, g, deps)

	if a.cfg.Report.Enabled && deps.Notifier.Enabled() {
		reports := a.newReportService(deps)
		g.Go(func() error {
			return reports.Run(ctx)
		})
	}

	return g.Wait()
}

// MonitorMode detects opportunities and logs them. No wallet is loaded and
// nothing is signed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startMonitor(ctx, g, deps, &logExecutor{logger: a.logger})
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// CheckMode runs the readiness gate once, sending approvals when allowed,
// prints the wallet report and returns. It fails with ErrNotReady when the
// wallet still cannot trade.
func (a *App) CheckMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting check mode")

	required := executor.ToBaseUnits(a.cfg.Trading.MinTradeSize)
	res, err := deps.Gate.Check(ctx, required)
	if err != nil {
		return fmt.Errorf("check mode: readiness: %w", err)
	}
	a.logger.InfoContext(ctx, "readiness check",
		slog.Bool("ready", res.Ready),
		slog.String("reason", string(res.Reason)),
		slog.String("remediation", string(res.Remediation)),
		slog.String("wallet_kind", string(res.WalletKind)),
		slog.Bool("remediated", res.Remediated),
		slog.Any("tx_hashes", res.TxHashes),
	)

	reports := a.newReportService(deps)
	body, err := reports.Report(ctx)
	if err != nil {
		return fmt.Errorf("check mode: %w", err)
	}
	fmt.Println(body)

	if a.cfg.Report.Enabled && deps.Notifier.Enabled() {
		if err := reports.Send(ctx); err != nil {
			a.logger.WarnContext(ctx, "report notification failed", slog.String("error", err.Error()))
		}
	}

	if !res.Ready {
		return fmt.Errorf("%w: %v", ErrNotReady, res.Err())
	}
	return nil
}

// startMonitor adds the window loop to g, executing opportunities with exec.
func (a *App) startMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies, exec monitor.Executor) {
	assets := a.cfg.Monitor.Assets
	markets := service.NewMarketService(
		deps.Gamma,
		[2]string{assets[0], assets[1]},
		a.cfg.Monitor.Window.Duration,
		a.cfg.Monitor.Lookback,
		a.logger,
	)

	mdeps := monitor.Deps{
		Discoverer: markets,
		Detector:   arbitrage.NewDetector(a.detectorConfig(), a.logger),
		Executor:   exec,
		Locks:      deps.Locks,
		Cache:      deps.QuoteCache,
	}
	switch strings.ToLower(a.cfg.Monitor.FeedSource) {
	case "ws":
		mdeps.Feed = feed.NewPolymarketWSFeed(
			a.cfg.Polymarket.WsHost,
			a.cfg.Monitor.ReconnectDelay.Duration,
			deps.Clob,
			a.logger,
		)
	default:
		mdeps.Quotes = feed.NewRESTSource(deps.Clob)
	}

	mon := monitor.New(monitor.Config{
		Interval:   a.cfg.Trading.Interval.Duration,
		RetryDelay: a.cfg.Monitor.RetryDelay.Duration,
		QuoteTTL:   a.cfg.Monitor.QuoteTTL.Duration,
	}, mdeps, a.logger)

	g.Go(func() error {
		return mon.Run(ctx)
	})
}

// startHTTPServer adds the read-only HTTP API to g when enabled. Routes are
// registered only for the backends that are wired.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		return
	}
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Mode, a.cfg.Trading.ReadOnly, a.logger),
	}
	if deps.Gate != nil {
		handlers.Wallet = handler.NewWalletHandler(deps.Gate, a.logger)
	}
	if deps.ExecStore != nil {
		handlers.Executions = handler.NewExecutionHandler(deps.ExecStore, a.logger)
	}
	if deps.QuoteCache != nil {
		handlers.Quotes = handler.NewQuoteHandler(deps.QuoteCache, a.logger)
	}

	srv := server.NewServer(server.Config{
		Addr:   a.cfg.Server.Addr,
		APIKey: a.cfg.Server.APIKey,
	}, handlers, a.logger)
	g.Go(func() error {
		return srv.Run(ctx)
	})
}

func (a *App) detectorConfig() arbitrage.DetectorConfig {
	t := a.cfg.Trading
	return arbitrage.DetectorConfig{
		MinProfitThreshold: t.MinProfit,
		MaxSumThreshold:    t.MaxSum,
		MinReasonablePrice: t.MinReasonablePrice,
		MaxReasonablePrice: t.MaxReasonablePrice,
		MinTotalCost:       t.MinTotalCost,
	}
}

func (a *App) sizingPolicy() domain.SizingPolicy {
	t := a.cfg.Trading
	return domain.SizingPolicy{
		Mode:        domain.SizingMode(strings.ToLower(t.SizingMode)),
		FixedAmount: t.FixedUSDC,
		Fraction:    t.PercentPerTrade.Div(hundred),
		FreeCap:     t.FreeCap,
	}
}

// newCoordinator assembles the execution coordinator. Every enabled backend
// receives the finished executions.
func (a *App) newCoordinator(deps *Dependencies) (*executor.Coordinator, error) {
	sizer, err := sizing.NewSizer(a.sizingPolicy(), a.cfg.Trading.MinTradeSize)
	if err != nil {
		return nil, fmt.Errorf("sizer: %w", err)
	}

	var recorders []executor.ExecutionRecorder
	if deps.ExecStore != nil {
		recorders = append(recorders, deps.ExecStore)
	}
	if deps.Archiver != nil {
		recorders = append(recorders, deps.Archiver)
	}
	if deps.Notifier.Enabled() {
		recorders = append(recorders, deps.Notifier)
	}

	return executor.NewCoordinator(executor.Deps{
		Balance:   executor.NewBalanceState(deps.Chain, deps.Funder),
		Sizer:     sizer,
		Gate:      deps.Gate,
		Builder:   deps.Builder,
		Submitter: deps.Clob,
		Recorders: recorders,
	}, a.cfg.Trading.ReadOnly, a.logger), nil
}

func (a *App) newReportService(deps *Dependencies) *service.ReportService {
	var counter service.ExecutionCounter
	if deps.ExecStore != nil {
		counter = deps.ExecStore
	}
	return service.NewReportService(deps.Gate, counter, deps.Notifier, a.cfg.Report.Cron, a.cfg.Trading.ReadOnly, a.logger)
}

// logExecutor stands in for the coordinator in monitor mode.
type logExecutor struct {
	logger *slog.Logger
}

func (e *logExecutor) Execute(ctx context.Context, opp domain.ArbitrageOpportunity) (domain.ArbExecution, error) {
	e.logger.InfoContext(ctx, "opportunity detected",
		slog.String("pair", opp.Label()),
		slog.String("price_a", opp.PriceA.String()),
		slog.String("price_b", opp.PriceB.String()),
		slog.String("total_cost", opp.TotalCost.String()),
		slog.String("expected_profit", opp.ExpectedProfit.String()),
	)
	return domain.ArbExecution{
		Opportunity: opp,
		Outcome:     domain.ExecSkipped,
		SkipReason:  "monitor mode",
		StartedAt:   opp.DetectedAt,
		CompletedAt: opp.DetectedAt,
	}, nil
}
