package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/config"
	"github.com/cryptogyan1/polyarb/internal/domain"
)

func testApp(mutate func(*config.Config)) *App {
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(&cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestSizingPolicy_PercentIsFraction(t *testing.T) {
	a := testApp(func(c *config.Config) {
		c.Trading.SizingMode = "PERCENTAGE"
		c.Trading.PercentPerTrade = decimal.NewFromInt(10)
	})
	p := a.sizingPolicy()
	if p.Mode != domain.SizingPercentage {
		t.Fatalf("mode = %q", p.Mode)
	}
	if !p.Fraction.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("fraction = %s", p.Fraction)
	}
}

func TestDetectorConfig_FromTrading(t *testing.T) {
	a := testApp(func(c *config.Config) {
		c.Trading.MaxSum = decimal.RequireFromString("0.97")
	})
	dc := a.detectorConfig()
	if dc.MaxSumThreshold.String() != "0.97" || dc.MinProfitThreshold.String() != "0.005" {
		t.Fatalf("detector config = %+v", dc)
	}
}

func TestNeedsWallet(t *testing.T) {
	for mode, want := range map[string]bool{"trade": true, "CHECK": true, "monitor": false} {
		if got := needsWallet(mode); got != want {
			t.Errorf("needsWallet(%q) = %v", mode, got)
		}
	}
}

func TestLogExecutor_ReportsSkipped(t *testing.T) {
	e := &logExecutor{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	opp := domain.ArbitrageOpportunity{
		MarketA: "ETH", MarketB: "BTC",
		OutcomeA: domain.OutcomeUp, OutcomeB: domain.OutcomeDown,
		DetectedAt: time.Now(),
	}
	exec, err := e.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exec.Outcome != domain.ExecSkipped || len(exec.Legs) != 0 {
		t.Fatalf("exec = %+v", exec)
	}
}
