package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = testKey
	return cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	// Monitor mode needs no wallet.
	cfg = Defaults()
	cfg.Mode = "monitor"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate monitor: %v", err)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Trading.SizingMode = "martingale"
	cfg.Monitor.Assets = []string{"ETH", "eth"}
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.TelegramChatID = "@channel"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"unknown mode", "sizing_mode", "assets must differ", "telegram_chat_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_TradeNeedsWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.Exchange = "not-an-address"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "private_key") || !strings.Contains(err.Error(), "exchange") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate_PercentRange(t *testing.T) {
	cfg := validConfig()
	cfg.Trading.PercentPerTrade = decimal.NewFromInt(100)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("100%% should be allowed: %v", err)
	}
	cfg.Trading.PercentPerTrade = decimal.NewFromInt(101)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for 101%")
	}
}

func TestEnvOverrides_LegacyNames(t *testing.T) {
	t.Setenv("READ_ONLY", "true")
	t.Setenv("TRADE_MODE", " FIXED ")
	t.Setenv("FIXED_USDC_PER_TRADE", "12.5")
	t.Setenv("PERCENTAGE_PER_TRADE", "25")
	t.Setenv("MAX_TRADE_SIZE", "250")
	t.Setenv("ARBITRAGE_MAX_SUM", "0.97")
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("POLY_API_KEY", "key")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if !cfg.Trading.ReadOnly {
		t.Error("ReadOnly not set")
	}
	if cfg.Trading.SizingMode != "fixed" {
		t.Errorf("SizingMode = %q", cfg.Trading.SizingMode)
	}
	if cfg.Trading.FixedUSDC.String() != "12.5" || cfg.Trading.PercentPerTrade.String() != "25" {
		t.Errorf("fixed=%s percent=%s", cfg.Trading.FixedUSDC, cfg.Trading.PercentPerTrade)
	}
	if cfg.Trading.FreeCap.String() != "250" || cfg.Trading.MaxSum.String() != "0.97" {
		t.Errorf("cap=%s maxsum=%s", cfg.Trading.FreeCap, cfg.Trading.MaxSum)
	}
	if cfg.Chain.RPCURL != "https://rpc.example" || cfg.Polymarket.ApiKey != "key" {
		t.Errorf("rpc=%q key=%q", cfg.Chain.RPCURL, cfg.Polymarket.ApiKey)
	}
}

func TestEnvOverrides_PrefixedWins(t *testing.T) {
	t.Setenv("RPC_URL", "https://legacy.example")
	t.Setenv("POLYARB_CHAIN_RPC_URL", "https://new.example")
	t.Setenv("PERCENTAGE_PER_TRADE", "25")
	t.Setenv("POLYARB_TRADING_PERCENT_PER_TRADE", "5")
	t.Setenv("POLYARB_MONITOR_ASSETS", "SOL, XRP,")
	t.Setenv("POLYARB_TRADING_INTERVAL", "250ms")
	t.Setenv("POLYARB_REDIS_DB", "not-a-number")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Chain.RPCURL != "https://new.example" {
		t.Errorf("RPCURL = %q", cfg.Chain.RPCURL)
	}
	if cfg.Trading.PercentPerTrade.String() != "5" {
		t.Errorf("PercentPerTrade = %s", cfg.Trading.PercentPerTrade)
	}
	if len(cfg.Monitor.Assets) != 2 || cfg.Monitor.Assets[1] != "XRP" {
		t.Errorf("Assets = %v", cfg.Monitor.Assets)
	}
	if cfg.Trading.Interval.Duration != 250*time.Millisecond {
		t.Errorf("Interval = %v", cfg.Trading.Interval)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("unparsable int applied: %d", cfg.Redis.DB)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polyarb.toml")
	body := `
mode = "monitor"

[trading]
sizing_mode = "dynamic"
min_profit = "0.02"
interval = "500ms"

[monitor]
assets = ["SOL", "ETH"]
window = "1h"

[chain]
min_allowance = "50"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "monitor" || cfg.Trading.SizingMode != "dynamic" {
		t.Errorf("mode=%q sizing=%q", cfg.Mode, cfg.Trading.SizingMode)
	}
	if cfg.Trading.MinProfit.String() != "0.02" || cfg.Chain.MinAllowance.String() != "50" {
		t.Errorf("min_profit=%s min_allowance=%s", cfg.Trading.MinProfit, cfg.Chain.MinAllowance)
	}
	if cfg.Trading.Interval.Duration != 500*time.Millisecond || cfg.Monitor.Window.Duration != time.Hour {
		t.Errorf("interval=%v window=%v", cfg.Trading.Interval, cfg.Monitor.Window)
	}
	// Untouched sections keep their defaults.
	if cfg.Trading.MaxSum.String() != "0.99" || cfg.Polymarket.ChainID != 137 {
		t.Errorf("defaults lost: maxsum=%s chain=%d", cfg.Trading.MaxSum, cfg.Polymarket.ChainID)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "trade" {
		t.Errorf("Mode = %q", cfg.Mode)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Polymarket.ApiSecret = "s3cret"
	cfg.Redis.URL = "redis://:pw@host:6379/0"

	out := RedactedConfig(&cfg)
	if out.Wallet.PrivateKey != redacted || out.Polymarket.ApiSecret != redacted || out.Redis.URL != redacted {
		t.Fatalf("secrets leaked: %+v", out)
	}
	if out.Polymarket.ApiPassphrase != "" {
		t.Error("empty secret should stay empty")
	}
	if cfg.Wallet.PrivateKey != testKey {
		t.Error("original mutated")
	}
	out.Monitor.Assets[0] = "DOGE"
	if cfg.Monitor.Assets[0] != "ETH" {
		t.Error("assets slice shared")
	}
}
