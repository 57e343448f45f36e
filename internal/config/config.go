// Package config defines the configuration of the arbitrage bot and its
// validation.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then overridden by POLYARB_* (and legacy) environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Chain      ChainConfig      `toml:"chain"`
	Trading    TradingConfig    `toml:"trading"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Report     ReportConfig     `toml:"report"`
	Server     ServerConfig     `toml:"server"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the trading key and the funder address.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	ProxyWallet      string `toml:"proxy_wallet"` // funder; empty trades from the key's own address
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds API endpoints, credentials and order parameters.
type PolymarketConfig struct {
	ClobHost      string   `toml:"clob_host"`
	GammaHost     string   `toml:"gamma_host"`
	WsHost        string   `toml:"ws_host"`
	ChainID       int      `toml:"chain_id"`
	SignatureType int      `toml:"signature_type"`
	ApiKey        string   `toml:"api_key"`
	ApiSecret     string   `toml:"api_secret"`
	ApiPassphrase string   `toml:"api_passphrase"`
	FeeRateBps    int64    `toml:"fee_rate_bps"`
	OrderValidity duration `toml:"order_validity"`
}

// ChainConfig holds the Polygon RPC endpoint and contract addresses.
type ChainConfig struct {
	RPCURL       string          `toml:"rpc_url"`
	USDC         string          `toml:"usdc"`
	CTF          string          `toml:"ctf"`
	Exchange     string          `toml:"exchange"`
	TxTimeout    duration        `toml:"tx_timeout"`
	MinAllowance decimal.Decimal `toml:"min_allowance"` // USDC
	AutoApprove  bool            `toml:"auto_approve"`
}

// TradingConfig holds sizing, detection thresholds and the polling cadence.
type TradingConfig struct {
	SizingMode         string          `toml:"sizing_mode"`
	FixedUSDC          decimal.Decimal `toml:"fixed_usdc"`
	PercentPerTrade    decimal.Decimal `toml:"percent_per_trade"` // 10 == 10%
	FreeCap            decimal.Decimal `toml:"free_cap"`          // 0 == uncapped
	MinTradeSize       decimal.Decimal `toml:"min_trade_size"`
	MinProfit          decimal.Decimal `toml:"min_profit"`
	MaxSum             decimal.Decimal `toml:"max_sum"`
	MinReasonablePrice decimal.Decimal `toml:"min_reasonable_price"`
	MaxReasonablePrice decimal.Decimal `toml:"max_reasonable_price"`
	MinTotalCost       decimal.Decimal `toml:"min_total_cost"`
	Interval           duration        `toml:"interval"`
	ReadOnly           bool            `toml:"read_only"`
}

// MonitorConfig selects the markets and the quote feed.
type MonitorConfig struct {
	Assets         []string `toml:"assets"`
	Window         duration `toml:"window"`
	Lookback       int      `toml:"lookback"`
	FeedSource     string   `toml:"feed_source"` // "rest" or "ws"
	ReconnectDelay duration `toml:"reconnect_delay"`
	RetryDelay     duration `toml:"retry_delay"`
	QuoteTTL       duration `toml:"quote_ttl"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters for the
// execution history.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the window lock and
// the quote mirror.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	URL        string `toml:"url"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds object storage settings for the execution archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// NotifyConfig configures the notification channels.
type NotifyConfig struct {
	TelegramToken       string   `toml:"telegram_token"`
	TelegramChatID      string   `toml:"telegram_chat_id"`
	TelegramAPIEndpoint string   `toml:"telegram_api_endpoint"`
	DiscordWebhookURL   string   `toml:"discord_webhook_url"`
	DiscordUsername     string   `toml:"discord_username"`
	Events              []string `toml:"events"`
}

// ReportConfig schedules the wallet report.
type ReportConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// ServerConfig controls the read-only HTTP API.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	APIKey  string `toml:"api_key"` // empty disables authentication
}

// duration wraps time.Duration so TOML strings like "15m" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with sensible defaults for every field.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:       137,
			SignatureType: 2,
			OrderValidity: duration{5 * time.Minute},
		},
		Chain: ChainConfig{
			RPCURL:       "https://polygon-rpc.com",
			USDC:         "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
			CTF:          "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045",
			Exchange:     "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
			TxTimeout:    duration{2 * time.Minute},
			MinAllowance: decimal.NewFromInt(1),
			AutoApprove:  true,
		},
		Trading: TradingConfig{
			SizingMode:         "percentage",
			FixedUSDC:          decimal.NewFromInt(5),
			PercentPerTrade:    decimal.NewFromInt(10),
			FreeCap:            decimal.NewFromInt(100),
			MinTradeSize:       decimal.NewFromInt(1),
			MinProfit:          decimal.RequireFromString("0.005"),
			MaxSum:             decimal.RequireFromString("0.99"),
			MinReasonablePrice: decimal.RequireFromString("0.15"),
			MaxReasonablePrice: decimal.RequireFromString("0.95"),
			MinTotalCost:       decimal.RequireFromString("0.50"),
			Interval:           duration{time.Second},
		},
		Monitor: MonitorConfig{
			Assets:         []string{"ETH", "BTC"},
			Window:         duration{15 * time.Minute},
			Lookback:       3,
			FeedSource:     "rest",
			ReconnectDelay: duration{2 * time.Second},
			RetryDelay:     duration{10 * time.Second},
			QuoteTTL:       duration{30 * time.Second},
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "polyarb:",
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "polyarb-executions",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			DiscordUsername: "polyarb",
			Events:          []string{"arb_executed", "arb_aborted", "leg_failed", "report"},
		},
		Report: ReportConfig{
			Cron: "@every 1h",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"trade":   true, // detect and execute
	"monitor": true, // detect and log only
	"check":   true, // readiness report, then exit
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSizingModes = map[string]bool{
	"fixed":      true,
	"percentage": true,
	"dynamic":    true,
	"free":       true,
}

// Validate checks the configuration for obvious errors and returns all
// problems joined into one error.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		add("unknown mode %q (valid: trade, monitor, check)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Wallet and chain settings are only needed when we touch the chain.
	if mode == "trade" || mode == "check" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			add("wallet: private_key or encrypted_key_path is required")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.PrivateKey == "" && c.Wallet.KeyPassword == "" {
			add("wallet: key_password is required with encrypted_key_path")
		}
		if c.Wallet.ProxyWallet != "" && !common.IsHexAddress(c.Wallet.ProxyWallet) {
			add("wallet: proxy_wallet %q is not an address", c.Wallet.ProxyWallet)
		}
		if c.Chain.RPCURL == "" {
			add("chain: rpc_url is required")
		}
		for _, a := range [...]struct{ name, addr string }{
			{"usdc", c.Chain.USDC}, {"ctf", c.Chain.CTF}, {"exchange", c.Chain.Exchange},
		} {
			if !common.IsHexAddress(a.addr) {
				add("chain: %s %q is not an address", a.name, a.addr)
			}
		}
		if c.Chain.MinAllowance.IsNegative() {
			add("chain: min_allowance must not be negative")
		}
	}

	if c.Polymarket.ClobHost == "" {
		add("polymarket: clob_host is required")
	}
	if c.Polymarket.GammaHost == "" {
		add("polymarket: gamma_host is required")
	}
	if c.Polymarket.ChainID <= 0 {
		add("polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		add("polymarket: signature_type must be 0, 1 or 2")
	}

	t := c.Trading
	if !validSizingModes[strings.ToLower(t.SizingMode)] {
		add("trading: unknown sizing_mode %q (valid: fixed, percentage, dynamic, free)", t.SizingMode)
	}
	if !t.FixedUSDC.IsPositive() && strings.EqualFold(t.SizingMode, "fixed") {
		add("trading: fixed_usdc must be positive")
	}
	if strings.EqualFold(t.SizingMode, "percentage") && (!t.PercentPerTrade.IsPositive() || t.PercentPerTrade.GreaterThan(decimal.NewFromInt(100))) {
		add("trading: percent_per_trade must be in (0, 100]")
	}
	if t.FreeCap.IsNegative() {
		add("trading: free_cap must not be negative")
	}
	if t.MinTradeSize.IsNegative() {
		add("trading: min_trade_size must not be negative")
	}
	if t.MinProfit.IsNegative() || t.MinProfit.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		add("trading: min_profit must be in [0, 1)")
	}
	if !t.MaxSum.IsPositive() || t.MaxSum.GreaterThan(decimal.NewFromInt(1)) {
		add("trading: max_sum must be in (0, 1]")
	}
	if t.MinReasonablePrice.GreaterThanOrEqual(t.MaxReasonablePrice) {
		add("trading: min_reasonable_price must be below max_reasonable_price")
	}
	if t.Interval.Duration <= 0 {
		add("trading: interval must be positive")
	}

	m := c.Monitor
	if len(m.Assets) != 2 {
		add("monitor: exactly two assets are required, got %d", len(m.Assets))
	} else if strings.EqualFold(m.Assets[0], m.Assets[1]) {
		add("monitor: assets must differ")
	}
	if m.Window.Duration < time.Minute {
		add("monitor: window must be at least 1m")
	}
	if m.Lookback < 0 {
		add("monitor: lookback must not be negative")
	}
	switch m.FeedSource {
	case "rest":
	case "ws":
		if c.Polymarket.WsHost == "" {
			add("polymarket: ws_host is required with feed_source \"ws\"")
		}
	default:
		add("monitor: unknown feed_source %q (valid: rest, ws)", m.FeedSource)
	}

	if c.Supabase.Enabled && c.Supabase.DSN == "" && c.Supabase.Host == "" {
		add("supabase: dsn or host is required when enabled")
	}
	if c.Redis.Enabled && c.Redis.URL == "" && c.Redis.Addr == "" {
		add("redis: url or addr is required when enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		add("s3: bucket is required when enabled")
	}
	if c.Notify.TelegramToken != "" {
		if _, err := strconv.ParseInt(c.Notify.TelegramChatID, 10, 64); err != nil {
			add("notify: telegram_chat_id %q is not a number", c.Notify.TelegramChatID)
		}
	}
	if c.Report.Enabled && c.Report.Cron == "" {
		add("report: cron is required when enabled")
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		add("server: addr is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
