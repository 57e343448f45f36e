package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load merges, in order: Defaults, the TOML file at path (optional when
// path is empty or missing), a .env file in the working directory, and
// environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose environment variable is set and
// non-empty. Names the original bot used are read first so the POLYARB_*
// form wins when both are present.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PRIVATE_KEY")
	setStr(&cfg.Wallet.PrivateKey, "POLYARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.ProxyWallet, "PROXY_WALLET")
	setStr(&cfg.Wallet.ProxyWallet, "POLYARB_WALLET_PROXY_WALLET")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYARB_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYMARKET_CLOB_REST")
	setStr(&cfg.Polymarket.ClobHost, "POLYARB_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYARB_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYARB_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYARB_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYARB_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.ApiKey, "POLY_API_KEY")
	setStr(&cfg.Polymarket.ApiKey, "POLYARB_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "POLY_API_SECRET")
	setStr(&cfg.Polymarket.ApiSecret, "POLYARB_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "POLY_API_PASSPHRASE")
	setStr(&cfg.Polymarket.ApiPassphrase, "POLYARB_POLYMARKET_API_PASSPHRASE")
	setInt64(&cfg.Polymarket.FeeRateBps, "POLYARB_POLYMARKET_FEE_RATE_BPS")
	setDuration(&cfg.Polymarket.OrderValidity, "POLYARB_POLYMARKET_ORDER_VALIDITY")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "RPC_URL")
	setStr(&cfg.Chain.RPCURL, "POLYGON_RPC_URL")
	setStr(&cfg.Chain.RPCURL, "POLYARB_CHAIN_RPC_URL")
	setStr(&cfg.Chain.USDC, "POLYARB_CHAIN_USDC")
	setStr(&cfg.Chain.CTF, "POLYARB_CHAIN_CTF")
	setStr(&cfg.Chain.Exchange, "POLYARB_CHAIN_EXCHANGE")
	setDuration(&cfg.Chain.TxTimeout, "POLYARB_CHAIN_TX_TIMEOUT")
	setDecimal(&cfg.Chain.MinAllowance, "POLYARB_CHAIN_MIN_ALLOWANCE")
	setBool(&cfg.Chain.AutoApprove, "POLYARB_CHAIN_AUTO_APPROVE")

	// ── Trading ──
	setLower(&cfg.Trading.SizingMode, "TRADE_MODE")
	setLower(&cfg.Trading.SizingMode, "POLYARB_TRADING_SIZING_MODE")
	setDecimal(&cfg.Trading.FixedUSDC, "FIXED_USDC_PER_TRADE")
	setDecimal(&cfg.Trading.FixedUSDC, "POLYARB_TRADING_FIXED_USDC")
	setDecimal(&cfg.Trading.PercentPerTrade, "PERCENTAGE_PER_TRADE")
	setDecimal(&cfg.Trading.PercentPerTrade, "POLYARB_TRADING_PERCENT_PER_TRADE")
	setDecimal(&cfg.Trading.FreeCap, "MAX_TRADE_SIZE")
	setDecimal(&cfg.Trading.FreeCap, "POLYARB_TRADING_FREE_CAP")
	setDecimal(&cfg.Trading.MinTradeSize, "MIN_TRADE_SIZE")
	setDecimal(&cfg.Trading.MinTradeSize, "POLYARB_TRADING_MIN_TRADE_SIZE")
	setDecimal(&cfg.Trading.MinProfit, "POLYARB_TRADING_MIN_PROFIT")
	setDecimal(&cfg.Trading.MaxSum, "ARBITRAGE_MAX_SUM")
	setDecimal(&cfg.Trading.MaxSum, "POLYARB_TRADING_MAX_SUM")
	setDecimal(&cfg.Trading.MinReasonablePrice, "MIN_REASONABLE_PRICE")
	setDecimal(&cfg.Trading.MinReasonablePrice, "POLYARB_TRADING_MIN_REASONABLE_PRICE")
	setDecimal(&cfg.Trading.MaxReasonablePrice, "MAX_REASONABLE_PRICE")
	setDecimal(&cfg.Trading.MaxReasonablePrice, "POLYARB_TRADING_MAX_REASONABLE_PRICE")
	setDecimal(&cfg.Trading.MinTotalCost, "MIN_TOTAL_COST")
	setDecimal(&cfg.Trading.MinTotalCost, "POLYARB_TRADING_MIN_TOTAL_COST")
	setDuration(&cfg.Trading.Interval, "POLYARB_TRADING_INTERVAL")
	setBool(&cfg.Trading.ReadOnly, "READ_ONLY")
	setBool(&cfg.Trading.ReadOnly, "POLYARB_TRADING_READ_ONLY")

	// ── Monitor ──
	setStringSlice(&cfg.Monitor.Assets, "POLYARB_MONITOR_ASSETS")
	setDuration(&cfg.Monitor.Window, "POLYARB_MONITOR_WINDOW")
	setInt(&cfg.Monitor.Lookback, "POLYARB_MONITOR_LOOKBACK")
	setLower(&cfg.Monitor.FeedSource, "POLYARB_MONITOR_FEED_SOURCE")
	setDuration(&cfg.Monitor.ReconnectDelay, "POLYARB_MONITOR_RECONNECT_DELAY")
	setDuration(&cfg.Monitor.RetryDelay, "POLYARB_MONITOR_RETRY_DELAY")
	setDuration(&cfg.Monitor.QuoteTTL, "POLYARB_MONITOR_QUOTE_TTL")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "POLYARB_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "POLYARB_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "POLYARB_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "POLYARB_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "POLYARB_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "POLYARB_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "POLYARB_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "POLYARB_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "POLYARB_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "POLYARB_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "POLYARB_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "POLYARB_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYARB_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "POLYARB_REDIS_URL")
	setStr(&cfg.Redis.Addr, "POLYARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYARB_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "POLYARB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "POLYARB_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYARB_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "POLYARB_S3_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramAPIEndpoint, "POLYARB_NOTIFY_TELEGRAM_API_ENDPOINT")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.DiscordUsername, "POLYARB_NOTIFY_DISCORD_USERNAME")
	setStringSlice(&cfg.Notify.Events, "POLYARB_NOTIFY_EVENTS")

	// ── Report ──
	setBool(&cfg.Report.Enabled, "POLYARB_REPORT_ENABLED")
	setStr(&cfg.Report.Cron, "POLYARB_REPORT_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYARB_SERVER_ENABLED")
	setStr(&cfg.Server.Addr, "POLYARB_SERVER_ADDR")
	setStr(&cfg.Server.APIKey, "POLYARB_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYARB_MODE")
	setStr(&cfg.LogLevel, "POLYARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present, non-empty and parses.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setLower(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.ToLower(strings.TrimSpace(v))
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
