package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/cryptogyan1/polyarb/internal/blob/s3"
	"github.com/cryptogyan1/polyarb/internal/cache/redis"
	"github.com/cryptogyan1/polyarb/internal/config"
	"github.com/cryptogyan1/polyarb/internal/crypto"
	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/cryptogyan1/polyarb/internal/executor"
	"github.com/cryptogyan1/polyarb/internal/notify"
	"github.com/cryptogyan1/polyarb/internal/platform/polygon"
	"github.com/cryptogyan1/polyarb/internal/platform/polymarket"
	"github.com/cryptogyan1/polyarb/internal/readiness"
	"github.com/cryptogyan1/polyarb/internal/store/postgres"
)

// Dependencies bundles everything the operating modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Exchange
	Clob  *polymarket.ClobClient
	Gamma *polymarket.GammaClient

	// Wallet; nil in monitor mode.
	Signer  *crypto.Signer
	Funder  common.Address
	Chain   *polygon.Client
	Gate    *readiness.Gate
	Builder *crypto.OrderBuilder

	// Optional backends; nil when disabled.
	ExecStore  *postgres.ArbExecutionStore
	Archiver   *s3blob.ExecutionArchiver
	Locks      domain.LockManager
	QuoteCache domain.QuoteCache

	Notifier *notify.Notifier
}

// needsWallet returns true for modes that read the chain or sign orders.
func needsWallet(mode string) bool {
	switch strings.ToLower(mode) {
	case "trade", "check":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(format string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf(format, err)
	}

	deps := &Dependencies{
		Gamma: polymarket.NewGammaClient(cfg.Polymarket.GammaHost),
	}

	// --- Wallet, chain and order signing ---
	if needsWallet(cfg.Mode) {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail("wire: load key: %w", err)
		}
		chainID := int64(cfg.Polymarket.ChainID)
		signer, err := crypto.NewSigner(keyHex, crypto.ExchangeDomain(chainID, cfg.Chain.Exchange))
		if err != nil {
			return fail("wire: signer: %w", err)
		}
		deps.Signer = signer

		deps.Builder, err = crypto.NewOrderBuilder(signer, crypto.OrderBuilderConfig{
			Maker:         cfg.Wallet.ProxyWallet,
			SignatureType: cfg.Polymarket.SignatureType,
			FeeRateBps:    cfg.Polymarket.FeeRateBps,
			Validity:      cfg.Polymarket.OrderValidity.Duration,
		})
		if err != nil {
			return fail("wire: order builder: %w", err)
		}
		deps.Funder = deps.Builder.Maker()

		chain, err := polygon.Dial(ctx, polygon.Config{
			RPCURL:    cfg.Chain.RPCURL,
			ChainID:   chainID,
			USDC:      cfg.Chain.USDC,
			CTF:       cfg.Chain.CTF,
			TxTimeout: cfg.Chain.TxTimeout.Duration,
		}, signer.PrivateKey(), logger)
		if err != nil {
			return fail("wire: polygon: %w", err)
		}
		closers = append(closers, chain.Close)
		deps.Chain = chain

		deps.Gate = readiness.NewGate(chain, readiness.Config{
			Wallet:        deps.Funder,
			Exchange:      common.HexToAddress(cfg.Chain.Exchange),
			MinAllowance:  executor.ToBaseUnits(cfg.Chain.MinAllowance),
			AutoRemediate: cfg.Chain.AutoApprove && !cfg.Trading.ReadOnly,
		}, logger)

		logger.InfoContext(ctx, "wallet loaded",
			slog.String("signer", signer.Address().Hex()),
			slog.String("funder", deps.Funder.Hex()),
		)
	}

	// --- CLOB client ---
	var creds *crypto.HMACAuth
	if cfg.Polymarket.ApiKey != "" {
		creds = &crypto.HMACAuth{
			Key:        cfg.Polymarket.ApiKey,
			Secret:     cfg.Polymarket.ApiSecret,
			Passphrase: cfg.Polymarket.ApiPassphrase,
		}
	}
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, deps.Signer, creds, 0)
	if strings.EqualFold(cfg.Mode, "trade") && !cfg.Trading.ReadOnly && !deps.Clob.HasCredentials() {
		if _, err := deps.Clob.DeriveAPIKey(ctx); err != nil {
			return fail("wire: derive api key: %w", err)
		}
		logger.InfoContext(ctx, "derived CLOB API credentials")
	}

	// --- PostgreSQL execution history ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("wire: postgres migrations: %w", err)
			}
		}
		deps.ExecStore = postgres.NewArbExecutionStore(pgClient.Pool())
	}

	// --- Redis window lock and quote mirror ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.QuoteCache = redis.NewQuoteCache(redisClient)
	}

	// --- S3 execution archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket not reachable, archiving may fail",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}
		deps.Archiver = s3blob.NewExecutionArchiver(s3blob.NewWriter(s3Client), cfg.S3.Prefix)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		chatID, err := strconv.ParseInt(cfg.Notify.TelegramChatID, 10, 64)
		if err != nil {
			return fail("wire: telegram chat id: %w", err)
		}
		tg, err := notify.NewTelegramSender(cfg.Notify.TelegramToken, chatID, cfg.Notify.TelegramAPIEndpoint)
		if err != nil {
			return fail("wire: telegram: %w", err)
		}
		senders = append(senders, tg)
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, cfg.Notify.DiscordUsername))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
