package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kparichay/indexfund/internal/cache/redis"
	"github.com/kparichay/indexfund/internal/catalog"
	"github.com/kparichay/indexfund/internal/config"
	"github.com/kparichay/indexfund/internal/domain"
	"github.com/kparichay/indexfund/internal/feed"
	"github.com/kparichay/indexfund/internal/fund"
	"github.com/kparichay/indexfund/internal/notify"
	"github.com/kparichay/indexfund/internal/platform/binance"
	"github.com/kparichay/indexfund/internal/platform/coinmarketcap"
	"github.com/kparichay/indexfund/internal/store/postgres"
)

// Dependencies bundles everything the operations need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Exchange *binance.Client
	Gateway  domain.ExecutionGateway

	Snapshotter *fund.Snapshotter
	Rebalancer  *fund.Rebalancer
	Reinvestor  *fund.Reinvestor
	Liquidator  *fund.Liquidator
	Leverage    *fund.LeverageManager

	// PlanStore is nil when the plan journal is disabled.
	PlanStore domain.PlanStore
	// PriceCache is nil when Redis is disabled.
	PriceCache domain.PriceCache
	// Feed is nil unless the live price stream is enabled.
	Feed *feed.TickerFeed

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources. live overrides the
// configured gateway mode when true.
func Wire(ctx context.Context, cfg *config.Config, live bool) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis caches ---
	var rankingCache domain.RankingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Redis.PriceTTL.Duration)
		rankingCache = redis.NewRankingCache(redisClient, cfg.Redis.RankingTTL.Duration)
	}

	// --- Plan journal ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.PlanStore = postgres.NewPlanStore(pgClient.Pool())
	}

	// --- Exchange ---
	exchange, err := binance.New(ctx, binance.Config{
		APIKey:            cfg.Binance.APIKey,
		SecretKey:         cfg.Binance.SecretKey,
		BaseCurrencies:    cfg.Binance.BaseCurrencies,
		PriceMaxAge:       cfg.Binance.PriceMaxAge.Duration,
		RequestsPerSecond: cfg.Binance.RequestsPerSecond,
	}, deps.PriceCache, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: binance: %w", err)
	}
	deps.Exchange = exchange

	deps.Gateway = binance.NewGateway(exchange, exchange, binance.GatewayConfig{
		Live:         live,
		FeeRate:      cfg.Engine.FeeRate,
		FillTimeout:  cfg.Gateway.FillTimeout.Duration,
		PollInterval: cfg.Gateway.PollInterval.Duration,
		MaxParallel:  cfg.Gateway.MaxParallel,
	}, logger)

	// --- Fund catalog ---
	var ranks domain.RankingSource
	if cfg.CoinMarketCap.APIKey != "" {
		ignore := append([]string{}, cfg.Engine.Fiat...)
		ignore = append(ignore, cfg.Engine.Blacklist...)
		ranks = coinmarketcap.New(cfg.CoinMarketCap.BaseURL, cfg.CoinMarketCap.APIKey, ignore)
	}
	cat := catalog.New(ranks, rankingCache, catalog.Config{
		Quote:  cfg.Engine.Currency,
		Static: cfg.Engine.Funds,
		Fiat:   cfg.Engine.Fiat,
	}, logger)

	// --- Fund engine ---
	snapshots := fund.NewSnapshotter(exchange, exchange, fund.SnapshotConfig{
		Currency:        cfg.Engine.Currency,
		MinHoldingValue: cfg.Engine.MinHoldingValue,
		Fiat:            cfg.Engine.Fiat,
		Blacklist:       cfg.Engine.Blacklist,
	}, logger)
	allocator := fund.NewAllocator(fund.AllocatorConfig{
		Tolerance: cfg.Engine.Tolerance,
		MinValue:  cfg.Engine.MinOrderValue,
	})
	planner := fund.NewPlanner(exchange, exchange, fund.PlannerConfig{
		FeeRate:        cfg.Engine.FeeRate,
		BaseCurrencies: cfg.Binance.BaseCurrencies,
	})
	liquidator := fund.NewLiquidator(snapshots, planner, logger)

	deps.Snapshotter = snapshots
	deps.Rebalancer = fund.NewRebalancer(cat, snapshots, allocator, planner, logger)
	deps.Reinvestor = fund.NewReinvestor(cat, snapshots, allocator, planner, liquidator, logger)
	deps.Liquidator = liquidator
	deps.Leverage = fund.NewLeverageManager(exchange, exchange, snapshots, planner, logger)

	// --- Live price stream ---
	if cfg.Feed.Enabled && deps.PriceCache != nil {
		deps.Feed = feed.NewTickerFeed(cfg.Feed.StreamURL, deps.PriceCache, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
