// Package config defines the top-level configuration for the index fund
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FUNDBOT_* environment
// variables.
type Config struct {
	Binance       BinanceConfig       `toml:"binance"`
	CoinMarketCap CoinMarketCapConfig `toml:"coinmarketcap"`
	Redis         RedisConfig         `toml:"redis"`
	Postgres      PostgresConfig      `toml:"postgres"`
	Engine        EngineConfig        `toml:"engine"`
	Gateway       GatewayConfig       `toml:"gateway"`
	Feed          FeedConfig          `toml:"feed"`
	Notify        NotifyConfig        `toml:"notify"`
	LogLevel      string              `toml:"log_level"`
}

// BinanceConfig holds exchange API credentials and client parameters.
type BinanceConfig struct {
	APIKey            string   `toml:"api_key"`
	SecretKey         string   `toml:"secret_key"`
	BaseCurrencies    []string `toml:"base_currencies"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	PriceMaxAge       duration `toml:"price_max_age"`
}

// CoinMarketCapConfig holds the market-capitalization ranking API
// parameters. An empty api_key disables ranked funds.
type CoinMarketCapConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// RedisConfig holds Redis connection parameters and cache lifetimes.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	PriceTTL   duration `toml:"price_ttl"`
	RankingTTL duration `toml:"ranking_ttl"`
}

// PostgresConfig holds the plan-journal database parameters. When disabled,
// plans and execution reports are not persisted.
type PostgresConfig struct {
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

// EngineConfig holds the fund-engine parameters: valuation currency,
// rebalance tolerance, fee assumptions, and asset admission rules.
type EngineConfig struct {
	// Currency is the valuation currency for snapshots and plans.
	Currency string `toml:"currency"`
	// Tolerance is the relative drift band within which a holding is left
	// alone (0.02 = 2%).
	Tolerance float64 `toml:"tolerance"`
	// FeeRate is the taker fee assumed when sizing orders (0.001 = 0.10%).
	FeeRate float64 `toml:"fee_rate"`
	// MinOrderValue is the smallest order notional worth placing, in the
	// valuation currency.
	MinOrderValue float64 `toml:"min_order_value"`
	// MinHoldingValue is the dust threshold below which balances are
	// ignored when snapshotting.
	MinHoldingValue float64 `toml:"min_holding_value"`
	// Fiat lists stablecoin symbols never admitted to a fund.
	Fiat []string `toml:"fiat"`
	// Blacklist lists symbols excluded from snapshots entirely.
	Blacklist []string `toml:"blacklist"`
	// Funds maps operator-declared fund IDs to symbol lists.
	Funds map[string][]string `toml:"funds"`
}

// GatewayConfig holds order-execution parameters.
type GatewayConfig struct {
	// Live submits real orders when true; otherwise plans are only printed
	// and journaled. The -live CLI flag overrides this.
	Live         bool     `toml:"live"`
	FillTimeout  duration `toml:"fill_timeout"`
	PollInterval duration `toml:"poll_interval"`
	MaxParallel  int      `toml:"max_parallel"`
	// SettleWait is the minimum interval between live executions, giving
	// the exchange time to settle balances before the next plan reads
	// them. Zero disables the check.
	SettleWait duration `toml:"settle_wait"`
}

// FeedConfig holds the live price stream parameters.
type FeedConfig struct {
	Enabled   bool   `toml:"enabled"`
	StreamURL string `toml:"stream_url"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			BaseCurrencies:    []string{"USDT", "BTC", "BNB"},
			RequestsPerSecond: 8,
			PriceMaxAge:       duration{30 * time.Second},
		},
		CoinMarketCap: CoinMarketCapConfig{
			BaseURL: "https://pro-api.coinmarketcap.com",
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   16,
			MaxRetries: 3,
			TLSEnabled: false,
			PriceTTL:   duration{5 * time.Minute},
			RankingTTL: duration{time.Hour},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "indexfund",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Engine: EngineConfig{
			Currency:        "USDT",
			Tolerance:       0.02,
			FeeRate:         0.001,
			MinOrderValue:   20.0,
			MinHoldingValue: 20.0,
			Fiat: []string{
				"USDT", "USDC", "BUSD", "DAI", "UST",
				"PAX", "HUSD", "TUSD", "USDN",
			},
			Funds: map[string][]string{},
		},
		Gateway: GatewayConfig{
			Live:         false,
			FillTimeout:  duration{2 * time.Minute},
			PollInterval: duration{10 * time.Second},
			MaxParallel:  4,
			SettleWait:   duration{time.Minute},
		},
		Feed: FeedConfig{
			Enabled: false,
		},
		Notify: NotifyConfig{
			Events: []string{"planned", "executed", "failed"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Binance
	if c.Binance.APIKey == "" {
		errs = append(errs, "binance: api_key must not be empty")
	}
	if c.Binance.SecretKey == "" {
		errs = append(errs, "binance: secret_key must not be empty")
	}
	if len(c.Binance.BaseCurrencies) == 0 {
		errs = append(errs, "binance: base_currencies must list at least one currency")
	}
	if c.Binance.RequestsPerSecond <= 0 {
		errs = append(errs, "binance: requests_per_second must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Engine
	if c.Engine.Currency == "" {
		errs = append(errs, "engine: currency must not be empty")
	}
	if c.Engine.Tolerance < 0 || c.Engine.Tolerance >= 1 {
		errs = append(errs, fmt.Sprintf("engine: tolerance must be in [0, 1), got %g", c.Engine.Tolerance))
	}
	if c.Engine.FeeRate < 0 || c.Engine.FeeRate >= 0.1 {
		errs = append(errs, fmt.Sprintf("engine: fee_rate must be in [0, 0.1), got %g", c.Engine.FeeRate))
	}
	if c.Engine.MinOrderValue < 0 {
		errs = append(errs, "engine: min_order_value must be >= 0")
	}
	if c.Engine.MinHoldingValue < 0 {
		errs = append(errs, "engine: min_holding_value must be >= 0")
	}
	for id, symbols := range c.Engine.Funds {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, "engine: fund IDs must not be empty")
		}
		if len(symbols) == 0 {
			errs = append(errs, fmt.Sprintf("engine: fund %q must list at least one symbol", id))
		}
	}

	// Gateway
	if c.Gateway.FillTimeout.Duration <= 0 {
		errs = append(errs, "gateway: fill_timeout must be > 0")
	}
	if c.Gateway.PollInterval.Duration <= 0 {
		errs = append(errs, "gateway: poll_interval must be > 0")
	}
	if c.Gateway.MaxParallel < 1 {
		errs = append(errs, "gateway: max_parallel must be >= 1")
	}
	if c.Gateway.SettleWait.Duration < 0 {
		errs = append(errs, "gateway: settle_wait must be >= 0")
	}

	// Feed needs the price cache to write into.
	if c.Feed.Enabled && !c.Redis.Enabled {
		errs = append(errs, "feed: redis must be enabled when the feed is enabled")
	}

	// Notify: telegram token and chat ID go together.
	tk := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tk != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
