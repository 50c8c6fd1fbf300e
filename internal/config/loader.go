package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FUNDBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FUNDBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.APIKey, "FUNDBOT_BINANCE_API_KEY")
	setStr(&cfg.Binance.SecretKey, "FUNDBOT_BINANCE_SECRET_KEY")
	setStringSlice(&cfg.Binance.BaseCurrencies, "FUNDBOT_BINANCE_BASE_CURRENCIES")
	setFloat64(&cfg.Binance.RequestsPerSecond, "FUNDBOT_BINANCE_REQUESTS_PER_SECOND")
	setDuration(&cfg.Binance.PriceMaxAge, "FUNDBOT_BINANCE_PRICE_MAX_AGE")

	// ── CoinMarketCap ──
	setStr(&cfg.CoinMarketCap.APIKey, "FUNDBOT_COINMARKETCAP_API_KEY")
	setStr(&cfg.CoinMarketCap.BaseURL, "FUNDBOT_COINMARKETCAP_BASE_URL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FUNDBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FUNDBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FUNDBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FUNDBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FUNDBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FUNDBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FUNDBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.PriceTTL, "FUNDBOT_REDIS_PRICE_TTL")
	setDuration(&cfg.Redis.RankingTTL, "FUNDBOT_REDIS_RANKING_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "FUNDBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "FUNDBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FUNDBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FUNDBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FUNDBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FUNDBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FUNDBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FUNDBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FUNDBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FUNDBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FUNDBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Engine ──
	setStr(&cfg.Engine.Currency, "FUNDBOT_ENGINE_CURRENCY")
	setFloat64(&cfg.Engine.Tolerance, "FUNDBOT_ENGINE_TOLERANCE")
	setFloat64(&cfg.Engine.FeeRate, "FUNDBOT_ENGINE_FEE_RATE")
	setFloat64(&cfg.Engine.MinOrderValue, "FUNDBOT_ENGINE_MIN_ORDER_VALUE")
	setFloat64(&cfg.Engine.MinHoldingValue, "FUNDBOT_ENGINE_MIN_HOLDING_VALUE")
	setStringSlice(&cfg.Engine.Fiat, "FUNDBOT_ENGINE_FIAT")
	setStringSlice(&cfg.Engine.Blacklist, "FUNDBOT_ENGINE_BLACKLIST")

	// ── Gateway ──
	setBool(&cfg.Gateway.Live, "FUNDBOT_GATEWAY_LIVE")
	setDuration(&cfg.Gateway.FillTimeout, "FUNDBOT_GATEWAY_FILL_TIMEOUT")
	setDuration(&cfg.Gateway.PollInterval, "FUNDBOT_GATEWAY_POLL_INTERVAL")
	setInt(&cfg.Gateway.MaxParallel, "FUNDBOT_GATEWAY_MAX_PARALLEL")
	setDuration(&cfg.Gateway.SettleWait, "FUNDBOT_GATEWAY_SETTLE_WAIT")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "FUNDBOT_FEED_ENABLED")
	setStr(&cfg.Feed.StreamURL, "FUNDBOT_FEED_STREAM_URL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FUNDBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FUNDBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FUNDBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FUNDBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "FUNDBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
