package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Binance
	out.Binance = cfg.Binance
	redact(&out.Binance.APIKey)
	redact(&out.Binance.SecretKey)

	// CoinMarketCap
	out.CoinMarketCap = cfg.CoinMarketCap
	redact(&out.CoinMarketCap.APIKey)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	out.Binance.BaseCurrencies = copyStrings(cfg.Binance.BaseCurrencies)
	out.Engine.Fiat = copyStrings(cfg.Engine.Fiat)
	out.Engine.Blacklist = copyStrings(cfg.Engine.Blacklist)
	out.Notify.Events = copyStrings(cfg.Notify.Events)
	if cfg.Engine.Funds != nil {
		out.Engine.Funds = make(map[string][]string, len(cfg.Engine.Funds))
		for id, symbols := range cfg.Engine.Funds {
			out.Engine.Funds[id] = copyStrings(symbols)
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
