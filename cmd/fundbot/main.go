// Command fundbot is the entry point for the index fund engine. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and executes the requested fund operation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/kparichay/indexfund/internal/app"
	"github.com/kparichay/indexfund/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	op := flag.String("op", "rebalance", "operation: rebalance, reinvest, liquidate, leverage-bull, leverage-bear, leverage-liquidate")
	fundID := flag.String("fund", "", "fund identifier (large-cap, mid-cap, small-cap, a configured fund, or a comma-separated symbol list)")
	targetFund := flag.String("target-fund", "", "destination fund for reinvest")
	weights := flag.String("weights", "", "comma-separated weight overrides, one per fund component")
	fraction := flag.Float64("fraction", 1.0, "fraction of the source fund to reinvest, in (0, 1]")
	exclude := flag.String("exclude", "", "comma-separated symbols barred from buying")
	keep := flag.String("keep", "", "comma-separated symbols removed from planning entirely")
	symbols := flag.String("symbols", "", "comma-separated symbols to liquidate or convert")
	amounts := flag.String("amounts", "", "comma-separated notional caps, parallel to -symbols (leverage only)")
	toCurrency := flag.String("to", "", "settlement currency for liquidation (default: the valuation currency)")
	live := flag.Bool("live", false, "submit real orders instead of a dry run")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	weightList, err := parseWeights(*weights)
	if err != nil {
		logger.Error("invalid -weights", slog.String("error", err.Error()))
		os.Exit(1)
	}
	amountList, err := parseAmounts(*amounts)
	if err != nil {
		logger.Error("invalid -amounts", slog.String("error", err.Error()))
		os.Exit(1)
	}

	req := app.Request{
		Op:         *op,
		Fund:       *fundID,
		TargetFund: *targetFund,
		Weights:    weightList,
		Fraction:   *fraction,
		Exclude:    splitList(*exclude),
		Keep:       splitList(*keep),
		Symbols:    splitList(*symbols),
		Amounts:    amountList,
		ToCurrency: *toCurrency,
		Live:       *live || cfg.Gateway.Live,
	}

	if req.Live {
		logger.Warn("live mode: real orders will be placed")
	}

	logger.Info("fundbot starting",
		slog.String("op", req.Op),
		slog.String("config", *configPath),
	)

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the requested operation.
	if err := application.Run(ctx, req); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("shut down gracefully")
		} else {
			logger.Error("exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("fundbot stopped")
}

// splitList parses a comma-separated flag value into trimmed upper-case
// symbols.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseWeights(s string) ([]float64, error) {
	return parseFloats(s, "weight")
}

func parseAmounts(s string) ([]float64, error) {
	return parseFloats(s, "amount")
}

func parseFloats(s, what string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", what, p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
