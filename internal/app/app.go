// Package app provides the top-level application lifecycle for the index
// fund engine. It wires together all dependencies (exchange client, caches,
// plan journal, fund engine, notifications) and executes the operation
// requested on the command line.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kparichay/indexfund/internal/config"
)

// Request names the operation to run and carries its parameters.
type Request struct {
	// Op is one of "rebalance", "reinvest", "liquidate", "leverage-bull",
	// "leverage-bear", "leverage-liquidate".
	Op string
	// Fund is the fund identifier for rebalance, and the source fund for
	// reinvest.
	Fund string
	// TargetFund is the destination fund for reinvest.
	TargetFund string
	// Weights overrides the fund's declared weights (rebalance, reinvest
	// target), one per component in declaration order.
	Weights []float64
	// Fraction of the source fund's value to reinvest, in (0, 1].
	Fraction float64
	// Exclude bars buying into these symbols.
	Exclude []string
	// Keep removes these symbols from planning entirely.
	Keep []string
	// Symbols restricts liquidation or leverage conversion.
	Symbols []string
	// Amounts caps converted notionals per symbol, parallel to Symbols
	// (leverage only).
	Amounts []float64
	// ToCurrency is the settlement currency for liquidation.
	ToCurrency string
	// Live submits real orders instead of a dry run.
	Live bool
}

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, executes the
// requested operation, and returns. On return the caller should Close the
// app to release resources.
func (a *App) Run(ctx context.Context, req Request) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("op", req.Op),
		slog.Bool("live", req.Live),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, req.Live)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return a.Execute(ctx, deps, req)
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
