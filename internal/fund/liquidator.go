package fund

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kparichay/indexfund/internal/domain"
)

// LiquidateOptions select what to liquidate. The zero value liquidates every
// non-fiat holding into the snapshot's valuation currency.
type LiquidateOptions struct {
	// Symbols restricts liquidation to these holdings. Empty means all
	// non-fiat holdings.
	Symbols []string
	// Keep removes these symbols from planning entirely.
	Keep []string
	// ToCurrency is the settlement currency absorbing the proceeds.
	// Empty means the valuation currency.
	ToCurrency string
}

// Liquidator drives selected holdings' target values to zero against a
// settlement currency.
type Liquidator struct {
	snapshots *Snapshotter
	planner   *Planner
	logger    *slog.Logger
}

// NewLiquidator wires a Liquidator from its collaborators.
func NewLiquidator(snapshots *Snapshotter, planner *Planner, logger *slog.Logger) *Liquidator {
	return &Liquidator{
		snapshots: snapshots,
		planner:   planner,
		logger:    logger.With(slog.String("component", "liquidator")),
	}
}

// Liquidate plans the sale of the selected holdings into the settlement
// currency. It fails with domain.ErrNoLiquidAssets when nothing in the
// account matches the selection.
func (l *Liquidator) Liquidate(ctx context.Context, opts LiquidateOptions) (domain.OrderPlan, error) {
	snap, err := l.snapshots.Take(ctx)
	if err != nil {
		return domain.OrderPlan{}, err
	}

	toCurrency := opts.ToCurrency
	if toCurrency == "" {
		toCurrency = snap.Currency
	}

	if len(opts.Symbols) > 0 {
		snap = snap.Restrict(append(opts.Symbols, toCurrency))
	} else {
		// Default selection: every non-fiat holding.
		var selected []string
		for sym, h := range snap.Holdings {
			if sym == toCurrency || !h.Asset.Fiat {
				selected = append(selected, sym)
			}
		}
		snap = snap.Restrict(selected)
	}
	snap = snap.Without(opts.Keep)

	plan, err := l.planLiquidation(ctx, snap, toCurrency, domain.OpLiquidate, "")
	if err != nil {
		return domain.OrderPlan{}, err
	}

	l.logger.InfoContext(ctx, "liquidation planned",
		slog.String("to", toCurrency),
		slog.Int("orders", len(plan.Orders)),
		slog.Float64("turnover", plan.Turnover()),
	)
	return plan, nil
}

// planLiquidation builds the plan that zeroes every holding of snap except
// the settlement currency, which absorbs the total. Shared with the
// Reinvestor's first phase.
func (l *Liquidator) planLiquidation(ctx context.Context, snap domain.PortfolioSnapshot, toCurrency string, op domain.Operation, fundID string) (domain.OrderPlan, error) {
	target := make(domain.TargetAllocation)
	current := make(map[string]float64)
	var absorbed float64
	var liquid int
	for sym, h := range snap.Holdings {
		current[sym] = h.Value
		if sym == toCurrency {
			continue
		}
		target[sym] = 0
		absorbed += h.Value
		liquid++
	}
	if liquid == 0 || absorbed == 0 {
		return domain.OrderPlan{}, fmt.Errorf("liquidate to %s: %w", toCurrency, domain.ErrNoLiquidAssets)
	}
	target[toCurrency] = snap.Holding(toCurrency).Value + absorbed

	return l.planner.Plan(ctx, PlanRequest{
		Op:       op,
		FundID:   fundID,
		Currency: snap.Currency,
		Current:  current,
		Target:   target,
	})
}
