package fund

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kparichay/indexfund/internal/domain"
)

// Reinvestor liquidates the holdings attributable to one fund and redeploys
// the proceeds into another. It composes the Liquidator and the allocation
// pipeline rather than duplicating either.
type Reinvestor struct {
	catalog    domain.FundCatalog
	snapshots  *Snapshotter
	allocator  *Allocator
	planner    *Planner
	liquidator *Liquidator
	logger     *slog.Logger
}

// NewReinvestor wires a Reinvestor from its collaborators.
func NewReinvestor(catalog domain.FundCatalog, snapshots *Snapshotter, allocator *Allocator, planner *Planner, liquidator *Liquidator, logger *slog.Logger) *Reinvestor {
	return &Reinvestor{
		catalog:    catalog,
		snapshots:  snapshots,
		allocator:  allocator,
		planner:    planner,
		liquidator: liquidator,
		logger:     logger.With(slog.String("component", "reinvestor")),
	}
}

// Reinvest plans the liquidation of fraction of the sourceFundID
// sub-portfolio followed by allocation of the realized value into
// targetFundID. The two phases are sequenced, not interleaved: allocation
// targets are computed from the value the liquidation phase realizes, and
// the combined plan keeps every sell ahead of every buy.
func (r *Reinvestor) Reinvest(ctx context.Context, sourceFundID, targetFundID string, fraction float64, opts RebalanceOptions) (domain.OrderPlan, error) {
	if fraction <= 0 || fraction > 1 {
		return domain.OrderPlan{}, fmt.Errorf("reinvest: fraction %v outside (0, 1]", fraction)
	}

	source, err := r.catalog.Resolve(ctx, sourceFundID)
	if err != nil {
		return domain.OrderPlan{}, err
	}
	target, err := r.catalog.Resolve(ctx, targetFundID)
	if err != nil {
		return domain.OrderPlan{}, err
	}
	if len(opts.Weights) > 0 {
		target, err = target.WithWeights(opts.Weights)
		if err != nil {
			return domain.OrderPlan{}, err
		}
	}
	if len(opts.Exclude) > 0 {
		target, err = excludeComponents(target, opts.Exclude)
		if err != nil {
			return domain.OrderPlan{}, err
		}
	}

	snap, err := r.snapshots.Take(ctx)
	if err != nil {
		return domain.OrderPlan{}, err
	}
	snap = snap.Without(opts.Keep)

	// Phase 1: liquidate the source sub-portfolio to the valuation
	// currency.
	sub := snap.Restrict(source.Symbols()).Scale(fraction)
	sellPlan, err := r.liquidator.planLiquidation(ctx, sub, snap.Currency, domain.OpReinvest, targetFundID)
	if err != nil {
		return domain.OrderPlan{}, fmt.Errorf("reinvest from %s: %w", sourceFundID, err)
	}

	// Phase 2: the liquidation is treated as settled; its planned proceeds
	// become the deployable capital for the target fund. The idle settlement
	// balance is not part of the source position and stays untouched.
	var realized float64
	for _, o := range sellPlan.Sells() {
		realized += o.Notional
	}
	settled := domain.PortfolioSnapshot{
		Holdings: map[string]domain.Holding{
			snap.Currency: {
				Asset:    domain.Asset{Symbol: snap.Currency, Quote: snap.Currency, Fiat: true},
				Quantity: realized,
				Value:    realized,
			},
		},
		Currency: snap.Currency,
		TakenAt:  time.Now().UTC(),
	}

	alloc, err := r.allocator.Allocate(target, settled, nil)
	if err != nil {
		return domain.OrderPlan{}, err
	}
	buyPlan, err := r.planner.Plan(ctx, PlanRequest{
		Op:       domain.OpReinvest,
		FundID:   target.ID,
		Currency: snap.Currency,
		Current:  valueMap(settled),
		Target:   alloc,
	})
	if err != nil {
		return domain.OrderPlan{}, err
	}

	plan := mergePlans(sellPlan, buyPlan)
	r.logger.InfoContext(ctx, "reinvest planned",
		slog.String("source", sourceFundID),
		slog.String("target", target.ID),
		slog.Float64("fraction", fraction),
		slog.Float64("realized", realized),
		slog.Int("orders", len(plan.Orders)),
	)
	return plan, nil
}

// mergePlans concatenates a sell-phase plan and a buy-phase plan into one,
// preserving the sells-before-buys ordering invariant.
func mergePlans(sells, buys domain.OrderPlan) domain.OrderPlan {
	out := sells
	out.ID = buys.ID
	out.FundID = buys.FundID
	out.Orders = append(append([]domain.Order{}, sells.Orders...), buys.Orders...)
	out.Skipped = append(append([]domain.SkippedOrder{}, sells.Skipped...), buys.Skipped...)
	out.Warnings = append(append([]string{}, sells.Warnings...), buys.Warnings...)
	return out
}
