package fund

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kparichay/indexfund/internal/domain"
)

// RebalanceOptions tune a single rebalance call. The zero value rebalances
// the whole account toward the fund's declared weights.
type RebalanceOptions struct {
	// Weights overrides the fund's declared weights, one per component in
	// declaration order. Normalized, must be non-negative.
	Weights []float64
	// Exclude bars buying into these symbols; existing holdings in them
	// are still liquidated.
	Exclude []string
	// Keep removes these symbols from planning entirely: not bought, not
	// sold, not counted as deployable capital.
	Keep []string
}

// Rebalancer orchestrates catalog resolution, snapshotting, allocation, and
// planning for the rebalance operation. Rebalancing twice with no execution
// and unchanged prices yields the same plan; rebalancing after full
// execution yields an empty one.
type Rebalancer struct {
	catalog   domain.FundCatalog
	snapshots *Snapshotter
	allocator *Allocator
	planner   *Planner
	logger    *slog.Logger
}

// NewRebalancer wires a Rebalancer from its collaborators.
func NewRebalancer(catalog domain.FundCatalog, snapshots *Snapshotter, allocator *Allocator, planner *Planner, logger *slog.Logger) *Rebalancer {
	return &Rebalancer{
		catalog:   catalog,
		snapshots: snapshots,
		allocator: allocator,
		planner:   planner,
		logger:    logger.With(slog.String("component", "rebalancer")),
	}
}

// Rebalance computes the order plan that moves the account to fundID's
// target composition.
func (r *Rebalancer) Rebalance(ctx context.Context, fundID string, opts RebalanceOptions) (domain.OrderPlan, error) {
	f, err := r.resolveFund(ctx, fundID, opts)
	if err != nil {
		return domain.OrderPlan{}, err
	}

	snap, err := r.snapshots.Take(ctx)
	if err != nil {
		return domain.OrderPlan{}, err
	}
	snap = snap.Without(opts.Keep)

	target, err := r.allocator.Allocate(f, snap, nil)
	if err != nil {
		return domain.OrderPlan{}, err
	}

	plan, err := r.planner.Plan(ctx, PlanRequest{
		Op:       domain.OpRebalance,
		FundID:   f.ID,
		Currency: snap.Currency,
		Current:  valueMap(snap),
		Target:   target,
	})
	if err != nil {
		return domain.OrderPlan{}, err
	}

	r.logger.InfoContext(ctx, "rebalance planned",
		slog.String("fund", f.ID),
		slog.Int("orders", len(plan.Orders)),
		slog.Int("skipped", len(plan.Skipped)),
		slog.Float64("turnover", plan.Turnover()),
	)
	return plan, nil
}

// resolveFund resolves fundID, applies the weight override, and strips
// excluded components with renormalization.
func (r *Rebalancer) resolveFund(ctx context.Context, fundID string, opts RebalanceOptions) (domain.Fund, error) {
	f, err := r.catalog.Resolve(ctx, fundID)
	if err != nil {
		return domain.Fund{}, err
	}
	if len(opts.Weights) > 0 {
		f, err = f.WithWeights(opts.Weights)
		if err != nil {
			return domain.Fund{}, err
		}
	}
	if len(opts.Exclude) > 0 {
		f, err = excludeComponents(f, opts.Exclude)
		if err != nil {
			return domain.Fund{}, err
		}
	}
	if err := f.Validate(); err != nil {
		return domain.Fund{}, err
	}
	return f, nil
}

// excludeComponents strips the listed symbols from the fund and renormalizes
// the remaining weights.
func excludeComponents(f domain.Fund, exclude []string) (domain.Fund, error) {
	drop := make(map[string]bool, len(exclude))
	for _, sym := range exclude {
		drop[sym] = true
	}
	var assets []domain.Asset
	var weights []float64
	for _, c := range f.Components {
		if drop[c.Asset.Symbol] {
			continue
		}
		assets = append(assets, c.Asset)
		weights = append(weights, c.Weight)
	}
	if len(assets) == 0 {
		return domain.Fund{}, fmt.Errorf("fund %s: every component excluded: %w", f.ID, domain.ErrInvalidFund)
	}
	return domain.NewWeightedFund(f.ID, assets, weights)
}

// valueMap projects a snapshot to symbol -> value in its valuation currency.
func valueMap(snap domain.PortfolioSnapshot) map[string]float64 {
	out := make(map[string]float64, len(snap.Holdings))
	for sym, h := range snap.Holdings {
		out[sym] = h.Value
	}
	return out
}
