// Package fund implements the rebalancing and allocation engine: given a
// fund definition, a portfolio snapshot, and current prices, it computes the
// order plan that moves the portfolio to its target composition. Every entry
// point is a pure function of its inputs plus the injected capability
// interfaces; nothing here mutates shared state or talks to the exchange.
package fund

import (
	"fmt"
	"math"

	"github.com/kparichay/indexfund/internal/domain"
)

// AllocatorConfig holds the allocation thresholds. Zero values fall back to
// the package defaults.
type AllocatorConfig struct {
	// Tolerance is the relative drift from target value below which an
	// asset is left untouched.
	Tolerance float64
	// MinValue is the smallest deployable portfolio value worth acting on.
	MinValue float64
}

// Conservative defaults; both are configurable, not contractual.
const (
	DefaultTolerance = 0.02
	DefaultMinValue  = 20.0
)

func (c AllocatorConfig) withDefaults() AllocatorConfig {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.MinValue <= 0 {
		c.MinValue = DefaultMinValue
	}
	return c
}

// Allocator turns (fund, snapshot) into target values per asset.
type Allocator struct {
	cfg AllocatorConfig
}

// NewAllocator creates an Allocator with the given thresholds.
func NewAllocator(cfg AllocatorConfig) *Allocator {
	return &Allocator{cfg: cfg.withDefaults()}
}

// Allocate computes the target value per asset for moving snapshot toward
// fund. The deployable value is the full snapshot value: existing fund
// holdings count at market value and fiat/stablecoin balances count as
// capital. Held assets absent from the fund get target 0 unless listed in
// ignore. Assets already within the tolerance band keep their current value
// so rounding noise does not churn into trades.
//
// It fails with domain.ErrInvalidFund when the fund weights do not sum to 1,
// and domain.ErrInsufficientValue when the deployable value is below the
// configured minimum.
func (a *Allocator) Allocate(f domain.Fund, snap domain.PortfolioSnapshot, ignore []string) (domain.TargetAllocation, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ignored := make(map[string]bool, len(ignore))
	for _, sym := range ignore {
		ignored[sym] = true
	}

	var deployable float64
	for sym, h := range snap.Holdings {
		if !ignored[sym] {
			deployable += h.Value
		}
	}
	if deployable < a.cfg.MinValue {
		return nil, fmt.Errorf("allocate %s: deployable value %.2f %s below minimum %.2f: %w",
			f.ID, deployable, snap.Currency, a.cfg.MinValue, domain.ErrInsufficientValue)
	}

	target := make(domain.TargetAllocation, len(f.Components)+len(snap.Holdings))
	for _, c := range f.Components {
		if ignored[c.Asset.Symbol] {
			continue
		}
		want := c.Weight * deployable
		current := snap.Holding(c.Asset.Symbol).Value
		if withinBand(current, want, a.cfg.Tolerance) {
			want = current
		}
		target[c.Asset.Symbol] = want
	}

	// Everything held but not in the fund is driven to zero.
	for sym := range snap.Holdings {
		if ignored[sym] || f.Contains(sym) {
			continue
		}
		target[sym] = 0
	}

	return target, nil
}

// withinBand reports whether current lies within tol (relative) of want.
func withinBand(current, want, tol float64) bool {
	if want == 0 {
		return current == 0
	}
	return math.Abs(current-want)/want <= tol
}
