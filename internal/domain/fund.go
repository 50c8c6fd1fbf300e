package domain

import (
	"fmt"
	"math"
)

// WeightEpsilon is the allowed deviation of a fund's weight sum from 1.0.
const WeightEpsilon = 1e-6

// Component is one (asset, weight) entry of a fund.
type Component struct {
	Asset  Asset
	Weight float64
}

// Fund is a named, weighted basket of assets defining a target portfolio
// composition. Funds are immutable once resolved: re-resolving a fund ID
// yields a new instance, never an in-place update.
type Fund struct {
	ID         string
	Components []Component
}

// NewEqualWeightFund builds a fund where every asset carries weight 1/n.
func NewEqualWeightFund(id string, assets []Asset) Fund {
	comps := make([]Component, 0, len(assets))
	if len(assets) == 0 {
		return Fund{ID: id}
	}
	w := 1.0 / float64(len(assets))
	for _, a := range assets {
		comps = append(comps, Component{Asset: a, Weight: w})
	}
	return Fund{ID: id, Components: comps}
}

// NewWeightedFund builds a fund with explicit weights, normalizing them to
// sum to 1. It returns ErrInvalidFund when lengths mismatch or any weight is
// negative or the sum is zero.
func NewWeightedFund(id string, assets []Asset, weights []float64) (Fund, error) {
	if len(assets) != len(weights) {
		return Fund{}, fmt.Errorf("fund %s: %d assets but %d weights: %w",
			id, len(assets), len(weights), ErrInvalidFund)
	}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return Fund{}, fmt.Errorf("fund %s: negative weight %v: %w", id, w, ErrInvalidFund)
		}
		sum += w
	}
	if sum == 0 {
		return Fund{}, fmt.Errorf("fund %s: weights sum to zero: %w", id, ErrInvalidFund)
	}
	comps := make([]Component, 0, len(assets))
	for i, a := range assets {
		comps = append(comps, Component{Asset: a, Weight: weights[i] / sum})
	}
	return Fund{ID: id, Components: comps}, nil
}

// Validate checks the fund invariant: non-negative weights summing to
// 1 ± WeightEpsilon, with no duplicate symbols.
func (f Fund) Validate() error {
	if len(f.Components) == 0 {
		return fmt.Errorf("fund %s: no components: %w", f.ID, ErrInvalidFund)
	}
	seen := make(map[string]bool, len(f.Components))
	var sum float64
	for _, c := range f.Components {
		if c.Weight < 0 {
			return fmt.Errorf("fund %s: negative weight %v for %s: %w",
				f.ID, c.Weight, c.Asset.Symbol, ErrInvalidFund)
		}
		if seen[c.Asset.Symbol] {
			return fmt.Errorf("fund %s: duplicate component %s: %w",
				f.ID, c.Asset.Symbol, ErrInvalidFund)
		}
		seen[c.Asset.Symbol] = true
		sum += c.Weight
	}
	if math.Abs(sum-1.0) > WeightEpsilon {
		return fmt.Errorf("fund %s: weights sum to %v, want 1: %w", f.ID, sum, ErrInvalidFund)
	}
	return nil
}

// Weight returns the target weight for symbol, or 0 when the fund does not
// contain it.
func (f Fund) Weight(symbol string) float64 {
	for _, c := range f.Components {
		if c.Asset.Symbol == symbol {
			return c.Weight
		}
	}
	return 0
}

// Contains reports whether the fund has a component for symbol.
func (f Fund) Contains(symbol string) bool {
	for _, c := range f.Components {
		if c.Asset.Symbol == symbol {
			return true
		}
	}
	return false
}

// Symbols returns the fund's component symbols in declaration order.
func (f Fund) Symbols() []string {
	out := make([]string, 0, len(f.Components))
	for _, c := range f.Components {
		out = append(out, c.Asset.Symbol)
	}
	return out
}

// WithWeights returns a new fund with the same assets and caller-supplied
// weights (normalized). The receiver is not modified.
func (f Fund) WithWeights(weights []float64) (Fund, error) {
	assets := make([]Asset, 0, len(f.Components))
	for _, c := range f.Components {
		assets = append(assets, c.Asset)
	}
	return NewWeightedFund(f.ID, assets, weights)
}

// TargetAllocation maps asset symbols to target values in the valuation
// currency. The sum of targets equals the value being allocated, modulo the
// fee reserve taken by the planner.
type TargetAllocation map[string]float64

// Total returns the sum of all target values.
func (t TargetAllocation) Total() float64 {
	var sum float64
	for _, v := range t {
		sum += v
	}
	return sum
}
