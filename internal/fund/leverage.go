package fund

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kparichay/indexfund/internal/domain"
)

// LeverageOptions select which spot holdings to convert and how much of
// each. The zero value converts every holding with a listed leveraged token,
// at its full value.
type LeverageOptions struct {
	// Symbols restricts the conversion to these spot holdings.
	Symbols []string
	// Amounts caps the converted notional per symbol, parallel to Symbols.
	// Amounts beyond the held value fail rather than overdraw.
	Amounts []float64
}

// LeverageManager maps spot holdings to equivalent leveraged-token positions
// and back, preserving notional value at the moment of conversion. Slippage
// between planning and execution is bounded by the gateway's fill report,
// which callers may check against a fresh snapshot.
type LeverageManager struct {
	account   domain.AccountReader
	tokens    domain.LeverageDirectory
	snapshots *Snapshotter
	planner   *Planner
	logger    *slog.Logger
}

// NewLeverageManager wires a LeverageManager from its collaborators.
func NewLeverageManager(account domain.AccountReader, tokens domain.LeverageDirectory, snapshots *Snapshotter, planner *Planner, logger *slog.Logger) *LeverageManager {
	return &LeverageManager{
		account:   account,
		tokens:    tokens,
		snapshots: snapshots,
		planner:   planner,
		logger:    logger.With(slog.String("component", "leverage")),
	}
}

// Bull converts the selected spot holdings to their bull leveraged tokens.
func (m *LeverageManager) Bull(ctx context.Context, opts LeverageOptions) (domain.OrderPlan, []domain.LeveragedPosition, error) {
	return m.convert(ctx, domain.LeverageBull, opts)
}

// Bear converts the selected spot holdings to their bear leveraged tokens.
func (m *LeverageManager) Bear(ctx context.Context, opts LeverageOptions) (domain.OrderPlan, []domain.LeveragedPosition, error) {
	return m.convert(ctx, domain.LeverageBear, opts)
}

func (m *LeverageManager) convert(ctx context.Context, side domain.LeverageSide, opts LeverageOptions) (domain.OrderPlan, []domain.LeveragedPosition, error) {
	if err := m.checkEligibility(ctx); err != nil {
		return domain.OrderPlan{}, nil, err
	}
	if len(opts.Amounts) > 0 && len(opts.Amounts) != len(opts.Symbols) {
		return domain.OrderPlan{}, nil, fmt.Errorf("leverage: %d symbols but %d amounts",
			len(opts.Symbols), len(opts.Amounts))
	}

	snap, err := m.snapshots.Take(ctx)
	if err != nil {
		return domain.OrderPlan{}, nil, err
	}
	budget := snap.Holding(snap.Currency).Value
	requested := make(map[string]bool, len(opts.Symbols))
	for _, sym := range opts.Symbols {
		requested[sym] = true
	}
	if len(opts.Symbols) > 0 {
		snap = snap.Restrict(opts.Symbols)
	}
	caps := make(map[string]float64, len(opts.Amounts))
	for i, amount := range opts.Amounts {
		caps[opts.Symbols[i]] = amount
	}

	op := domain.OpLeverageBull
	lookup := m.tokens.BullToken
	if side == domain.LeverageBear {
		op = domain.OpLeverageBear
		lookup = m.tokens.BearToken
	}

	current := make(map[string]float64)
	target := make(domain.TargetAllocation)
	var positions []domain.LeveragedPosition
	var warnings []string
	for _, sym := range sortedSymbols(snap) {
		h := snap.Holding(sym)
		if _, _, isToken := m.tokens.Underlying(sym); isToken || h.Asset.Fiat {
			// Already leveraged, or capital rather than exposure. Silent
			// unless the caller asked for this symbol by name.
			if requested[sym] {
				kind := "already a leveraged token"
				if h.Asset.Fiat {
					kind = "a fiat balance"
				}
				warnings = append(warnings, fmt.Sprintf("%s is %s, not converted", sym, kind))
			}
			continue
		}
		token, ok := lookup(sym)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s has no listed %s token, not converted", sym, side))
			continue
		}
		notional := h.Value
		if limit, capped := caps[sym]; capped {
			if limit > h.Value {
				return domain.OrderPlan{}, nil, fmt.Errorf(
					"leverage %s: requested %.2f exceeds held value %.2f", sym, limit, h.Value)
			}
			notional = limit
		}
		current[sym] = h.Value
		target[sym] = h.Value - notional
		target[token] = notional
		positions = append(positions, domain.LeveragedPosition{
			Underlying: h.Asset,
			Token:      token,
			Side:       side,
			Notional:   notional,
		})
	}
	if len(positions) == 0 {
		return domain.OrderPlan{}, nil, fmt.Errorf("leverage %s: no convertible holdings: %w",
			side, domain.ErrNoLiquidAssets)
	}

	plan, err := m.planner.Plan(ctx, PlanRequest{
		Op:       op,
		Currency: snap.Currency,
		Current:  current,
		Target:   target,
		Budget:   budget,
	})
	if err != nil {
		return domain.OrderPlan{}, nil, err
	}
	plan.Warnings = append(plan.Warnings, warnings...)

	m.logger.InfoContext(ctx, "leverage conversion planned",
		slog.String("side", string(side)),
		slog.Int("positions", len(positions)),
		slog.Int("orders", len(plan.Orders)),
	)
	return plan, positions, nil
}

// Liquidate converts every held leveraged token back to its underlying spot
// asset at the current ratio.
func (m *LeverageManager) Liquidate(ctx context.Context) (domain.OrderPlan, error) {
	snap, err := m.snapshots.Take(ctx)
	if err != nil {
		return domain.OrderPlan{}, err
	}

	current := make(map[string]float64)
	target := make(domain.TargetAllocation)
	var converted int
	for _, sym := range sortedSymbols(snap) {
		h := snap.Holding(sym)
		underlying, _, ok := m.tokens.Underlying(sym)
		if !ok {
			continue
		}
		current[sym] = h.Value
		if _, seen := current[underlying]; !seen {
			current[underlying] = snap.Holding(underlying).Value
			target[underlying] = snap.Holding(underlying).Value
		}
		target[sym] = 0
		target[underlying] += h.Value
		converted++
	}
	if converted == 0 {
		return domain.OrderPlan{}, fmt.Errorf("leverage liquidate: no leveraged tokens held: %w",
			domain.ErrNoLiquidAssets)
	}

	plan, err := m.planner.Plan(ctx, PlanRequest{
		Op:       domain.OpLeverageLiquidate,
		Currency: snap.Currency,
		Current:  current,
		Target:   target,
		Budget:   snap.Holding(snap.Currency).Value,
	})
	if err != nil {
		return domain.OrderPlan{}, err
	}

	m.logger.InfoContext(ctx, "leverage liquidation planned",
		slog.Int("tokens", converted),
		slog.Int("orders", len(plan.Orders)),
	)
	return plan, nil
}

func (m *LeverageManager) checkEligibility(ctx context.Context) error {
	ok, err := m.account.LeverageEligible(ctx)
	if err != nil {
		return fmt.Errorf("leverage: eligibility check: %w", err)
	}
	if !ok {
		return domain.ErrLeverageNotEligible
	}
	return nil
}

func sortedSymbols(snap domain.PortfolioSnapshot) []string {
	syms := snap.Symbols()
	sort.Strings(syms)
	return syms
}
