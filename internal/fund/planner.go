package fund

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kparichay/indexfund/internal/domain"
)

// DefaultFeeRate is the taker fee shaved off every order notional so a plan
// never commits funds the fees will eat.
const DefaultFeeRate = 0.001

// deltaEpsilon is the value below which a delta is treated as zero.
const deltaEpsilon = 1e-9

// PlannerConfig holds the sizing parameters for order planning.
type PlannerConfig struct {
	// FeeRate is the taker fee fraction. Zero falls back to DefaultFeeRate;
	// use a negative value to plan with no fee haircut.
	FeeRate float64
	// BaseCurrencies are the settlement candidates in preference order.
	// The planner routes every order of a plan through the first base that
	// has a listed pair for all traded assets.
	BaseCurrencies []string
}

func (c PlannerConfig) withDefaults() PlannerConfig {
	if c.FeeRate == 0 {
		c.FeeRate = DefaultFeeRate
	}
	if c.FeeRate < 0 {
		c.FeeRate = 0
	}
	if len(c.BaseCurrencies) == 0 {
		c.BaseCurrencies = []string{"USDT", "BTC", "BNB"}
	}
	return c
}

// PlanRequest carries the inputs of one planning round. Current and Target
// are values per symbol in Currency. Symbols present in Current but absent
// from Target are left untouched.
type PlanRequest struct {
	Op       domain.Operation
	FundID   string
	Currency string
	Current  map[string]float64
	Target   domain.TargetAllocation
	// Budget is settlement-currency value already held and spendable on buys
	// in addition to sell proceeds. Callers that encode the settlement
	// balance as a Current/Target delta leave it zero.
	Budget float64
}

// Planner converts value deltas into an executable, minimal order sequence
// respecting the exchange's pair, lot, and notional constraints. Plan is
// deterministic: identical inputs produce identical plans, and sells always
// precede buys.
type Planner struct {
	pairs  domain.PairDirectory
	oracle domain.PriceOracle
	cfg    PlannerConfig
}

// NewPlanner creates a Planner sizing orders against the given pair
// directory and price oracle.
func NewPlanner(pairs domain.PairDirectory, oracle domain.PriceOracle, cfg PlannerConfig) *Planner {
	return &Planner{pairs: pairs, oracle: oracle, cfg: cfg.withDefaults()}
}

// Plan computes the order plan realizing req.Target from req.Current.
//
// Orders are routed through a single base currency; assets with no listed
// pair against any candidate base are skipped and reported. Deltas below the
// pair's minimum notional or minimum quantity go to the skip list. When
// total buys would exceed sell proceeds plus settlement funds already held,
// buys are scaled down proportionally and a warning is attached.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (domain.OrderPlan, error) {
	plan := domain.OrderPlan{
		ID:        uuid.New().String(),
		Op:        req.Op,
		FundID:    req.FundID,
		Currency:  req.Currency,
		CreatedAt: time.Now().UTC(),
	}

	type delta struct {
		symbol string
		value  float64 // positive: buy, negative: sell
	}
	var deltas []delta
	for sym, want := range req.Target {
		d := want - req.Current[sym]
		if math.Abs(d) < deltaEpsilon {
			continue
		}
		deltas = append(deltas, delta{symbol: sym, value: d})
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].symbol < deltas[j].symbol })
	if len(deltas) == 0 {
		return plan, nil
	}

	traded := make([]string, 0, len(deltas))
	for _, d := range deltas {
		traded = append(traded, d.symbol)
	}
	base, unroutable := p.chooseBase(req.Currency, traded)
	for _, sym := range unroutable {
		plan.Warnings = append(plan.Warnings,
			fmt.Sprintf("%s has no trading pair against any base currency, not traded", sym))
	}
	skip := make(map[string]bool, len(unroutable))
	for _, sym := range unroutable {
		skip[sym] = true
	}

	basePrice := 1.0
	if base != req.Currency {
		bp, err := p.oracle.Price(ctx, base, req.Currency)
		if err != nil {
			return domain.OrderPlan{}, fmt.Errorf("plan: price %s/%s: %w", base, req.Currency, err)
		}
		basePrice = bp
	}

	// First pass: sells. Holdings already denominated in the base currency
	// need no trade; their value joins the settlement budget, seeded with
	// whatever the caller reports as already held.
	proceeds := req.Budget
	var buyTotal float64
	var buys []delta
	for _, d := range deltas {
		switch {
		case d.value > 0:
			if d.symbol == base {
				continue // settlement currency accrues from the sells
			}
			if skip[d.symbol] {
				plan.Skipped = append(plan.Skipped, domain.SkippedOrder{
					Symbol: d.symbol, Side: domain.OrderSideBuy,
					Notional: d.value, Reason: domain.SkipNoTradablePair,
				})
				continue
			}
			buys = append(buys, d)
			buyTotal += d.value
		default:
			amount := -d.value
			if d.symbol == base {
				proceeds += amount
				continue
			}
			if skip[d.symbol] {
				plan.Skipped = append(plan.Skipped, domain.SkippedOrder{
					Symbol: d.symbol, Side: domain.OrderSideSell,
					Notional: amount, Reason: domain.SkipNoTradablePair,
				})
				continue
			}
			order, skipped, err := p.sizeOrder(ctx, d.symbol, domain.OrderSideSell, amount, base, basePrice, req)
			if err != nil {
				return domain.OrderPlan{}, err
			}
			if skipped != nil {
				plan.Skipped = append(plan.Skipped, *skipped)
				continue
			}
			plan.Orders = append(plan.Orders, order)
			proceeds += order.Notional
		}
	}

	// Never over-commit: scale buys down to the funds the sells free up.
	scale := 1.0
	if buyTotal > proceeds {
		if proceeds <= 0 {
			scale = 0
		} else {
			scale = proceeds / buyTotal
		}
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"buy total %.2f %s exceeds settlement funds %.2f %s, scaling buys by %.4f",
			buyTotal, req.Currency, proceeds, req.Currency, scale))
	}

	for _, d := range buys {
		notional := d.value * scale
		order, skipped, err := p.sizeOrder(ctx, d.symbol, domain.OrderSideBuy, notional, base, basePrice, req)
		if err != nil {
			return domain.OrderPlan{}, err
		}
		if skipped != nil {
			plan.Skipped = append(plan.Skipped, *skipped)
			continue
		}
		plan.Orders = append(plan.Orders, order)
	}

	return plan, nil
}

// chooseBase picks the first configured base currency that has a listed pair
// for every traded symbol. When none covers everything it falls back to the
// base covering the most symbols and returns the uncovered remainder.
func (p *Planner) chooseBase(currency string, symbols []string) (base string, unroutable []string) {
	bestBase := p.cfg.BaseCurrencies[0]
	bestMissing := symbols
	for _, cand := range p.cfg.BaseCurrencies {
		var missing []string
		for _, sym := range symbols {
			if sym == cand || sym == currency {
				continue
			}
			if _, ok := p.pairs.PairName(sym, cand); !ok {
				missing = append(missing, sym)
			}
		}
		if len(missing) == 0 {
			return cand, nil
		}
		if len(missing) < len(bestMissing) {
			bestBase, bestMissing = cand, missing
		}
	}
	return bestBase, bestMissing
}

// sizeOrder converts a value delta into a quantity order on the pair
// (symbol, base), applying the fee haircut, the pair's minimum notional and
// quantity, and lot-step quantization (always rounding down).
func (p *Planner) sizeOrder(
	ctx context.Context,
	symbol string,
	side domain.OrderSide,
	notional float64,
	base string,
	basePrice float64,
	req PlanRequest,
) (domain.Order, *domain.SkippedOrder, error) {
	net := notional * (1 - p.cfg.FeeRate)
	baseAmount := net / basePrice

	pair, ok := p.pairs.PairName(symbol, base)
	if !ok {
		return domain.Order{}, &domain.SkippedOrder{
			Symbol: symbol, Side: side, Notional: notional,
			Reason: domain.SkipNoTradablePair,
		}, nil
	}
	filter, err := p.pairs.Filter(ctx, symbol, base)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("plan: filter %s: %w", pair, err)
	}
	if baseAmount < filter.MinNotional {
		return domain.Order{}, &domain.SkippedOrder{
			Symbol: symbol, Side: side, Notional: notional,
			Reason: domain.SkipBelowMinNotional,
		}, nil
	}

	price, err := p.oracle.Price(ctx, symbol, base)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("plan: price %s/%s: %w", symbol, base, err)
	}
	qty := quantizeDown(baseAmount/price, filter.StepSize)
	if qty <= 0 || qty < filter.MinQuantity {
		return domain.Order{}, &domain.SkippedOrder{
			Symbol: symbol, Side: side, Notional: notional,
			Reason: domain.SkipBelowMinQuantity,
		}, nil
	}

	return domain.Order{
		ID:       uuid.New().String(),
		Symbol:   symbol,
		Base:     base,
		Pair:     pair,
		Side:     side,
		Quantity: qty,
		Notional: net,
		FundID:   req.FundID,
		Op:       req.Op,
	}, nil, nil
}

// quantizeDown floors qty to the lot step granularity.
func quantizeDown(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	q := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	return q.Div(s).Floor().Mul(s).InexactFloat64()
}
