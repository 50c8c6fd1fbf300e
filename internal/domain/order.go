package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Operation names the fund operation that produced an order plan.
type Operation string

const (
	OpRebalance         Operation = "rebalance"
	OpReinvest          Operation = "reinvest"
	OpLiquidate         Operation = "liquidate"
	OpLeverageBull      Operation = "leverage_bull"
	OpLeverageBear      Operation = "leverage_bear"
	OpLeverageLiquidate Operation = "leverage_liquidate"
)

// Order is an immutable market-order instruction. Pair is the exchange
// trading pair (asset symbol + base symbol); Quantity is expressed in units
// of the asset and already respects the pair's lot step, Notional is the
// order value in the plan's valuation currency.
type Order struct {
	ID       string
	Symbol   string // asset being bought or sold, e.g. "BTC"
	Base     string // settlement currency of the pair, e.g. "USDT"
	Pair     string // exchange pair, e.g. "BTCUSDT"
	Side     OrderSide
	Quantity float64
	Notional float64
	FundID   string    // fund the order serves, empty for liquidations
	Op       Operation // operation provenance
}

// SkipReason explains why an order could not be planned.
type SkipReason string

const (
	SkipBelowMinNotional SkipReason = "below_min_notional"
	SkipBelowMinQuantity SkipReason = "below_min_quantity"
	SkipNoTradablePair   SkipReason = "no_tradable_pair"
	SkipWithinTolerance  SkipReason = "within_tolerance"
)

// SkippedOrder records a delta the planner dropped, and why. Skips are
// reported alongside the executable orders, never silently discarded.
type SkippedOrder struct {
	Symbol   string
	Side     OrderSide
	Notional float64
	Reason   SkipReason
}

// OrderPlan is an ordered sequence of orders. All sells precede all buys so
// that settlement currency freed by the sells funds the buys.
type OrderPlan struct {
	ID        string
	Op        Operation
	FundID    string
	Currency  string // valuation currency for all notionals
	Orders    []Order
	Skipped   []SkippedOrder
	Warnings  []string
	CreatedAt time.Time
}

// Empty reports whether the plan has no executable orders.
func (p OrderPlan) Empty() bool {
	return len(p.Orders) == 0
}

// Sells returns the sell orders of the plan in sequence order.
func (p OrderPlan) Sells() []Order {
	var out []Order
	for _, o := range p.Orders {
		if o.Side == OrderSideSell {
			out = append(out, o)
		}
	}
	return out
}

// Buys returns the buy orders of the plan in sequence order.
func (p OrderPlan) Buys() []Order {
	var out []Order
	for _, o := range p.Orders {
		if o.Side == OrderSideBuy {
			out = append(out, o)
		}
	}
	return out
}

// Turnover returns the total notional the plan moves (sells plus buys).
func (p OrderPlan) Turnover() float64 {
	var sum float64
	for _, o := range p.Orders {
		sum += o.Notional
	}
	return sum
}

// Summary renders a short human-readable description of the plan: order
// counts, turnover, skipped deltas, and warnings.
func (p OrderPlan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s plan %s: %d sells, %d buys, turnover %.2f %s",
		p.Op, p.ID, len(p.Sells()), len(p.Buys()), p.Turnover(), p.Currency)
	if p.FundID != "" {
		fmt.Fprintf(&b, ", fund %s", p.FundID)
	}
	for _, s := range p.Skipped {
		fmt.Fprintf(&b, "\n  skipped %s %s %.2f %s (%s)",
			s.Side, s.Symbol, s.Notional, p.Currency, s.Reason)
	}
	for _, w := range p.Warnings {
		fmt.Fprintf(&b, "\n  warning: %s", w)
	}
	return b.String()
}

// FillStatus is the terminal state of one order's execution.
type FillStatus string

const (
	FillStatusFilled  FillStatus = "filled"
	FillStatusSkipped FillStatus = "skipped" // dry run, not submitted
	FillStatusFailed  FillStatus = "failed"
)

// Fill reports the outcome of executing one order.
type Fill struct {
	OrderID    string
	Pair       string
	Side       OrderSide
	Status     FillStatus
	Quantity   float64 // executed quantity in asset units
	Proceeds   float64 // realized value in the plan currency, net of fees
	Error      string  // failure reason when Status == FillStatusFailed
	ExecutedAt time.Time
}

// ExecutionReport aggregates the fills of one plan execution.
type ExecutionReport struct {
	PlanID   string
	Live     bool
	Fills    []Fill
	Started  time.Time
	Finished time.Time
}

// Proceeds returns the total realized sell value in the plan currency.
func (r ExecutionReport) Proceeds() float64 {
	var sum float64
	for _, f := range r.Fills {
		if f.Side == OrderSideSell && f.Status == FillStatusFilled {
			sum += f.Proceeds
		}
	}
	return sum
}

// Failed returns the fills that did not execute.
func (r ExecutionReport) Failed() []Fill {
	var out []Fill
	for _, f := range r.Fills {
		if f.Status == FillStatusFailed {
			out = append(out, f)
		}
	}
	return out
}
