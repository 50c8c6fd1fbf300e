// Package domain defines the value objects, capability interfaces, and
// sentinel errors shared by the fund engine and its adapters. Everything in
// this package is plain data: no I/O, no goroutines, no hidden state.
package domain

import "time"

// Asset identifies a tradeable currency on the exchange.
type Asset struct {
	Symbol string // ticker symbol, e.g. "BTC"
	Quote  string // currency its value is expressed in, e.g. "USDT"
	Fiat   bool   // fiat or fiat-pegged stablecoin
}

// Holding is a quantity of one asset in an account.
type Holding struct {
	Asset    Asset
	Quantity float64 // units of the asset, >= 0
	Value    float64 // Quantity priced in the snapshot's valuation currency
}

// PortfolioSnapshot is an immutable view of an account's holdings at one
// point in time, valued in a single currency. Operations never mutate a
// snapshot; anything that depends on current state takes a fresh one.
type PortfolioSnapshot struct {
	Holdings map[string]Holding // keyed by asset symbol
	Currency string             // valuation currency, e.g. "USDT"
	TakenAt  time.Time
}

// TotalValue returns the sum of all holding values in the valuation currency.
func (s PortfolioSnapshot) TotalValue() float64 {
	var total float64
	for _, h := range s.Holdings {
		total += h.Value
	}
	return total
}

// Holding returns the holding for symbol, or a zero holding when absent.
func (s PortfolioSnapshot) Holding(symbol string) Holding {
	return s.Holdings[symbol]
}

// Symbols returns the symbols present in the snapshot in unspecified order.
func (s PortfolioSnapshot) Symbols() []string {
	out := make([]string, 0, len(s.Holdings))
	for sym := range s.Holdings {
		out = append(out, sym)
	}
	return out
}

// Restrict returns a copy of the snapshot containing only the listed symbols.
func (s PortfolioSnapshot) Restrict(symbols []string) PortfolioSnapshot {
	keep := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		keep[sym] = true
	}
	out := PortfolioSnapshot{
		Holdings: make(map[string]Holding),
		Currency: s.Currency,
		TakenAt:  s.TakenAt,
	}
	for sym, h := range s.Holdings {
		if keep[sym] {
			out.Holdings[sym] = h
		}
	}
	return out
}

// Without returns a copy of the snapshot with the listed symbols removed.
func (s PortfolioSnapshot) Without(symbols []string) PortfolioSnapshot {
	drop := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		drop[sym] = true
	}
	out := PortfolioSnapshot{
		Holdings: make(map[string]Holding),
		Currency: s.Currency,
		TakenAt:  s.TakenAt,
	}
	for sym, h := range s.Holdings {
		if !drop[sym] {
			out.Holdings[sym] = h
		}
	}
	return out
}

// Scale returns a copy of the snapshot with every quantity and value
// multiplied by fraction. Used for partial reinvestment.
func (s PortfolioSnapshot) Scale(fraction float64) PortfolioSnapshot {
	out := PortfolioSnapshot{
		Holdings: make(map[string]Holding, len(s.Holdings)),
		Currency: s.Currency,
		TakenAt:  s.TakenAt,
	}
	for sym, h := range s.Holdings {
		h.Quantity *= fraction
		h.Value *= fraction
		out.Holdings[sym] = h
	}
	return out
}
