package fund

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kparichay/indexfund/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubOracle serves prices from a fixed table keyed "SYMBOL/QUOTE".
type stubOracle map[string]float64

func (o stubOracle) Price(_ context.Context, symbol, quote string) (float64, error) {
	if symbol == quote {
		return 1, nil
	}
	if p, ok := o[symbol+"/"+quote]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("%s/%s: %w", symbol, quote, domain.ErrPriceUnavailable)
}

// stubPairs lists trading pairs keyed by concatenated pair name.
type stubPairs map[string]domain.PairFilter

func (p stubPairs) PairName(symbol, base string) (string, bool) {
	if _, ok := p[symbol+base]; ok {
		return symbol + base, true
	}
	if _, ok := p[base+symbol]; ok {
		return base + symbol, true
	}
	return "", false
}

func (p stubPairs) Filter(_ context.Context, symbol, base string) (domain.PairFilter, error) {
	if f, ok := p[symbol+base]; ok {
		return f, nil
	}
	return p[base+symbol], nil
}

type stubAccount struct {
	balances map[string]float64
	eligible bool
	err      error
}

func (a stubAccount) Balances(context.Context) (map[string]float64, error) {
	return a.balances, a.err
}

func (a stubAccount) LeverageEligible(context.Context) (bool, error) {
	return a.eligible, a.err
}

type stubCatalog map[string]domain.Fund

func (c stubCatalog) Resolve(_ context.Context, fundID string) (domain.Fund, error) {
	f, ok := c[fundID]
	if !ok {
		return domain.Fund{}, fmt.Errorf("resolve %q: %w", fundID, domain.ErrUnknownFund)
	}
	return f, nil
}

type stubTokens struct {
	bull map[string]string
	bear map[string]string
}

func (t stubTokens) BullToken(symbol string) (string, bool) {
	tok, ok := t.bull[symbol]
	return tok, ok
}

func (t stubTokens) BearToken(symbol string) (string, bool) {
	tok, ok := t.bear[symbol]
	return tok, ok
}

func (t stubTokens) Underlying(token string) (string, domain.LeverageSide, bool) {
	for sym, tok := range t.bull {
		if tok == token {
			return sym, domain.LeverageBull, true
		}
	}
	for sym, tok := range t.bear {
		if tok == token {
			return sym, domain.LeverageBear, true
		}
	}
	return "", "", false
}

// testPrices and testPairs describe a small market used across the engine
// tests: three spot assets plus the BTC leveraged tokens, all quoted in
// USDT.
func testPrices() stubOracle {
	return stubOracle{
		"BTC/USDT":     50000,
		"ETH/USDT":     2500,
		"SOL/USDT":     100,
		"BTCUP/USDT":   20,
		"BTCDOWN/USDT": 5,
	}
}

func testPairs() stubPairs {
	lot := domain.PairFilter{MinNotional: 10, MinQuantity: 0.00001, StepSize: 0.00001}
	return stubPairs{
		"BTCUSDT":     lot,
		"ETHUSDT":     lot,
		"SOLUSDT":     lot,
		"BTCUPUSDT":   lot,
		"BTCDOWNUSDT": lot,
	}
}

func testSnapshotter(balances map[string]float64) *Snapshotter {
	return NewSnapshotter(
		stubAccount{balances: balances, eligible: true},
		testPrices(),
		SnapshotConfig{Currency: "USDT", Fiat: []string{"USDT", "USDC"}},
		testLogger(),
	)
}

func testPlanner() *Planner {
	return NewPlanner(testPairs(), testPrices(), PlannerConfig{BaseCurrencies: []string{"USDT", "BTC"}})
}

func snapshotOf(currency string, values map[string]float64, fiat ...string) domain.PortfolioSnapshot {
	fiatSet := make(map[string]bool, len(fiat))
	for _, sym := range fiat {
		fiatSet[sym] = true
	}
	snap := domain.PortfolioSnapshot{
		Holdings: make(map[string]domain.Holding, len(values)),
		Currency: currency,
	}
	for sym, v := range values {
		snap.Holdings[sym] = domain.Holding{
			Asset: domain.Asset{Symbol: sym, Quote: currency, Fiat: fiatSet[sym]},
			Value: v,
		}
	}
	return snap
}

func mustWeightedFund(id string, symbols []string, weights []float64) domain.Fund {
	assets := make([]domain.Asset, 0, len(symbols))
	for _, sym := range symbols {
		assets = append(assets, domain.Asset{Symbol: sym, Quote: "USDT"})
	}
	f, err := domain.NewWeightedFund(id, assets, weights)
	if err != nil {
		panic(err)
	}
	return f
}
