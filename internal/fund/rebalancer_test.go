package fund

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kparichay/indexfund/internal/domain"
)

func newTestRebalancer(balances map[string]float64, catalog domain.FundCatalog) *Rebalancer {
	return NewRebalancer(
		catalog,
		testSnapshotter(balances),
		NewAllocator(AllocatorConfig{}),
		testPlanner(),
		testLogger(),
	)
}

func blueChipCatalog() stubCatalog {
	return stubCatalog{
		"blue-chip": mustWeightedFund("blue-chip", []string{"BTC", "ETH", "SOL"}, []float64{0.5, 0.3, 0.2}),
		"pair":      mustWeightedFund("pair", []string{"BTC", "ETH"}, []float64{0.5, 0.5}),
	}
}

func TestRebalanceFromCash(t *testing.T) {
	r := newTestRebalancer(map[string]float64{"USDT": 1000}, blueChipCatalog())

	plan, err := r.Rebalance(context.Background(), "blue-chip", RebalanceOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.OpRebalance, plan.Op)
	assert.Equal(t, "blue-chip", plan.FundID)
	assert.Equal(t, "USDT", plan.Currency)
	require.Len(t, plan.Orders, 3)
	assert.Empty(t, plan.Sells())
	assert.InDelta(t, 499.5, plan.Orders[0].Notional, 1e-9)
}

func TestRebalanceBalancedPortfolioIsEmpty(t *testing.T) {
	// Holdings already match the 50/30/20 targets exactly.
	r := newTestRebalancer(map[string]float64{
		"BTC": 0.01, // 500
		"ETH": 0.12, // 300
		"SOL": 2,    // 200
	}, blueChipCatalog())

	plan, err := r.Rebalance(context.Background(), "blue-chip", RebalanceOptions{})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Empty(t, plan.Skipped)
}

func TestRebalanceWeightOverride(t *testing.T) {
	r := newTestRebalancer(map[string]float64{"USDT": 1000}, blueChipCatalog())

	plan, err := r.Rebalance(context.Background(), "pair", RebalanceOptions{
		Weights: []float64{3, 1}, // normalized to 0.75 / 0.25
	})
	require.NoError(t, err)

	require.Len(t, plan.Orders, 2)
	assert.InDelta(t, 749.25, plan.Orders[0].Notional, 1e-9) // BTC, net of fee
	assert.InDelta(t, 249.75, plan.Orders[1].Notional, 1e-9) // ETH
}

func TestRebalanceWeightOverrideLengthMismatch(t *testing.T) {
	r := newTestRebalancer(map[string]float64{"USDT": 1000}, blueChipCatalog())

	_, err := r.Rebalance(context.Background(), "pair", RebalanceOptions{
		Weights: []float64{1, 2, 3},
	})
	require.ErrorIs(t, err, domain.ErrInvalidFund)
}

func TestRebalanceExcludeLiquidatesHolding(t *testing.T) {
	r := newTestRebalancer(map[string]float64{
		"ETH":  0.2, // 500
		"USDT": 500,
	}, blueChipCatalog())

	plan, err := r.Rebalance(context.Background(), "pair", RebalanceOptions{
		Exclude: []string{"ETH"},
	})
	require.NoError(t, err)

	// ETH leaves the fund but the existing position is still sold, and the
	// remaining weight renormalizes onto BTC.
	require.Len(t, plan.Orders, 2)
	sell := plan.Orders[0]
	buy := plan.Orders[1]
	assert.Equal(t, domain.OrderSideSell, sell.Side)
	assert.Equal(t, "ETH", sell.Symbol)
	assert.Equal(t, domain.OrderSideBuy, buy.Side)
	assert.Equal(t, "BTC", buy.Symbol)
}

func TestRebalanceExcludeEverything(t *testing.T) {
	r := newTestRebalancer(map[string]float64{"USDT": 1000}, blueChipCatalog())

	_, err := r.Rebalance(context.Background(), "pair", RebalanceOptions{
		Exclude: []string{"BTC", "ETH"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidFund)
}

func TestRebalanceKeepShieldsHolding(t *testing.T) {
	r := newTestRebalancer(map[string]float64{
		"SOL":  5, // 500, kept aside
		"USDT": 1000,
	}, blueChipCatalog())

	plan, err := r.Rebalance(context.Background(), "pair", RebalanceOptions{
		Keep: []string{"SOL"},
	})
	require.NoError(t, err)

	for _, o := range plan.Orders {
		assert.NotEqual(t, "SOL", o.Symbol)
	}
	// Kept value is not deployable: targets split the 1000 USDT only.
	require.Len(t, plan.Orders, 2)
	assert.InDelta(t, 499.5, plan.Orders[0].Notional, 1e-9)
}

func TestRebalanceUnknownFund(t *testing.T) {
	r := newTestRebalancer(map[string]float64{"USDT": 1000}, blueChipCatalog())

	_, err := r.Rebalance(context.Background(), "nope", RebalanceOptions{})
	require.ErrorIs(t, err, domain.ErrUnknownFund)
}

func TestRebalanceInsufficientValue(t *testing.T) {
	r := newTestRebalancer(map[string]float64{"USDT": 5}, blueChipCatalog())

	_, err := r.Rebalance(context.Background(), "blue-chip", RebalanceOptions{})
	require.ErrorIs(t, err, domain.ErrInsufficientValue)
}
