package fund

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kparichay/indexfund/internal/domain"
)

func newTestReinvestor(balances map[string]float64, catalog domain.FundCatalog) *Reinvestor {
	snapshots := testSnapshotter(balances)
	planner := testPlanner()
	allocator := NewAllocator(AllocatorConfig{})
	liquidator := NewLiquidator(snapshots, planner, testLogger())
	return NewReinvestor(catalog, snapshots, allocator, planner, liquidator, testLogger())
}

func reinvestCatalog() stubCatalog {
	return stubCatalog{
		"btc-only": mustWeightedFund("btc-only", []string{"BTC"}, []float64{1}),
		"eth-sol":  mustWeightedFund("eth-sol", []string{"ETH", "SOL"}, []float64{0.5, 0.5}),
	}
}

func TestReinvestFractionBounds(t *testing.T) {
	r := newTestReinvestor(map[string]float64{"BTC": 0.01}, reinvestCatalog())

	for _, fraction := range []float64{0, -0.5, 1.01} {
		_, err := r.Reinvest(context.Background(), "btc-only", "eth-sol", fraction, RebalanceOptions{})
		require.Error(t, err, "fraction %v", fraction)
	}
}

func TestReinvestFullPosition(t *testing.T) {
	r := newTestReinvestor(map[string]float64{
		"BTC":  0.01, // 500
		"USDT": 100,
	}, reinvestCatalog())

	plan, err := r.Reinvest(context.Background(), "btc-only", "eth-sol", 1, RebalanceOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.OpReinvest, plan.Op)
	assert.Equal(t, "eth-sol", plan.FundID)

	// One sell out of the source, then the buys into the target, sized off
	// the planned proceeds rather than the pre-trade balance.
	require.Len(t, plan.Orders, 3)
	assert.Equal(t, domain.OrderSideSell, plan.Orders[0].Side)
	assert.Equal(t, "BTC", plan.Orders[0].Symbol)
	assert.Equal(t, domain.OrderSideBuy, plan.Orders[1].Side)
	assert.Equal(t, "ETH", plan.Orders[1].Symbol)
	assert.Equal(t, domain.OrderSideBuy, plan.Orders[2].Side)
	assert.Equal(t, "SOL", plan.Orders[2].Symbol)

	// Realized capital is what the sell nets; the idle 100 USDT is not part
	// of the source position and stays put.
	realized := 500 * 0.999
	assert.InDelta(t, realized/2*0.999, plan.Orders[1].Notional, 1e-6)
	assert.InDelta(t, realized/2*0.999, plan.Orders[2].Notional, 1e-6)
}

func TestReinvestLeavesIdleCashAlone(t *testing.T) {
	r := newTestReinvestor(map[string]float64{
		"BTC":  0.01, // 500
		"USDT": 1000,
	}, reinvestCatalog())

	plan, err := r.Reinvest(context.Background(), "btc-only", "eth-sol", 0.5, RebalanceOptions{})
	require.NoError(t, err)

	sells := plan.Sells()
	require.Len(t, sells, 1)
	assert.InDelta(t, 250*0.999, sells[0].Notional, 1e-9)

	var bought float64
	for _, o := range plan.Buys() {
		bought += o.Notional
	}
	assert.InDelta(t, 250*0.999*0.999, bought, 1e-6)
	assert.Less(t, bought, 250.0, "the settlement balance funds nothing beyond the liquidated half")
}

func TestReinvestHalfPosition(t *testing.T) {
	r := newTestReinvestor(map[string]float64{
		"BTC": 0.01, // 500
	}, reinvestCatalog())

	plan, err := r.Reinvest(context.Background(), "btc-only", "eth-sol", 0.5, RebalanceOptions{})
	require.NoError(t, err)

	sells := plan.Sells()
	require.Len(t, sells, 1)
	assert.InDelta(t, 250*0.999, sells[0].Notional, 1e-9, "only half the position is liquidated")
}

func TestReinvestSourceHasNothing(t *testing.T) {
	r := newTestReinvestor(map[string]float64{"ETH": 0.2}, reinvestCatalog())

	_, err := r.Reinvest(context.Background(), "btc-only", "eth-sol", 1, RebalanceOptions{})
	require.ErrorIs(t, err, domain.ErrNoLiquidAssets)
}

func TestReinvestUnknownFund(t *testing.T) {
	r := newTestReinvestor(map[string]float64{"BTC": 0.01}, reinvestCatalog())

	_, err := r.Reinvest(context.Background(), "nope", "eth-sol", 1, RebalanceOptions{})
	require.ErrorIs(t, err, domain.ErrUnknownFund)

	_, err = r.Reinvest(context.Background(), "btc-only", "nope", 1, RebalanceOptions{})
	require.ErrorIs(t, err, domain.ErrUnknownFund)
}

func TestReinvestExcludeTargetComponent(t *testing.T) {
	r := newTestReinvestor(map[string]float64{"BTC": 0.01}, reinvestCatalog())

	plan, err := r.Reinvest(context.Background(), "btc-only", "eth-sol", 1, RebalanceOptions{
		Exclude: []string{"SOL"},
	})
	require.NoError(t, err)

	buys := plan.Buys()
	require.Len(t, buys, 1)
	assert.Equal(t, "ETH", buys[0].Symbol)
}
