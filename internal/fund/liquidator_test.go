package fund

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kparichay/indexfund/internal/domain"
)

func newTestLiquidator(balances map[string]float64) *Liquidator {
	return NewLiquidator(testSnapshotter(balances), testPlanner(), testLogger())
}

func TestLiquidateEverything(t *testing.T) {
	l := newTestLiquidator(map[string]float64{
		"BTC":  0.01, // 500
		"ETH":  0.12, // 300
		"USDT": 100,
	})

	plan, err := l.Liquidate(context.Background(), LiquidateOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.OpLiquidate, plan.Op)
	assert.Empty(t, plan.FundID)
	require.Len(t, plan.Orders, 2)
	assert.Equal(t, "BTC", plan.Orders[0].Symbol)
	assert.Equal(t, "ETH", plan.Orders[1].Symbol)
	for _, o := range plan.Orders {
		assert.Equal(t, domain.OrderSideSell, o.Side)
	}
	assert.Empty(t, plan.Buys(), "proceeds land in the settlement currency without a trade")
	assert.InDelta(t, 799.2, plan.Turnover(), 1e-9)
}

func TestLiquidateSelectedSymbols(t *testing.T) {
	l := newTestLiquidator(map[string]float64{
		"BTC":  0.01,
		"ETH":  0.12,
		"USDT": 100,
	})

	plan, err := l.Liquidate(context.Background(), LiquidateOptions{Symbols: []string{"BTC"}})
	require.NoError(t, err)

	require.Len(t, plan.Orders, 1)
	assert.Equal(t, "BTC", plan.Orders[0].Symbol)
}

func TestLiquidateKeep(t *testing.T) {
	l := newTestLiquidator(map[string]float64{
		"BTC":  0.01,
		"ETH":  0.12,
		"USDT": 100,
	})

	plan, err := l.Liquidate(context.Background(), LiquidateOptions{Keep: []string{"ETH"}})
	require.NoError(t, err)

	require.Len(t, plan.Orders, 1)
	assert.Equal(t, "BTC", plan.Orders[0].Symbol)
}

func TestLiquidateNothingToSell(t *testing.T) {
	l := newTestLiquidator(map[string]float64{"USDT": 1000})

	_, err := l.Liquidate(context.Background(), LiquidateOptions{})
	require.ErrorIs(t, err, domain.ErrNoLiquidAssets)
}

func TestLiquidateEmptyAccount(t *testing.T) {
	l := newTestLiquidator(nil)

	_, err := l.Liquidate(context.Background(), LiquidateOptions{})
	require.ErrorIs(t, err, domain.ErrNoLiquidAssets)
}
