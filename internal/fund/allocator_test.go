package fund

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kparichay/indexfund/internal/domain"
)

func TestAllocateFromCash(t *testing.T) {
	a := NewAllocator(AllocatorConfig{})
	f := mustWeightedFund("test", []string{"BTC", "ETH", "SOL"}, []float64{0.5, 0.3, 0.2})
	snap := snapshotOf("USDT", map[string]float64{"USDT": 1000}, "USDT")

	target, err := a.Allocate(f, snap, nil)
	require.NoError(t, err)

	assert.InDelta(t, 500, target["BTC"], 1e-9)
	assert.InDelta(t, 300, target["ETH"], 1e-9)
	assert.InDelta(t, 200, target["SOL"], 1e-9)
	assert.Zero(t, target["USDT"])
	assert.InDelta(t, 1000, target.Total(), 1e-9)
}

func TestAllocateRejectsInvalidFund(t *testing.T) {
	a := NewAllocator(AllocatorConfig{})
	broken := domain.Fund{
		ID: "broken",
		Components: []domain.Component{
			{Asset: domain.Asset{Symbol: "BTC"}, Weight: 0.5},
		},
	}
	snap := snapshotOf("USDT", map[string]float64{"USDT": 1000}, "USDT")

	_, err := a.Allocate(broken, snap, nil)
	require.ErrorIs(t, err, domain.ErrInvalidFund)
}

func TestAllocateRejectsDustPortfolio(t *testing.T) {
	a := NewAllocator(AllocatorConfig{MinValue: 20})
	f := mustWeightedFund("test", []string{"BTC"}, []float64{1})
	snap := snapshotOf("USDT", map[string]float64{"USDT": 19.99}, "USDT")

	_, err := a.Allocate(f, snap, nil)
	require.ErrorIs(t, err, domain.ErrInsufficientValue)
}

func TestAllocateKeepsHoldingsWithinTolerance(t *testing.T) {
	a := NewAllocator(AllocatorConfig{Tolerance: 0.02})
	f := mustWeightedFund("test", []string{"BTC", "ETH"}, []float64{0.5, 0.5})
	// BTC is 1% off its 500 target, inside the 2% band.
	snap := snapshotOf("USDT", map[string]float64{"BTC": 495, "USDT": 505}, "USDT")

	target, err := a.Allocate(f, snap, nil)
	require.NoError(t, err)

	assert.InDelta(t, 495, target["BTC"], 1e-9, "holding inside the band keeps its current value")
	assert.InDelta(t, 500, target["ETH"], 1e-9)
	assert.Zero(t, target["USDT"])
}

func TestAllocateDrivesNonFundHoldingsToZero(t *testing.T) {
	a := NewAllocator(AllocatorConfig{})
	f := mustWeightedFund("test", []string{"BTC"}, []float64{1})
	snap := snapshotOf("USDT", map[string]float64{"BTC": 400, "DOGE": 100, "USDT": 500}, "USDT")

	target, err := a.Allocate(f, snap, nil)
	require.NoError(t, err)

	assert.Zero(t, target["DOGE"])
	assert.Zero(t, target["USDT"])
	assert.InDelta(t, 1000, target["BTC"], 1e-9)
}

func TestAllocateIgnoredSymbols(t *testing.T) {
	a := NewAllocator(AllocatorConfig{})
	f := mustWeightedFund("test", []string{"BTC"}, []float64{1})
	snap := snapshotOf("USDT", map[string]float64{"BTC": 500, "DOGE": 100, "USDT": 500}, "USDT")

	target, err := a.Allocate(f, snap, []string{"DOGE"})
	require.NoError(t, err)

	// Ignored holdings are neither deployable capital nor a target.
	assert.NotContains(t, target, "DOGE")
	assert.InDelta(t, 1000, target["BTC"], 1e-9)
}

func TestAllocateZeroWeightComponentIsSold(t *testing.T) {
	a := NewAllocator(AllocatorConfig{})
	f := mustWeightedFund("test", []string{"BTC", "ETH"}, []float64{1, 0})
	snap := snapshotOf("USDT", map[string]float64{"ETH": 50, "USDT": 950}, "USDT")

	target, err := a.Allocate(f, snap, nil)
	require.NoError(t, err)

	// A zero target is exact: tolerance never keeps a residual position.
	assert.Zero(t, target["ETH"])
	assert.InDelta(t, 1000, target["BTC"], 1e-9)
}

func TestWithinBand(t *testing.T) {
	tests := []struct {
		name          string
		current, want float64
		in            bool
	}{
		{"exact match", 500, 500, true},
		{"one percent drift", 495, 500, true},
		{"band edge", 490, 500, true},
		{"outside band", 489, 500, false},
		{"zero target zero held", 0, 0, true},
		{"zero target residual", 0.01, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.in, withinBand(tt.current, tt.want, 0.02))
		})
	}
}
