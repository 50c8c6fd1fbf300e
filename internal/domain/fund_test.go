package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assets(symbols ...string) []Asset {
	out := make([]Asset, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, Asset{Symbol: sym, Quote: "USDT"})
	}
	return out
}

func TestNewEqualWeightFund(t *testing.T) {
	f := NewEqualWeightFund("test", assets("BTC", "ETH", "SOL", "ADA"))

	require.NoError(t, f.Validate())
	for _, c := range f.Components {
		assert.InDelta(t, 0.25, c.Weight, 1e-12)
	}
}

func TestNewWeightedFundNormalizes(t *testing.T) {
	f, err := NewWeightedFund("test", assets("BTC", "ETH"), []float64{2, 3})
	require.NoError(t, err)

	assert.InDelta(t, 0.4, f.Weight("BTC"), 1e-12)
	assert.InDelta(t, 0.6, f.Weight("ETH"), 1e-12)
	require.NoError(t, f.Validate())
}

func TestNewWeightedFundErrors(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		weights []float64
	}{
		{"length mismatch", []string{"BTC", "ETH"}, []float64{1}},
		{"negative weight", []string{"BTC", "ETH"}, []float64{1.5, -0.5}},
		{"zero sum", []string{"BTC", "ETH"}, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWeightedFund("test", assets(tt.symbols...), tt.weights)
			require.ErrorIs(t, err, ErrInvalidFund)
		})
	}
}

func TestFundValidate(t *testing.T) {
	tests := []struct {
		name string
		fund Fund
		ok   bool
	}{
		{
			name: "valid",
			fund: Fund{ID: "f", Components: []Component{
				{Asset: Asset{Symbol: "BTC"}, Weight: 0.5},
				{Asset: Asset{Symbol: "ETH"}, Weight: 0.5},
			}},
			ok: true,
		},
		{
			name: "no components",
			fund: Fund{ID: "f"},
		},
		{
			name: "weights do not sum to one",
			fund: Fund{ID: "f", Components: []Component{
				{Asset: Asset{Symbol: "BTC"}, Weight: 0.5},
			}},
		},
		{
			name: "duplicate symbol",
			fund: Fund{ID: "f", Components: []Component{
				{Asset: Asset{Symbol: "BTC"}, Weight: 0.5},
				{Asset: Asset{Symbol: "BTC"}, Weight: 0.5},
			}},
		},
		{
			name: "negative weight",
			fund: Fund{ID: "f", Components: []Component{
				{Asset: Asset{Symbol: "BTC"}, Weight: 1.5},
				{Asset: Asset{Symbol: "ETH"}, Weight: -0.5},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fund.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidFund)
			}
		})
	}
}

func TestFundWithWeights(t *testing.T) {
	f := NewEqualWeightFund("test", assets("BTC", "ETH"))

	g, err := f.WithWeights([]float64{3, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.75, g.Weight("BTC"), 1e-12)
	// The receiver is unchanged.
	assert.InDelta(t, 0.5, f.Weight("BTC"), 1e-12)
}

func TestFundAccessors(t *testing.T) {
	f := NewEqualWeightFund("test", assets("BTC", "ETH"))

	assert.True(t, f.Contains("BTC"))
	assert.False(t, f.Contains("SOL"))
	assert.Zero(t, f.Weight("SOL"))
	assert.Equal(t, []string{"BTC", "ETH"}, f.Symbols())
}

func TestTargetAllocationTotal(t *testing.T) {
	target := TargetAllocation{"BTC": 500, "ETH": 300, "USDT": 0}
	assert.InDelta(t, 800, target.Total(), 1e-12)
}
