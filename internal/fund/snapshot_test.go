package fund

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kparichay/indexfund/internal/domain"
)

func TestSnapshotValuesHoldings(t *testing.T) {
	s := testSnapshotter(map[string]float64{
		"BTC":  0.01,
		"ETH":  0.2,
		"USDT": 150,
	})

	snap, err := s.Take(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "USDT", snap.Currency)
	require.Len(t, snap.Holdings, 3)
	assert.InDelta(t, 500, snap.Holding("BTC").Value, 1e-9)
	assert.InDelta(t, 500, snap.Holding("ETH").Value, 1e-9)
	assert.InDelta(t, 150, snap.Holding("USDT").Value, 1e-9)
	assert.InDelta(t, 1150, snap.TotalValue(), 1e-9)

	// The valuation currency prices at 1 and carries the fiat flag.
	assert.True(t, snap.Holding("USDT").Asset.Fiat)
	assert.False(t, snap.Holding("BTC").Asset.Fiat)
}

func TestSnapshotDropsDust(t *testing.T) {
	s := NewSnapshotter(
		stubAccount{balances: map[string]float64{"BTC": 0.01, "SOL": 0.05}},
		testPrices(),
		SnapshotConfig{Currency: "USDT", MinHoldingValue: 20},
		testLogger(),
	)

	snap, err := s.Take(context.Background())
	require.NoError(t, err)

	assert.Contains(t, snap.Holdings, "BTC")
	assert.NotContains(t, snap.Holdings, "SOL", "5 USDT of SOL is below the dust threshold")
}

func TestSnapshotDropsBlacklisted(t *testing.T) {
	s := NewSnapshotter(
		stubAccount{balances: map[string]float64{"BTC": 0.01, "SOL": 10}},
		testPrices(),
		SnapshotConfig{Currency: "USDT", Blacklist: []string{"SOL"}},
		testLogger(),
	)

	snap, err := s.Take(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, snap.Holdings, "SOL")
}

func TestSnapshotDropsUnpricedHoldings(t *testing.T) {
	s := testSnapshotter(map[string]float64{"BTC": 0.01, "DELISTED": 42})

	snap, err := s.Take(context.Background())
	require.NoError(t, err)

	assert.Contains(t, snap.Holdings, "BTC")
	assert.NotContains(t, snap.Holdings, "DELISTED")
}

func TestSnapshotBalancesError(t *testing.T) {
	boom := errors.New("exchange down")
	s := NewSnapshotter(
		stubAccount{err: boom},
		testPrices(),
		SnapshotConfig{Currency: "USDT"},
		testLogger(),
	)

	_, err := s.Take(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSnapshotSkipsZeroBalances(t *testing.T) {
	s := testSnapshotter(map[string]float64{"BTC": 0, "ETH": 0.2})

	snap, err := s.Take(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, snap.Holdings, "BTC")
	assert.Contains(t, snap.Holdings, "ETH")
}

func TestSnapshotImmutableViews(t *testing.T) {
	snap := snapshotOf("USDT", map[string]float64{"BTC": 500, "ETH": 300, "USDT": 200}, "USDT")

	restricted := snap.Restrict([]string{"BTC"})
	assert.Len(t, restricted.Holdings, 1)
	without := snap.Without([]string{"BTC"})
	assert.Len(t, without.Holdings, 2)
	scaled := snap.Scale(0.5)
	assert.InDelta(t, 500, scaled.TotalValue(), 1e-9)

	// The source snapshot is untouched by all three.
	assert.Len(t, snap.Holdings, 3)
	assert.InDelta(t, 1000, snap.TotalValue(), 1e-9)

	var empty domain.PortfolioSnapshot
	assert.Zero(t, empty.Holding("BTC").Value)
}
