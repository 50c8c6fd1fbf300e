package coinmarketcap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listingsServer(t *testing.T, apiKey string, listings []apiListing) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, listingsPath, r.URL.Path)
		assert.Equal(t, apiKey, r.Header.Get("X-CMC_PRO_API_KEY"))

		fmt.Fprint(w, `{"status":{"error_code":0},"data":[`)
		for i, l := range listings {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"symbol":%q,"cmc_rank":%d}`, l.Symbol, l.CmcRank)
		}
		fmt.Fprint(w, `]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTopSymbols(t *testing.T) {
	// Deliberately out of rank order; the client sorts.
	srv := listingsServer(t, "test-key", []apiListing{
		{Symbol: "eth", CmcRank: 2},
		{Symbol: "BTC", CmcRank: 1},
		{Symbol: "BNB", CmcRank: 4},
		{Symbol: "USDT", CmcRank: 3},
	})
	c := New(srv.URL, "test-key", []string{"usdt"})

	got, err := c.TopSymbols(context.Background(), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH", "BNB"}, got)
}

func TestTopSymbolsWindow(t *testing.T) {
	srv := listingsServer(t, "k", []apiListing{
		{Symbol: "BTC", CmcRank: 1},
		{Symbol: "ETH", CmcRank: 2},
		{Symbol: "BNB", CmcRank: 3},
		{Symbol: "SOL", CmcRank: 4},
	})
	c := New(srv.URL, "k", nil)

	got, err := c.TopSymbols(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"BNB", "SOL"}, got)
}

func TestTopSymbolsOffsetPastEnd(t *testing.T) {
	srv := listingsServer(t, "k", []apiListing{{Symbol: "BTC", CmcRank: 1}})
	c := New(srv.URL, "k", nil)

	got, err := c.TopSymbols(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTopSymbolsNonPositiveLimit(t *testing.T) {
	c := New("http://unused", "k", nil)

	_, err := c.TopSymbols(context.Background(), 0, 0)
	require.Error(t, err)
}

func TestTopSymbolsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":{"error_code":1002,"error_message":"API key invalid"},"data":[]}`)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, "bad-key", nil)

	_, err := c.TopSymbols(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1002")
	assert.Contains(t, err.Error(), "API key invalid")
}

func TestTopSymbolsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, "k", nil)

	_, err := c.TopSymbols(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
