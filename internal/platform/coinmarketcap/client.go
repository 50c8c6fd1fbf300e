// Package coinmarketcap implements domain.RankingSource against the
// CoinMarketCap Pro API.
package coinmarketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the CoinMarketCap Pro API root.
const DefaultBaseURL = "https://pro-api.coinmarketcap.com"

// listingsPath returns the latest listings sorted by market capitalization.
const listingsPath = "/v1/cryptocurrency/listings/latest"

// Client is the REST client for CoinMarketCap rankings.
type Client struct {
	baseURL    string
	apiKey     string
	ignore     map[string]bool
	httpClient *http.Client
}

// New creates a ranking client. ignore lists symbols excluded from every
// ranking window (fiat-pegged coins, symbols the exchange cannot price).
func New(baseURL, apiKey string, ignore []string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ignoreSet := make(map[string]bool, len(ignore))
	for _, sym := range ignore {
		ignoreSet[strings.ToUpper(sym)] = true
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		ignore:  ignoreSet,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiListing is one entry of the listings response.
type apiListing struct {
	Symbol  string `json:"symbol"`
	CmcRank int    `json:"cmc_rank"`
}

// apiStatus is the response envelope status block.
type apiStatus struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// TopSymbols returns ranked symbols in [offset, offset+limit), filtered of
// ignored entries. It over-fetches so the window stays full after
// filtering.
func (c *Client) TopSymbols(ctx context.Context, offset, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("coinmarketcap: non-positive limit %d", limit)
	}

	fetch := (offset + limit + len(c.ignore)) * 2
	params := url.Values{}
	params.Set("start", "1")
	params.Set("limit", strconv.Itoa(fetch))
	params.Set("sort", "market_cap")

	body, err := c.doGet(ctx, listingsPath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap: latest listings: %w", err)
	}

	var resp struct {
		Status apiStatus    `json:"status"`
		Data   []apiListing `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("coinmarketcap: decode listings: %w", err)
	}
	if resp.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap: listings error %d: %s",
			resp.Status.ErrorCode, resp.Status.ErrorMessage)
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].CmcRank < resp.Data[j].CmcRank })

	ranked := make([]string, 0, len(resp.Data))
	for _, l := range resp.Data {
		sym := strings.ToUpper(l.Symbol)
		if c.ignore[sym] {
			continue
		}
		ranked = append(ranked, sym)
	}

	if offset >= len(ranked) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end], nil
}

// doGet performs a GET request and returns the response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
