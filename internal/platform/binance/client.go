// Package binance adapts the Binance spot API to the engine's capability
// interfaces: price oracle, account reader, pair directory, and leveraged
// token directory, plus the execution gateway in gateway.go. The engine
// never sees a Binance SDK type.
package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/kparichay/indexfund/internal/domain"
)

// Config holds Binance client parameters.
type Config struct {
	APIKey    string
	SecretKey string
	// BaseCurrencies are the settlement candidates used for price routing,
	// in preference order.
	BaseCurrencies []string
	// PriceMaxAge bounds how old a cached price may be before the client
	// falls back to its bootstrap ticker map.
	PriceMaxAge time.Duration
	// RequestsPerSecond caps REST calls to stay under the API weight
	// limits.
	RequestsPerSecond float64
}

func (c Config) withDefaults() Config {
	if len(c.BaseCurrencies) == 0 {
		c.BaseCurrencies = []string{"USDT", "BTC", "BNB"}
	}
	if c.PriceMaxAge <= 0 {
		c.PriceMaxAge = 30 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	return c
}

// pairInfo is the exchange metadata for one listed trading pair.
type pairInfo struct {
	base   string // Binance base asset, the thing being traded
	quote  string // Binance quote asset, the settlement side
	filter domain.PairFilter
}

// Client implements domain.PriceOracle, domain.AccountReader,
// domain.PairDirectory, and domain.LeverageDirectory on top of the Binance
// spot API. Construction performs the exchange and account preflight and
// loads the ticker and pair maps; both can be refreshed.
type Client struct {
	api     *binance.Client
	limiter *rate.Limiter
	cache   domain.PriceCache // optional read-through price cache
	bases   []string
	maxAge  time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	tickers map[string]float64  // pair -> bootstrap price
	pairs   map[string]pairInfo // pair -> metadata
	bull    map[string]string   // spot symbol -> bull token
	bear    map[string]string   // spot symbol -> bear token
	tokens  map[string]tokenRef // leveraged token -> underlying
}

type tokenRef struct {
	underlying string
	side       domain.LeverageSide
}

// New creates a Client, verifies the exchange is reachable and the account
// can trade, and loads tickers and exchange metadata. cache may be nil.
func New(ctx context.Context, cfg Config, cache domain.PriceCache, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	c := &Client{
		api:     binance.NewClient(cfg.APIKey, cfg.SecretKey),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:   cache,
		bases:   cfg.BaseCurrencies,
		maxAge:  cfg.PriceMaxAge,
		logger:  logger.With(slog.String("component", "binance")),
		tickers: make(map[string]float64),
		pairs:   make(map[string]pairInfo),
		bull:    make(map[string]string),
		bear:    make(map[string]string),
		tokens:  make(map[string]tokenRef),
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if err := c.api.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance: exchange unreachable: %w", err)
	}

	account, err := c.account(ctx)
	if err != nil {
		return nil, err
	}
	if !account.CanTrade {
		return nil, errors.New("binance: account is not permitted to trade")
	}

	if err := c.RefreshTickers(ctx); err != nil {
		return nil, err
	}
	if err := c.loadExchangeInfo(ctx); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "binance client ready",
		slog.Int("pairs", len(c.pairs)),
		slog.Int("leveraged_tokens", len(c.tokens)),
	)
	return c, nil
}

// RefreshTickers reloads the bootstrap price map for every listed pair.
func (c *Client) RefreshTickers(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	prices, err := c.api.NewListPricesService().Do(ctx)
	if err != nil {
		return fmt.Errorf("binance: list prices: %w", err)
	}

	tickers := make(map[string]float64, len(prices))
	for _, p := range prices {
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			continue
		}
		tickers[p.Symbol] = v
	}

	c.mu.Lock()
	c.tickers = tickers
	c.mu.Unlock()
	return nil
}

// loadExchangeInfo loads pair metadata, order filters, and the leveraged
// token index. Leveraged tokens are spot symbols of the form <SYM>UP /
// <SYM>DOWN whose underlying is itself listed.
func (c *Client) loadExchangeInfo(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return fmt.Errorf("binance: exchange info: %w", err)
	}

	pairs := make(map[string]pairInfo, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		pairs[s.Symbol] = pairInfo{
			base:   s.BaseAsset,
			quote:  s.QuoteAsset,
			filter: parseFilters(s.Filters),
		}
	}

	bull := make(map[string]string)
	bear := make(map[string]string)
	tokens := make(map[string]tokenRef)
	for _, s := range info.Symbols {
		var underlying string
		var side domain.LeverageSide
		switch {
		case strings.HasSuffix(s.BaseAsset, "UP"):
			underlying, side = strings.TrimSuffix(s.BaseAsset, "UP"), domain.LeverageBull
		case strings.HasSuffix(s.BaseAsset, "DOWN"):
			underlying, side = strings.TrimSuffix(s.BaseAsset, "DOWN"), domain.LeverageBear
		default:
			continue
		}
		// Guard against ordinary symbols that merely end in UP/DOWN: the
		// underlying must itself trade against the same quote.
		if underlying == "" {
			continue
		}
		if _, ok := pairs[underlying+s.QuoteAsset]; !ok {
			continue
		}
		if side == domain.LeverageBull {
			bull[underlying] = s.BaseAsset
		} else {
			bear[underlying] = s.BaseAsset
		}
		tokens[s.BaseAsset] = tokenRef{underlying: underlying, side: side}
	}

	c.mu.Lock()
	c.pairs = pairs
	c.bull = bull
	c.bear = bear
	c.tokens = tokens
	c.mu.Unlock()
	return nil
}

// parseFilters extracts the lot and notional constraints from a symbol's
// filter list. Binance has renamed MIN_NOTIONAL to NOTIONAL over time, so
// both spellings are accepted.
func parseFilters(filters []map[string]interface{}) domain.PairFilter {
	var f domain.PairFilter
	for _, raw := range filters {
		switch raw["filterType"] {
		case "LOT_SIZE":
			f.MinQuantity = filterFloat(raw, "minQty")
			f.StepSize = filterFloat(raw, "stepSize")
		case "MIN_NOTIONAL":
			f.MinNotional = filterFloat(raw, "minNotional")
		case "NOTIONAL":
			f.MinNotional = filterFloat(raw, "minNotional")
		}
	}
	return f
}

func filterFloat(raw map[string]interface{}, key string) float64 {
	s, ok := raw[key].(string)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ---------------------------------------------------------------------------
// domain.AccountReader
// ---------------------------------------------------------------------------

// Balances returns the free balance per asset, omitting zero balances.
func (c *Client) Balances(ctx context.Context) (map[string]float64, error) {
	account, err := c.account(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(account.Balances))
	for _, b := range account.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil || free <= 0 {
			continue
		}
		out[b.Asset] = free
	}
	return out, nil
}

// LeverageEligible reports whether the account has completed the exchange's
// leveraged-token prerequisite, surfaced as the LEVERAGED permission.
func (c *Client) LeverageEligible(ctx context.Context) (bool, error) {
	account, err := c.account(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range account.Permissions {
		if p == "LEVERAGED" {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) account(ctx context.Context) (*binance.Account, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: get account: %w", err)
	}
	return account, nil
}

// ---------------------------------------------------------------------------
// domain.PriceOracle
// ---------------------------------------------------------------------------

// Price returns the price of symbol in quote, routing through a base
// currency when no direct or inverse pair exists (e.g. ALT/BTC x BTC/USDT).
func (c *Client) Price(ctx context.Context, symbol, quote string) (float64, error) {
	if symbol == quote {
		return 1, nil
	}
	if p, ok := c.pairPrice(ctx, symbol, quote); ok {
		return p, nil
	}
	for _, base := range c.bases {
		if base == quote || base == symbol {
			continue
		}
		viaBase, ok := c.pairPrice(ctx, symbol, base)
		if !ok {
			continue
		}
		baseQuote, ok := c.pairPrice(ctx, base, quote)
		if !ok {
			continue
		}
		return viaBase * baseQuote, nil
	}
	return 0, fmt.Errorf("binance: %s/%s: %w", symbol, quote, domain.ErrPriceUnavailable)
}

// pairPrice resolves sym1 in units of sym2 using a direct or inverse listed
// pair, preferring a fresh cached price over the bootstrap ticker map.
func (c *Client) pairPrice(ctx context.Context, sym1, sym2 string) (float64, bool) {
	if p, ok := c.lookup(ctx, sym1+sym2); ok {
		return p, true
	}
	if p, ok := c.lookup(ctx, sym2+sym1); ok && p != 0 {
		return 1 / p, true
	}
	return 0, false
}

func (c *Client) lookup(ctx context.Context, pair string) (float64, bool) {
	if c.cache != nil {
		if p, ts, err := c.cache.GetPrice(ctx, pair); err == nil && time.Since(ts) <= c.maxAge {
			return p, true
		}
	}
	c.mu.RLock()
	p, ok := c.tickers[pair]
	c.mu.RUnlock()
	return p, ok
}

// ---------------------------------------------------------------------------
// domain.PairDirectory
// ---------------------------------------------------------------------------

// PairName returns the listed pair trading symbol against base. Only direct
// listings count: orders are never routed through an inverted pair.
func (c *Client) PairName(symbol, base string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pair := symbol + base
	if _, ok := c.pairs[pair]; ok {
		return pair, true
	}
	return "", false
}

// Filter returns the order constraints for the pair (symbol, base).
func (c *Client) Filter(_ context.Context, symbol, base string) (domain.PairFilter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.pairs[symbol+base]
	if !ok {
		return domain.PairFilter{}, fmt.Errorf("binance: pair %s%s: %w", symbol, base, domain.ErrNotFound)
	}
	return info.filter, nil
}

// ---------------------------------------------------------------------------
// domain.LeverageDirectory
// ---------------------------------------------------------------------------

// BullToken returns the bull leveraged token listed for symbol.
func (c *Client) BullToken(symbol string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.bull[symbol]
	return t, ok
}

// BearToken returns the bear leveraged token listed for symbol.
func (c *Client) BearToken(symbol string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.bear[symbol]
	return t, ok
}

// Underlying resolves a leveraged token back to its spot symbol and side.
func (c *Client) Underlying(token string) (string, domain.LeverageSide, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.tokens[token]
	if !ok {
		return "", "", false
	}
	return ref.underlying, ref.side, true
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("binance: rate limiter: %w", err)
	}
	return nil
}
