// Package catalog resolves fund identifiers into weighted asset baskets.
// The built-in funds are market-capitalization rank windows backed by a
// ranking source; operators can declare additional static funds in the
// configuration, and any comma-separated symbol list resolves to an ad-hoc
// equal-weight fund.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kparichay/indexfund/internal/domain"
)

// Built-in fund identifiers and their rank windows: large-cap is the top 20
// by market capitalization, mid-cap the next 30, small-cap the next 50.
const (
	FundLargeCap = "large-cap"
	FundMidCap   = "mid-cap"
	FundSmallCap = "small-cap"

	largeCapEnd = 20
	midCapEnd   = 50
	smallCapEnd = 100
)

// Config holds catalog parameters.
type Config struct {
	// Quote is the currency fund assets are quoted in.
	Quote string
	// Static maps operator-declared fund IDs to symbol lists.
	Static map[string][]string
	// Fiat lists symbols never admitted to a fund.
	Fiat []string
}

// Catalog implements domain.FundCatalog. Ranked funds need a ranking source;
// when none is configured (no API key), only static and ad-hoc funds
// resolve.
type Catalog struct {
	ranks  domain.RankingSource
	cache  domain.RankingCache
	static map[string][]string
	quote  string
	fiat   map[string]bool
	logger *slog.Logger
}

// New creates a Catalog. ranks and cache may be nil.
func New(ranks domain.RankingSource, cache domain.RankingCache, cfg Config, logger *slog.Logger) *Catalog {
	fiat := make(map[string]bool, len(cfg.Fiat))
	for _, sym := range cfg.Fiat {
		fiat[strings.ToUpper(sym)] = true
	}
	return &Catalog{
		ranks:  ranks,
		cache:  cache,
		static: cfg.Static,
		quote:  cfg.Quote,
		fiat:   fiat,
		logger: logger.With(slog.String("component", "catalog")),
	}
}

// Resolve returns a freshly built, immutable Fund for fundID. Re-resolving
// the same ID yields a new instance; callers never share fund state.
func (c *Catalog) Resolve(ctx context.Context, fundID string) (domain.Fund, error) {
	switch fundID {
	case FundLargeCap:
		return c.rankedFund(ctx, fundID, 0, largeCapEnd)
	case FundMidCap:
		return c.rankedFund(ctx, fundID, largeCapEnd, midCapEnd)
	case FundSmallCap:
		return c.rankedFund(ctx, fundID, midCapEnd, smallCapEnd)
	}

	if symbols, ok := c.static[fundID]; ok {
		return c.buildFund(fundID, symbols)
	}

	// Any symbol list is an ad-hoc equal-weight fund.
	if symbols := splitSymbols(fundID); len(symbols) > 0 {
		return c.buildFund(fundID, symbols)
	}

	return domain.Fund{}, fmt.Errorf("resolve %q: %w", fundID, domain.ErrUnknownFund)
}

func (c *Catalog) rankedFund(ctx context.Context, fundID string, offset, end int) (domain.Fund, error) {
	if c.ranks == nil {
		return domain.Fund{}, fmt.Errorf("resolve %q: no ranking source configured: %w",
			fundID, domain.ErrUnknownFund)
	}

	if c.cache != nil {
		if symbols, err := c.cache.GetRanking(ctx, fundID); err == nil && len(symbols) > 0 {
			return c.buildFund(fundID, symbols)
		}
	}

	symbols, err := c.ranks.TopSymbols(ctx, offset, end-offset)
	if err != nil {
		return domain.Fund{}, fmt.Errorf("resolve %q: %w", fundID, err)
	}
	if len(symbols) == 0 {
		return domain.Fund{}, fmt.Errorf("resolve %q: ranking source returned no symbols: %w",
			fundID, domain.ErrUnknownFund)
	}

	if c.cache != nil {
		if err := c.cache.SetRanking(ctx, fundID, symbols); err != nil {
			c.logger.WarnContext(ctx, "ranking cache write failed",
				slog.String("fund", fundID), slog.String("error", err.Error()))
		}
	}
	return c.buildFund(fundID, symbols)
}

// buildFund assembles an equal-weight fund, dropping fiat symbols: capital
// is held in fiat, never invested in it.
func (c *Catalog) buildFund(fundID string, symbols []string) (domain.Fund, error) {
	assets := make([]domain.Asset, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if c.fiat[sym] {
			c.logger.Warn("fiat symbol dropped from fund",
				slog.String("fund", fundID), slog.String("symbol", sym))
			continue
		}
		assets = append(assets, domain.Asset{Symbol: sym, Quote: c.quote})
	}
	if len(assets) == 0 {
		return domain.Fund{}, fmt.Errorf("fund %q has no investable assets: %w",
			fundID, domain.ErrInvalidFund)
	}
	f := domain.NewEqualWeightFund(fundID, assets)
	if err := f.Validate(); err != nil {
		return domain.Fund{}, err
	}
	return f, nil
}

// splitSymbols parses "BTC,ETH,SOL" style identifiers. Identifiers with
// characters that cannot be ticker symbols resolve to nothing.
func splitSymbols(fundID string) []string {
	var out []string
	for _, part := range strings.Split(fundID, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, r := range part {
			if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
				return nil
			}
		}
		out = append(out, part)
	}
	return out
}
