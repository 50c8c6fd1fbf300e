package fund

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kparichay/indexfund/internal/domain"
)

// SnapshotConfig controls how account state is turned into a snapshot.
type SnapshotConfig struct {
	// Currency is the valuation currency, e.g. "USDT".
	Currency string
	// MinHoldingValue drops dust positions below this value from the
	// snapshot so they neither count as capital nor generate orders.
	MinHoldingValue float64
	// Fiat lists the symbols treated as fiat or fiat-pegged.
	Fiat []string
	// Blacklist lists symbols the exchange prices unreliably; they are
	// excluded from snapshots entirely.
	Blacklist []string
}

// Snapshotter values an account's balances into an immutable
// PortfolioSnapshot. Every operation takes a fresh snapshot right before
// planning so it never acts on stale state.
type Snapshotter struct {
	account   domain.AccountReader
	oracle    domain.PriceOracle
	cfg       SnapshotConfig
	fiat      map[string]bool
	blacklist map[string]bool
	logger    *slog.Logger
}

// NewSnapshotter creates a Snapshotter reading balances from account and
// prices from oracle.
func NewSnapshotter(account domain.AccountReader, oracle domain.PriceOracle, cfg SnapshotConfig, logger *slog.Logger) *Snapshotter {
	fiat := make(map[string]bool, len(cfg.Fiat))
	for _, sym := range cfg.Fiat {
		fiat[sym] = true
	}
	blacklist := make(map[string]bool, len(cfg.Blacklist))
	for _, sym := range cfg.Blacklist {
		blacklist[sym] = true
	}
	return &Snapshotter{
		account:   account,
		oracle:    oracle,
		cfg:       cfg,
		fiat:      fiat,
		blacklist: blacklist,
		logger:    logger.With(slog.String("component", "snapshotter")),
	}
}

// Take reads the account balances, values each holding in the configured
// currency, and returns the snapshot. Holdings whose price the oracle cannot
// produce are dropped with a log line rather than failing the whole
// snapshot, matching how exchanges list assets they no longer price.
func (s *Snapshotter) Take(ctx context.Context) (domain.PortfolioSnapshot, error) {
	balances, err := s.account.Balances(ctx)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("snapshot: balances: %w", err)
	}

	snap := domain.PortfolioSnapshot{
		Holdings: make(map[string]domain.Holding, len(balances)),
		Currency: s.cfg.Currency,
		TakenAt:  time.Now().UTC(),
	}

	for sym, qty := range balances {
		if qty <= 0 || s.blacklist[sym] {
			continue
		}
		price := 1.0
		if sym != s.cfg.Currency {
			price, err = s.oracle.Price(ctx, sym, s.cfg.Currency)
			if errors.Is(err, domain.ErrPriceUnavailable) {
				s.logger.WarnContext(ctx, "no price for held asset, dropping from snapshot",
					slog.String("symbol", sym))
				continue
			}
			if err != nil {
				return domain.PortfolioSnapshot{}, fmt.Errorf("snapshot: price %s: %w", sym, err)
			}
		}
		value := qty * price
		if value < s.cfg.MinHoldingValue {
			continue
		}
		snap.Holdings[sym] = domain.Holding{
			Asset:    domain.Asset{Symbol: sym, Quote: s.cfg.Currency, Fiat: s.fiat[sym]},
			Quantity: qty,
			Value:    value,
		}
	}

	return snap, nil
}
