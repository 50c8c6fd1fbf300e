package domain

import (
	"context"
	"time"
)

// PriceOracle supplies current quote prices. Implementations may route
// through intermediate pairs; a price they cannot produce is reported with
// ErrPriceUnavailable.
type PriceOracle interface {
	// Price returns the current price of one unit of symbol in quote.
	Price(ctx context.Context, symbol, quote string) (float64, error)
}

// AccountReader exposes the account state the engine needs: free balances
// and the leveraged-trading capability flag.
type AccountReader interface {
	Balances(ctx context.Context) (map[string]float64, error)
	LeverageEligible(ctx context.Context) (bool, error)
}

// PairFilter carries the exchange's order constraints for one trading pair.
type PairFilter struct {
	MinNotional float64 // minimum order value in the quote currency
	MinQuantity float64 // minimum order size in asset units
	StepSize    float64 // lot step granularity for quantities
}

// PairDirectory answers which trading pairs exist and what constraints they
// carry. The planner uses it to route orders through a base currency and to
// size quantities.
type PairDirectory interface {
	// PairName returns the exchange pair for trading symbol against base
	// (e.g. "BTC","USDT" -> "BTCUSDT"); ok is false when no such pair is
	// listed in either direction.
	PairName(symbol, base string) (pair string, ok bool)
	Filter(ctx context.Context, symbol, base string) (PairFilter, error)
}

// FundCatalog resolves a fund identifier into a weighted asset basket.
// Unknown identifiers are reported with ErrUnknownFund.
type FundCatalog interface {
	Resolve(ctx context.Context, fundID string) (Fund, error)
}

// LeverageDirectory maps spot symbols to their listed leveraged tokens and
// back. Symbols without listed tokens are simply absent.
type LeverageDirectory interface {
	BullToken(symbol string) (string, bool)
	BearToken(symbol string) (string, bool)
	// Underlying resolves a leveraged token back to its spot symbol and
	// side; ok is false when token is not a leveraged token.
	Underlying(token string) (symbol string, side LeverageSide, ok bool)
}

// ExecutionGateway executes an order plan against the exchange and reports
// per-order fills. Partial failures are surfaced as *PartialExecutionError
// with the report attached; the gateway never retries on its own.
type ExecutionGateway interface {
	Execute(ctx context.Context, plan OrderPlan) (ExecutionReport, error)
}

// RankingSource lists asset symbols ordered by market-capitalization rank,
// already filtered of fiat and blacklisted entries.
type RankingSource interface {
	// TopSymbols returns symbols with rank in [offset, offset+limit).
	TopSymbols(ctx context.Context, offset, limit int) ([]string, error)
}

// PriceCache is a shared read-through cache for asset prices.
type PriceCache interface {
	SetPrice(ctx context.Context, pair string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, pair string) (float64, time.Time, error)
}

// RankingCache caches resolved ranking windows between operations.
type RankingCache interface {
	SetRanking(ctx context.Context, key string, symbols []string) error
	GetRanking(ctx context.Context, key string) ([]string, error)
}

// PlanStore persists computed plans and their execution reports for audit.
type PlanStore interface {
	SavePlan(ctx context.Context, plan OrderPlan) error
	SaveReport(ctx context.Context, report ExecutionReport) error
	// LastExecution returns when the most recent live execution finished,
	// or ErrNotFound when nothing has executed yet.
	LastExecution(ctx context.Context) (time.Time, error)
}
