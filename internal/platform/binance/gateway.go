package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kparichay/indexfund/internal/domain"
)

// GatewayConfig holds execution parameters.
type GatewayConfig struct {
	// Live submits real orders. When false every order is logged and
	// reported as skipped (dry run).
	Live bool
	// FeeRate is the taker fee deducted from reported proceeds.
	FeeRate float64
	// FillTimeout bounds how long a market order may stay unfilled before
	// the gateway reports it failed.
	FillTimeout time.Duration
	// PollInterval is the delay between fill status checks.
	PollInterval time.Duration
	// MaxParallel caps concurrent order submissions per phase.
	MaxParallel int
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.FeeRate <= 0 {
		c.FeeRate = 0.001
	}
	if c.FillTimeout <= 0 {
		c.FillTimeout = 2 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 4
	}
	return c
}

// Gateway implements domain.ExecutionGateway with Binance spot market
// orders. Sells are submitted concurrently and must all settle before any
// buy is submitted, because the buys spend the currency the sells free up;
// the buy phase is then submitted concurrently as well. The gateway never
// retries: after a partial failure the caller re-snapshots and re-plans the
// residual delta.
type Gateway struct {
	client *Client
	prices domain.PriceOracle
	cfg    GatewayConfig
	logger *slog.Logger
}

// NewGateway creates a Gateway executing through client. prices converts
// fill proceeds into the plan currency when orders route through another
// base.
func NewGateway(client *Client, prices domain.PriceOracle, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		prices: prices,
		cfg:    cfg.withDefaults(),
		logger: logger.With(slog.String("component", "gateway")),
	}
}

// Execute runs the plan and returns per-order fills. When some orders fail
// and others fill, the report is returned together with a
// *domain.PartialExecutionError.
func (g *Gateway) Execute(ctx context.Context, plan domain.OrderPlan) (domain.ExecutionReport, error) {
	report := domain.ExecutionReport{
		PlanID:  plan.ID,
		Live:    g.cfg.Live,
		Started: time.Now().UTC(),
	}

	if !g.cfg.Live {
		for _, o := range plan.Orders {
			g.logger.InfoContext(ctx, "dry run, order not submitted",
				slog.String("pair", o.Pair),
				slog.String("side", string(o.Side)),
				slog.Float64("quantity", o.Quantity),
				slog.Float64("notional", o.Notional),
			)
			report.Fills = append(report.Fills, domain.Fill{
				OrderID:    o.ID,
				Pair:       o.Pair,
				Side:       o.Side,
				Status:     domain.FillStatusSkipped,
				ExecutedAt: time.Now().UTC(),
			})
		}
		report.Finished = time.Now().UTC()
		return report, nil
	}

	sellFills, err := g.executePhase(ctx, plan.Sells(), plan.Currency)
	report.Fills = append(report.Fills, sellFills...)
	if err != nil {
		report.Finished = time.Now().UTC()
		return report, err
	}

	buyFills, err := g.executePhase(ctx, plan.Buys(), plan.Currency)
	report.Fills = append(report.Fills, buyFills...)
	report.Finished = time.Now().UTC()
	if err != nil {
		return report, err
	}

	if failed := report.Failed(); len(failed) > 0 {
		if len(failed) == len(report.Fills) {
			return report, fmt.Errorf("plan %s: all %d orders failed", plan.ID, len(failed))
		}
		return report, &domain.PartialExecutionError{Report: report}
	}
	return report, nil
}

// executePhase submits one side's orders concurrently and collects fills.
// Individual order failures are recorded, not returned; only context
// cancellation aborts the phase.
func (g *Gateway) executePhase(ctx context.Context, orders []domain.Order, currency string) ([]domain.Fill, error) {
	fills := make([]domain.Fill, len(orders))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.MaxParallel)
	for i, o := range orders {
		i, o := i, o
		eg.Go(func() error {
			fill := g.executeOrder(ctx, o, currency)
			mu.Lock()
			fills[i] = fill
			mu.Unlock()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fills, err
	}
	return fills, nil
}

// executeOrder submits one market order and polls until it fills or the
// timeout lapses.
func (g *Gateway) executeOrder(ctx context.Context, o domain.Order, currency string) domain.Fill {
	fill := domain.Fill{
		OrderID: o.ID,
		Pair:    o.Pair,
		Side:    o.Side,
	}

	side := binance.SideTypeBuy
	if o.Side == domain.OrderSideSell {
		side = binance.SideTypeSell
	}
	if err := g.client.wait(ctx); err != nil {
		return failFill(fill, err)
	}
	resp, err := g.client.api.NewCreateOrderService().
		Symbol(o.Pair).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(formatQuantity(o.Quantity)).
		Do(ctx)
	if err != nil {
		return failFill(fill, fmt.Errorf("create order: %w", err))
	}

	status := resp.Status
	executedQty := resp.ExecutedQuantity
	quoteQty := resp.CummulativeQuoteQuantity
	deadline := time.Now().Add(g.cfg.FillTimeout)
	for status != binance.OrderStatusTypeFilled {
		if time.Now().After(deadline) {
			return failFill(fill, fmt.Errorf("order %d not filled within %s", resp.OrderID, g.cfg.FillTimeout))
		}
		select {
		case <-ctx.Done():
			return failFill(fill, ctx.Err())
		case <-time.After(g.cfg.PollInterval):
		}
		if err := g.client.wait(ctx); err != nil {
			return failFill(fill, err)
		}
		order, err := g.client.api.NewGetOrderService().
			Symbol(o.Pair).
			OrderID(resp.OrderID).
			Do(ctx)
		if err != nil {
			return failFill(fill, fmt.Errorf("poll order %d: %w", resp.OrderID, err))
		}
		status = order.Status
		executedQty = order.ExecutedQuantity
		quoteQty = order.CummulativeQuoteQuantity
	}

	qty, _ := strconv.ParseFloat(executedQty, 64)
	quote, _ := strconv.ParseFloat(quoteQty, 64)
	fill.Status = domain.FillStatusFilled
	fill.Quantity = qty
	fill.Proceeds = g.toPlanCurrency(ctx, o.Base, currency, quote*(1-g.cfg.FeeRate))
	fill.ExecutedAt = time.Now().UTC()

	g.logger.InfoContext(ctx, "order filled",
		slog.String("pair", o.Pair),
		slog.String("side", string(o.Side)),
		slog.Float64("quantity", qty),
		slog.Float64("proceeds", fill.Proceeds),
	)
	return fill
}

// toPlanCurrency converts a quote-denominated amount into the plan's
// valuation currency. Orders routed through a fallback base fill in that
// base's units; the execution report keeps a single currency. A missing
// price leaves the amount in base units rather than failing a fill that
// already executed.
func (g *Gateway) toPlanCurrency(ctx context.Context, base, currency string, amount float64) float64 {
	if base == currency || amount == 0 || g.prices == nil {
		return amount
	}
	price, err := g.prices.Price(ctx, base, currency)
	if err != nil {
		g.logger.WarnContext(ctx, "proceeds left in base units, no conversion price",
			slog.String("base", base),
			slog.String("currency", currency),
			slog.String("error", err.Error()),
		)
		return amount
	}
	return amount * price
}

func failFill(fill domain.Fill, err error) domain.Fill {
	fill.Status = domain.FillStatusFailed
	fill.Error = err.Error()
	fill.ExecutedAt = time.Now().UTC()
	return fill
}

// formatQuantity renders a quantity without float artifacts; the planner has
// already quantized it to the pair's lot step.
func formatQuantity(qty float64) string {
	return decimal.NewFromFloat(qty).String()
}
