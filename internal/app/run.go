package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kparichay/indexfund/internal/domain"
	"github.com/kparichay/indexfund/internal/fund"
)

// Execute runs one operation end to end: plan, journal, notify, execute,
// journal the report. The live price feed, when enabled, runs alongside the
// operation and is stopped once it completes.
func (a *App) Execute(ctx context.Context, deps *Dependencies, req Request) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, feedCtx := errgroup.WithContext(runCtx)
	if deps.Feed != nil {
		g.Go(func() error {
			err := deps.Feed.Run(feedCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	opErr := a.runOperation(runCtx, deps, req)

	cancel()
	if err := g.Wait(); err != nil && opErr == nil {
		return fmt.Errorf("app: price feed: %w", err)
	}
	return opErr
}

func (a *App) runOperation(ctx context.Context, deps *Dependencies, req Request) error {
	plan, err := a.plan(ctx, deps, req)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "plan ready",
		slog.String("plan_id", plan.ID),
		slog.String("op", string(plan.Op)),
		slog.Int("orders", len(plan.Orders)),
		slog.Int("skipped", len(plan.Skipped)),
		slog.Float64("turnover", plan.Turnover()),
	)
	fmt.Println(plan.Summary())

	if deps.PlanStore != nil {
		if err := deps.PlanStore.SavePlan(ctx, plan); err != nil {
			return fmt.Errorf("app: journal plan: %w", err)
		}
	}
	if err := deps.Notifier.NotifyPlan(ctx, plan); err != nil {
		a.logger.WarnContext(ctx, "plan notification failed", slog.String("error", err.Error()))
	}

	if plan.Empty() {
		a.logger.InfoContext(ctx, "nothing to execute", slog.String("plan_id", plan.ID))
		return nil
	}

	if err := a.checkSettled(ctx, deps, req); err != nil {
		return err
	}

	report, execErr := deps.Gateway.Execute(ctx, plan)
	if len(report.Fills) > 0 {
		if deps.PlanStore != nil {
			if err := deps.PlanStore.SaveReport(ctx, report); err != nil {
				a.logger.ErrorContext(ctx, "journal report failed", slog.String("error", err.Error()))
			}
		}
		if err := deps.Notifier.NotifyReport(ctx, plan, report); err != nil {
			a.logger.WarnContext(ctx, "report notification failed", slog.String("error", err.Error()))
		}
	}
	if execErr != nil {
		return fmt.Errorf("app: execute plan %s: %w", plan.ID, execErr)
	}

	a.logger.InfoContext(ctx, "execution complete",
		slog.String("plan_id", plan.ID),
		slog.Bool("live", report.Live),
		slog.Int("fills", len(report.Fills)),
		slog.Float64("proceeds", report.Proceeds()),
	)
	return nil
}

// checkSettled refuses a live execution too soon after the previous one:
// exchange balances lag filled orders, and planning against unsettled state
// would trade the same value twice. Dry runs are exempt, as are setups
// without a plan journal to consult.
func (a *App) checkSettled(ctx context.Context, deps *Dependencies, req Request) error {
	wait := a.cfg.Gateway.SettleWait.Duration
	if !req.Live || deps.PlanStore == nil || wait <= 0 {
		return nil
	}

	last, err := deps.PlanStore.LastExecution(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		a.logger.WarnContext(ctx, "settlement check skipped",
			slog.String("error", err.Error()))
		return nil
	}
	if since := time.Since(last); since < wait {
		return fmt.Errorf("app: previous execution finished %s ago, need %s between live runs: %w",
			since.Round(time.Second), wait, domain.ErrStaleBalance)
	}
	return nil
}

// plan dispatches the request to the matching engine entry point.
func (a *App) plan(ctx context.Context, deps *Dependencies, req Request) (domain.OrderPlan, error) {
	switch req.Op {
	case "rebalance":
		if req.Fund == "" {
			return domain.OrderPlan{}, errors.New("app: rebalance requires -fund")
		}
		return deps.Rebalancer.Rebalance(ctx, req.Fund, fund.RebalanceOptions{
			Weights: req.Weights,
			Exclude: req.Exclude,
			Keep:    req.Keep,
		})

	case "reinvest":
		if req.Fund == "" || req.TargetFund == "" {
			return domain.OrderPlan{}, errors.New("app: reinvest requires -fund and -target-fund")
		}
		return deps.Reinvestor.Reinvest(ctx, req.Fund, req.TargetFund, req.Fraction, fund.RebalanceOptions{
			Weights: req.Weights,
			Exclude: req.Exclude,
			Keep:    req.Keep,
		})

	case "liquidate":
		return deps.Liquidator.Liquidate(ctx, fund.LiquidateOptions{
			Symbols:    req.Symbols,
			Keep:       req.Keep,
			ToCurrency: req.ToCurrency,
		})

	case "leverage-bull", "leverage-bear":
		opts := fund.LeverageOptions{Symbols: req.Symbols, Amounts: req.Amounts}
		var (
			plan      domain.OrderPlan
			positions []domain.LeveragedPosition
			err       error
		)
		if req.Op == "leverage-bull" {
			plan, positions, err = deps.Leverage.Bull(ctx, opts)
		} else {
			plan, positions, err = deps.Leverage.Bear(ctx, opts)
		}
		if err != nil {
			return domain.OrderPlan{}, err
		}
		for _, p := range positions {
			a.logger.InfoContext(ctx, "leveraged position planned",
				slog.String("underlying", p.Underlying.Symbol),
				slog.String("token", p.Token),
				slog.String("side", string(p.Side)),
				slog.Float64("notional", p.Notional),
			)
		}
		return plan, nil

	case "leverage-liquidate":
		return deps.Leverage.Liquidate(ctx)

	default:
		return domain.OrderPlan{}, fmt.Errorf("app: unsupported op %q", req.Op)
	}
}
