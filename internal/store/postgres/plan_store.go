package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kparichay/indexfund/internal/domain"
)

// PlanStore implements domain.PlanStore using PostgreSQL. Every computed plan
// and every execution report is journaled so an operator can audit what the
// engine decided and what actually filled.
type PlanStore struct {
	pool *pgxpool.Pool
}

// NewPlanStore creates a new PlanStore backed by the given connection pool.
func NewPlanStore(pool *pgxpool.Pool) *PlanStore {
	return &PlanStore{pool: pool}
}

// SavePlan inserts a plan together with its orders in a single transaction.
// Skipped deltas and warnings are stored as JSON on the plan row.
func (s *PlanStore) SavePlan(ctx context.Context, plan domain.OrderPlan) error {
	skipped, err := json.Marshal(plan.Skipped)
	if err != nil {
		return fmt.Errorf("postgres: marshal skipped for plan %s: %w", plan.ID, err)
	}
	warnings, err := json.Marshal(plan.Warnings)
	if err != nil {
		return fmt.Errorf("postgres: marshal warnings for plan %s: %w", plan.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx for plan %s: %w", plan.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertPlan = `
		INSERT INTO plans (id, op, fund_id, currency, skipped, warnings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insertPlan,
		plan.ID, string(plan.Op), plan.FundID, plan.Currency,
		skipped, warnings, plan.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert plan %s: %w", plan.ID, err)
	}

	const insertOrder = `
		INSERT INTO plan_orders (
			id, plan_id, seq, symbol, base, pair, side, quantity, notional, fund_id, op
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for i, o := range plan.Orders {
		if _, err := tx.Exec(ctx, insertOrder,
			o.ID, plan.ID, i, o.Symbol, o.Base, o.Pair,
			string(o.Side), o.Quantity, o.Notional, o.FundID, string(o.Op),
		); err != nil {
			return fmt.Errorf("postgres: insert order %s for plan %s: %w", o.ID, plan.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit plan %s: %w", plan.ID, err)
	}
	return nil
}

// SaveReport inserts an execution report and its fills in a single
// transaction.
func (s *PlanStore) SaveReport(ctx context.Context, report domain.ExecutionReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx for report %s: %w", report.PlanID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertReport = `
		INSERT INTO execution_reports (plan_id, live, started_at, finished_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertReport,
		report.PlanID, report.Live, report.Started, report.Finished,
	); err != nil {
		return fmt.Errorf("postgres: insert report for plan %s: %w", report.PlanID, err)
	}

	const insertFill = `
		INSERT INTO execution_fills (
			plan_id, order_id, pair, side, status, quantity, proceeds, error, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, f := range report.Fills {
		if _, err := tx.Exec(ctx, insertFill,
			report.PlanID, f.OrderID, f.Pair, string(f.Side), string(f.Status),
			f.Quantity, f.Proceeds, f.Error, f.ExecutedAt,
		); err != nil {
			return fmt.Errorf("postgres: insert fill %s for plan %s: %w", f.OrderID, report.PlanID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit report for plan %s: %w", report.PlanID, err)
	}
	return nil
}

// LastExecution returns the finish time of the most recent live execution.
// Dry runs do not count: they leave balances untouched.
func (s *PlanStore) LastExecution(ctx context.Context) (time.Time, error) {
	const query = `
		SELECT finished_at FROM execution_reports
		WHERE live ORDER BY finished_at DESC LIMIT 1`
	var finished time.Time
	if err := s.pool.QueryRow(ctx, query).Scan(&finished); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("postgres: last execution: %w", err)
	}
	return finished, nil
}
