package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFund         = errors.New("invalid fund weights")
	ErrInsufficientValue   = errors.New("portfolio value below minimum")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrUnknownFund         = errors.New("unknown fund")
	ErrNoLiquidAssets      = errors.New("nothing to liquidate")
	ErrLeverageNotEligible = errors.New("account not eligible for leveraged tokens")
	ErrNotFound            = errors.New("not found")
	ErrStaleBalance        = errors.New("exchange balance not yet settled")
)

// PartialExecutionError is returned by the execution gateway when some of a
// plan's orders filled and others failed. The caller reconciles by taking a
// fresh snapshot and re-planning the residual delta, never by resubmitting
// the original plan.
type PartialExecutionError struct {
	Report ExecutionReport
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("plan %s: %d of %d orders failed",
		e.Report.PlanID, len(e.Report.Failed()), len(e.Report.Fills))
}
