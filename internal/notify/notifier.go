// Package notify delivers operator alerts about planned and executed fund
// operations. Alerts fan out to all registered senders (Telegram, Discord)
// and can be filtered by event type.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kparichay/indexfund/internal/domain"
)

// Event types an operator can subscribe to.
const (
	EventPlanned  = "planned"  // a plan was computed
	EventExecuted = "executed" // a plan finished executing
	EventFailed   = "failed"   // execution had failed fills
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Only events whose
// type is in the configured allow list are forwarded; an empty list allows
// everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyPlan announces a freshly computed plan.
func (n *Notifier) NotifyPlan(ctx context.Context, plan domain.OrderPlan) error {
	title := fmt.Sprintf("Plan %s (%s)", plan.ID, plan.Op)
	return n.notify(ctx, EventPlanned, title, plan.Summary())
}

// NotifyReport announces the outcome of executing a plan. Executions with
// failed fills are reported under the failed event type.
func (n *Notifier) NotifyReport(ctx context.Context, plan domain.OrderPlan, report domain.ExecutionReport) error {
	failed := report.Failed()
	event := EventExecuted
	title := fmt.Sprintf("Executed %s (%s)", plan.ID, plan.Op)
	if len(failed) > 0 {
		event = EventFailed
		title = fmt.Sprintf("Execution of %s had %d failures", plan.ID, len(failed))
	}

	var b strings.Builder
	mode := "dry run"
	if report.Live {
		mode = "live"
	}
	fmt.Fprintf(&b, "%s: %d fills, sell proceeds %.2f %s",
		mode, len(report.Fills), report.Proceeds(), plan.Currency)
	for _, f := range failed {
		fmt.Fprintf(&b, "\nfailed %s %s: %s", f.Side, f.Pair, f.Error)
	}
	return n.notify(ctx, event, title, b.String())
}

func (n *Notifier) notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// dispatch fans the notification out to all senders. A failing sender does
// not block delivery to the rest; failures are combined into one error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
