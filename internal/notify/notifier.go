// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Telegram, Discord) and can be
// filtered by event type so operators receive only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// Event types understood by Notify.
const (
	EventArbExecuted = "arb_executed"
	EventArbAborted  = "arb_aborted"
	EventLegFailed   = "leg_failed"
	EventReport      = "report"
)

// AlertPrefix marks titles that need attention.
const AlertPrefix = "⚠ "

func isAlert(title string) bool { return strings.HasPrefix(title, AlertPrefix) }

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a set
// of allowed event types; Notify only forwards messages whose event type is in
// the allowed set, while NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded by Notify.
// If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is registered.
func (n *Notifier) Enabled() bool { return n != nil && len(n.senders) > 0 }

// Notify sends a notification to all senders only if the event type is in the
// allowed list. If no events were configured (empty list), all events pass.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// Record turns a finished execution into a notification. Skipped
// opportunities are not reported. Messages are informational only.
func (n *Notifier) Record(ctx context.Context, exec domain.ArbExecution) error {
	event, title, ok := classify(exec)
	if !ok {
		return nil
	}
	return n.Notify(ctx, event, title, FormatExecution(exec))
}

func classify(exec domain.ArbExecution) (event, title string, ok bool) {
	label := exec.Opportunity.Label()
	switch exec.Outcome {
	case domain.ExecAborted:
		return EventArbAborted, AlertPrefix + "Arb aborted: " + label, true
	case domain.ExecAttempted:
		switch exec.Status {
		case domain.ArbExecFilled:
			title := "Arb executed: " + label
			if exec.ReadOnly {
				title = "Arb simulated: " + label
			}
			return EventArbExecuted, title, true
		case domain.ArbExecPartial:
			return EventLegFailed, AlertPrefix + "Unhedged leg: " + label, true
		default:
			return EventLegFailed, AlertPrefix + "Both legs failed: " + label, true
		}
	}
	return "", "", false
}

// FormatExecution renders the body of an execution notification.
func FormatExecution(exec domain.ArbExecution) string {
	var b strings.Builder
	opp := exec.Opportunity
	fmt.Fprintf(&b, "cost %s (%s + %s), edge %s\n", opp.TotalCost, opp.PriceA, opp.PriceB, opp.ExpectedProfit)
	if exec.Outcome == domain.ExecAborted {
		fmt.Fprintf(&b, "reason: %s\n", exec.SkipReason)
		if r := exec.Readiness; r != nil && r.Remediation != domain.RemediationNone {
			fmt.Fprintf(&b, "remediation: %s\n", r.Remediation)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	fmt.Fprintf(&b, "units %s, spend %s, balance %s\n", exec.Units, exec.Spend, exec.Balance)
	for _, l := range exec.Legs {
		fmt.Fprintf(&b, "%s %s @ %s: %s", l.MarketID, l.Outcome, l.Price, l.Status)
		if l.OrderID != "" {
			fmt.Fprintf(&b, " (%s)", l.OrderID)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a single
// sender failure does not prevent delivery to the remaining senders.
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
