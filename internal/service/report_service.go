package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/cryptogyan1/polyarb/internal/executor"
	"github.com/cryptogyan1/polyarb/internal/notify"
	"github.com/cryptogyan1/polyarb/internal/readiness"
)

// DefaultReportSchedule is used when no cron expression is configured.
const DefaultReportSchedule = "@every 1h"

// StatusReader reads the wallet view without side effects.
type StatusReader interface {
	Status(ctx context.Context) (readiness.WalletStatus, error)
	MinAllowance() *big.Int
}

// ExecutionCounter summarises recent executions. Optional.
type ExecutionCounter interface {
	CountByStatus(ctx context.Context, since time.Time) (map[domain.ArbExecStatus]int64, error)
}

// ReportNotifier delivers a report.
type ReportNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ReportService periodically sends a wallet and activity summary.
type ReportService struct {
	status   StatusReader
	counter  ExecutionCounter
	notifier ReportNotifier
	schedule string
	readOnly bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewReportService creates a ReportService. counter may be nil when no
// execution store is configured.
func NewReportService(status StatusReader, counter ExecutionCounter, notifier ReportNotifier, schedule string, readOnly bool, logger *slog.Logger) *ReportService {
	if schedule == "" {
		schedule = DefaultReportSchedule
	}
	return &ReportService{
		status:   status,
		counter:  counter,
		notifier: notifier,
		schedule: schedule,
		readOnly: readOnly,
		logger:   logger.With(slog.String("component", "report_service")),
		now:      time.Now,
	}
}

// Run schedules Report on the configured cron expression until ctx is
// cancelled.
func (s *ReportService) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.schedule, func() {
		if err := s.Send(ctx); err != nil {
			s.logger.WarnContext(ctx, "report failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("service: report schedule %q: %w", s.schedule, err)
	}

	s.logger.InfoContext(ctx, "report scheduler started", slog.String("schedule", s.schedule))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Send builds a report and hands it to the notifier.
func (s *ReportService) Send(ctx context.Context) error {
	body, err := s.Report(ctx)
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, notify.EventReport, "Wallet report", body)
}

// Report renders the current wallet status and, when a counter is set, the
// execution counts of the last 24 hours.
func (s *ReportService) Report(ctx context.Context) (string, error) {
	st, err := s.status.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("service: report status: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "wallet %s (%s)\n", st.Wallet.Hex(), st.Kind)
	fmt.Fprintf(&b, "balance %s USDC\n", executor.FromBaseUnits(st.Balance))
	fmt.Fprintf(&b, "allowance %s USDC, operator approved: %t\n", executor.FromBaseUnits(st.Allowance), st.OperatorApproved)
	if !st.Authorized(s.status.MinAllowance()) {
		b.WriteString("not ready to trade\n")
	}
	if s.readOnly {
		b.WriteString("mode: read-only\n")
	}

	if s.counter != nil {
		counts, err := s.counter.CountByStatus(ctx, s.now().Add(-24*time.Hour))
		if err != nil {
			s.logger.WarnContext(ctx, "count executions failed", slog.String("error", err.Error()))
		} else {
			b.WriteString("last 24h:")
			if len(counts) == 0 {
				b.WriteString(" no executions")
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, string(k))
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%d", k, counts[domain.ArbExecStatus(k)])
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
