package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// ArbExecutionStore implements domain.ArbExecutionStore. Decimal columns are
// NUMERIC and travel as text in both directions.
type ArbExecutionStore struct {
	pool *pgxpool.Pool
}

// NewArbExecutionStore creates a new ArbExecutionStore.
func NewArbExecutionStore(pool *pgxpool.Pool) *ArbExecutionStore {
	return &ArbExecutionStore{pool: pool}
}

const execColumns = `id::text, market_a, market_b, outcome_a, outcome_b,
	price_a::text, price_b::text, total_cost::text, expected_profit::text,
	outcome, status, skip_reason, read_only,
	balance_usdc::text, spend_usdc::text, units::text,
	readiness_reason, remediation, detected_at, started_at, completed_at`

// Create inserts an execution and its legs in one transaction.
func (s *ArbExecutionStore) Create(ctx context.Context, exec domain.ArbExecution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	opp := exec.Opportunity
	var reason, remediation string
	if r := exec.Readiness; r != nil {
		reason, remediation = string(r.Reason), string(r.Remediation)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO arb_executions (id, market_a, market_b, outcome_a, outcome_b,
			price_a, price_b, total_cost, expected_profit,
			outcome, status, skip_reason, read_only,
			balance_usdc, spend_usdc, units,
			readiness_reason, remediation, detected_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5,
			$6::numeric, $7::numeric, $8::numeric, $9::numeric,
			$10, $11, $12, $13,
			$14::numeric, $15::numeric, $16::numeric,
			$17, $18, $19, $20, $21)`,
		exec.ID, opp.MarketA, opp.MarketB, string(opp.OutcomeA), string(opp.OutcomeB),
		opp.PriceA.String(), opp.PriceB.String(), opp.TotalCost.String(), opp.ExpectedProfit.String(),
		string(exec.Outcome), string(statusOf(exec)), exec.SkipReason, exec.ReadOnly,
		exec.Balance.String(), exec.Spend.String(), exec.Units.String(),
		reason, remediation, nullTime(opp.DetectedAt), exec.StartedAt, exec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert arb_execution: %w", err)
	}

	for i, leg := range exec.Legs {
		_, err = tx.Exec(ctx, `
			INSERT INTO arb_execution_legs (execution_id, leg_index, market_id, token_id, outcome, side, price, size, order_id, status, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11)`,
			exec.ID, i, leg.MarketID, leg.TokenID, string(leg.Outcome), string(leg.Side),
			leg.Price.String(), leg.Size.String(), leg.OrderID, string(leg.Status), leg.Error,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert arb_execution_leg %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit arb_execution: %w", err)
	}
	return nil
}

// Record implements executor.ExecutionRecorder. Skipped opportunities are
// not persisted.
func (s *ArbExecutionStore) Record(ctx context.Context, exec domain.ArbExecution) error {
	if exec.Outcome == domain.ExecSkipped {
		return nil
	}
	return s.Create(ctx, exec)
}

// GetByID returns an execution with its legs.
func (s *ArbExecutionStore) GetByID(ctx context.Context, id string) (domain.ArbExecution, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+execColumns+` FROM arb_executions WHERE id = $1::uuid`, id)
	exec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArbExecution{}, domain.ErrNotFound
		}
		return domain.ArbExecution{}, fmt.Errorf("postgres: get arb_execution %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT market_id, token_id, outcome, side, price::text, size::text, order_id, status, error
		FROM arb_execution_legs WHERE execution_id = $1::uuid ORDER BY leg_index`,
		id,
	)
	if err != nil {
		return domain.ArbExecution{}, fmt.Errorf("postgres: get arb_execution_legs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var leg domain.ArbLeg
		var outcome, side, status, price, size string
		if err := rows.Scan(&leg.MarketID, &leg.TokenID, &outcome, &side, &price, &size, &leg.OrderID, &status, &leg.Error); err != nil {
			return domain.ArbExecution{}, fmt.Errorf("postgres: scan arb_execution_leg: %w", err)
		}
		leg.Outcome = domain.Outcome(outcome)
		leg.Side = domain.OrderSide(side)
		leg.Status = domain.LegStatus(status)
		if err := parseDecimals(
			decimalField{"price", price, &leg.Price},
			decimalField{"size", size, &leg.Size},
		); err != nil {
			return domain.ArbExecution{}, err
		}
		exec.Legs = append(exec.Legs, leg)
	}
	if err := rows.Err(); err != nil {
		return domain.ArbExecution{}, fmt.Errorf("postgres: iterate arb_execution_legs: %w", err)
	}
	return exec, nil
}

// ListRecent returns executions newest first, without legs.
func (s *ArbExecutionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ArbExecution, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+execColumns+`
		FROM arb_executions
		WHERE ($1::timestamptz IS NULL OR started_at >= $1)
		  AND ($2::timestamptz IS NULL OR started_at < $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4`,
		opts.Since, opts.Until, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arb_executions: %w", err)
	}
	defer rows.Close()

	var list []domain.ArbExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan arb_execution: %w", err)
		}
		list = append(list, exec)
	}
	return list, rows.Err()
}

// CountByStatus counts attempted executions per fill status since the given
// time.
func (s *ArbExecutionStore) CountByStatus(ctx context.Context, since time.Time) (map[domain.ArbExecStatus]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM arb_executions
		WHERE started_at >= $1 AND outcome = $2
		GROUP BY status`,
		since, string(domain.ExecAttempted),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: count arb_executions: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ArbExecStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan count: %w", err)
		}
		counts[domain.ArbExecStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanExecution(row pgx.Row) (domain.ArbExecution, error) {
	var (
		exec                                       domain.ArbExecution
		outcomeA, outcomeB, outcome, status        string
		priceA, priceB, total, profit              string
		balance, spend, units, reason, remediation string
		detectedAt                                 *time.Time
	)
	opp := &exec.Opportunity
	if err := row.Scan(&exec.ID, &opp.MarketA, &opp.MarketB, &outcomeA, &outcomeB,
		&priceA, &priceB, &total, &profit,
		&outcome, &status, &exec.SkipReason, &exec.ReadOnly,
		&balance, &spend, &units,
		&reason, &remediation, &detectedAt, &exec.StartedAt, &exec.CompletedAt,
	); err != nil {
		return domain.ArbExecution{}, err
	}

	opp.OutcomeA = domain.Outcome(outcomeA)
	opp.OutcomeB = domain.Outcome(outcomeB)
	if detectedAt != nil {
		opp.DetectedAt = *detectedAt
	}
	exec.Outcome = domain.ExecOutcome(outcome)
	exec.Status = domain.ArbExecStatus(status)
	if reason != "" || remediation != "" {
		exec.Readiness = &domain.ReadinessResult{
			Reason:      domain.ReadinessReason(reason),
			Remediation: domain.Remediation(remediation),
		}
	}

	err := parseDecimals(
		decimalField{"price_a", priceA, &opp.PriceA},
		decimalField{"price_b", priceB, &opp.PriceB},
		decimalField{"total_cost", total, &opp.TotalCost},
		decimalField{"expected_profit", profit, &opp.ExpectedProfit},
		decimalField{"balance_usdc", balance, &exec.Balance},
		decimalField{"spend_usdc", spend, &exec.Spend},
		decimalField{"units", units, &exec.Units},
	)
	return exec, err
}

// decimalField is a NUMERIC column read as text.
type decimalField struct {
	col string
	raw string
	dst *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("postgres: parse %s %q: %w", f.col, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// statusOf returns the stored fill status. Executions that never reached
// the legs are stored as "none".
func statusOf(exec domain.ArbExecution) domain.ArbExecStatus {
	if exec.Status == "" {
		return domain.ArbExecNone
	}
	return exec.Status
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ domain.ArbExecutionStore = (*ArbExecutionStore)(nil)
