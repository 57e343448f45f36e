package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ArbExecutionStore persists arb executions and their legs.
type ArbExecutionStore interface {
	Create(ctx context.Context, exec ArbExecution) error
	GetByID(ctx context.Context, id string) (ArbExecution, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]ArbExecution, error)
	CountByStatus(ctx context.Context, since time.Time) (map[ArbExecStatus]int64, error)
}
