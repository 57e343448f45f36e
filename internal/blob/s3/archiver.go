package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// ExecutionArchiver writes one JSON document per execution to object
// storage under executions/YYYY/MM/DD/<id>.json. It implements
// executor.ExecutionRecorder.
type ExecutionArchiver struct {
	writer domain.BlobWriter
	prefix string
}

// NewExecutionArchiver creates an archiver. prefix, if set, is prepended to
// every object key.
func NewExecutionArchiver(writer domain.BlobWriter, prefix string) *ExecutionArchiver {
	return &ExecutionArchiver{writer: writer, prefix: prefix}
}

// Record archives exec. Skipped opportunities are not archived.
func (a *ExecutionArchiver) Record(ctx context.Context, exec domain.ArbExecution) error {
	if exec.Outcome == domain.ExecSkipped {
		return nil
	}
	data, err := json.Marshal(newExecutionDoc(exec))
	if err != nil {
		return fmt.Errorf("s3blob: marshal execution %s: %w", exec.ID, err)
	}
	path := a.prefix + archivePath(exec)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive execution %s: %w", exec.ID, err)
	}
	return nil
}

func archivePath(exec domain.ArbExecution) string {
	ts := exec.StartedAt.UTC()
	return fmt.Sprintf("executions/%s/%s.json", ts.Format("2006/01/02"), exec.ID)
}

// executionDoc is the archived form of an execution. Amounts are decimal
// strings.
type executionDoc struct {
	ID             string    `json:"id"`
	Opportunity    string    `json:"opportunity"`
	PriceA         string    `json:"price_a"`
	PriceB         string    `json:"price_b"`
	TotalCost      string    `json:"total_cost"`
	ExpectedProfit string    `json:"expected_profit"`
	Outcome        string    `json:"outcome"`
	Status         string    `json:"status"`
	SkipReason     string    `json:"skip_reason,omitempty"`
	ReadOnly       bool      `json:"read_only"`
	Balance        string    `json:"balance_usdc"`
	Spend          string    `json:"spend_usdc"`
	Units          string    `json:"units"`
	Readiness      *readyDoc `json:"readiness,omitempty"`
	Legs           []legDoc  `json:"legs"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

type readyDoc struct {
	Ready       bool     `json:"ready"`
	Reason      string   `json:"reason,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
	WalletKind  string   `json:"wallet_kind,omitempty"`
	Available   string   `json:"available,omitempty"`
	Required    string   `json:"required,omitempty"`
	TxHashes    []string `json:"tx_hashes,omitempty"`
	Cause       string   `json:"cause,omitempty"`
}

type legDoc struct {
	MarketID string `json:"market_id"`
	TokenID  string `json:"token_id"`
	Outcome  string `json:"outcome"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Size     string `json:"size"`
	OrderID  string `json:"order_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

func newExecutionDoc(exec domain.ArbExecution) executionDoc {
	opp := exec.Opportunity
	doc := executionDoc{
		ID:             exec.ID,
		Opportunity:    opp.Label(),
		PriceA:         opp.PriceA.String(),
		PriceB:         opp.PriceB.String(),
		TotalCost:      opp.TotalCost.String(),
		ExpectedProfit: opp.ExpectedProfit.String(),
		Outcome:        string(exec.Outcome),
		Status:         string(exec.Status),
		SkipReason:     exec.SkipReason,
		ReadOnly:       exec.ReadOnly,
		Balance:        exec.Balance.String(),
		Spend:          exec.Spend.String(),
		Units:          exec.Units.String(),
		Legs:           make([]legDoc, 0, len(exec.Legs)),
		StartedAt:      exec.StartedAt,
		CompletedAt:    exec.CompletedAt,
	}
	if r := exec.Readiness; r != nil {
		rd := &readyDoc{
			Ready:       r.Ready,
			Reason:      string(r.Reason),
			Remediation: string(r.Remediation),
			WalletKind:  string(r.WalletKind),
			TxHashes:    r.TxHashes,
		}
		if r.Available != nil {
			rd.Available = r.Available.String()
		}
		if r.Required != nil {
			rd.Required = r.Required.String()
		}
		if r.Cause != nil {
			rd.Cause = r.Cause.Error()
		}
		doc.Readiness = rd
	}
	for _, l := range exec.Legs {
		doc.Legs = append(doc.Legs, legDoc{
			MarketID: l.MarketID,
			TokenID:  l.TokenID,
			Outcome:  string(l.Outcome),
			Side:     string(l.Side),
			Price:    l.Price.String(),
			Size:     l.Size.String(),
			OrderID:  l.OrderID,
			Status:   string(l.Status),
			Error:    l.Error,
		})
	}
	return doc
}
