package domain

import (
	"fmt"
	"math/big"
)

// ReadinessReason is the typed cause of a failed readiness check.
type ReadinessReason string

const (
	ReasonNone                ReadinessReason = ""
	ReasonInsufficientBalance ReadinessReason = "insufficient_balance"
	ReasonAllowanceMissing    ReadinessReason = "allowance_missing"
	ReasonApprovalMissing     ReadinessReason = "approval_missing"
)

// Remediation says who has to fix a failed readiness check.
type Remediation string

const (
	RemediationNone   Remediation = ""
	RemediationAuto   Remediation = "auto"   // the bot sends the approval itself
	RemediationManual Remediation = "manual" // the wallet's controller must act
)

// ReadinessResult is the outcome of one pre-trade readiness check.
type ReadinessResult struct {
	Ready       bool
	Reason      ReadinessReason
	Remediation Remediation
	WalletKind  WalletKind

	// Available and Required are USDC amounts in 6-decimal base units.
	Available *big.Int
	Required  *big.Int

	Remediated bool     // an approval transaction was sent and verified
	TxHashes   []string // approval transactions sent during this check
	Cause      error    // why automatic remediation failed, if it did
}

// Err returns nil when ready, otherwise a *ReadinessError.
func (r ReadinessResult) Err() error {
	if r.Ready {
		return nil
	}
	return &ReadinessError{Result: r}
}

// ReadinessError wraps a failed ReadinessResult so it can travel as an error.
type ReadinessError struct {
	Result ReadinessResult
}

func (e *ReadinessError) Error() string {
	r := e.Result
	switch r.Reason {
	case ReasonInsufficientBalance:
		return fmt.Sprintf("insufficient balance: available=%s required=%s", r.Available, r.Required)
	default:
		msg := fmt.Sprintf("%s (%s remediation)", r.Reason, r.Remediation)
		if r.Cause != nil {
			msg += ": " + r.Cause.Error()
		}
		return msg
	}
}

// Is maps the reason onto the matching sentinel error.
func (e *ReadinessError) Is(target error) bool {
	switch e.Result.Reason {
	case ReasonInsufficientBalance:
		return target == ErrInsufficientBalance
	case ReasonAllowanceMissing:
		return target == ErrAllowanceMissing
	case ReasonApprovalMissing:
		return target == ErrApprovalMissing
	}
	return false
}

// Unwrap exposes the remediation failure, if any.
func (e *ReadinessError) Unwrap() error { return e.Result.Cause }
