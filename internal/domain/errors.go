package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrOrderRejected = errors.New("order rejected")
	ErrNetwork       = errors.New("network error")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrLockHeld      = errors.New("lock already held")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAllowanceMissing    = errors.New("allowance missing")
	ErrApprovalMissing     = errors.New("operator approval missing")
)
