package errors

import "errors"

var (
	ErrInvalidAmount         = errors.New("amount must be a positive integer count of smallest units")
	ErrInsufficientBalance   = errors.New("insufficient partition balance")
	ErrInvalidPartition      = errors.New("unknown partition")
	ErrZeroWalletAddress     = errors.New("wallet address must not be the zero address")
	ErrUnauthorizedCaller    = errors.New("caller is not authorized for this operation")
	ErrIdempotencyKeyMissing = errors.New("idempotency key is required")
	ErrIdempotencyConflict   = errors.New("idempotency key was already used with a different request")
)
