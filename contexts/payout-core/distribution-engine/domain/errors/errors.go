package errors

import "errors"

var (
	ErrUnknownSnapshot  = errors.New("snapshot not found")
	ErrCycleInProgress  = errors.New("an unfinished payout cycle already exists")
	ErrCycleDistributed = errors.New("payout cycle already distributed")
	ErrCycleUnderfunded = errors.New("cycle funded amount below required amount")
	ErrInvalidAmount    = errors.New("amount must be a positive integer value")
	ErrInvalidMode      = errors.New("distribution mode must be FULL or PRO_RATA")
	ErrEmptySnapshot    = errors.New("snapshot has no supply to distribute against")
)
