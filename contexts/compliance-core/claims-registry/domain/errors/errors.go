package errors

import "errors"

var (
	ErrUnauthorizedCaller = errors.New("caller is not authorized for this operation")
	ErrZeroWalletAddress  = errors.New("wallet address must not be the zero address")
	ErrMissingCountryCode = errors.New("claims require a two-letter country code")
	ErrInvalidCountryCode = errors.New("country code must be exactly two letters")
	ErrLockupInPast       = errors.New("lockup-until must not be in the past")
	ErrExpiryInPast       = errors.New("expires-at must not be in the past")
	ErrClaimsRequired     = errors.New("wallet has no claims to whitelist")
	ErrWalletNotFound     = errors.New("wallet is not known to the registry")
	ErrInvalidPartition   = errors.New("unknown partition")
)
