package entities

import (
	"strings"
	"time"
)

// Partition is the regulatory sub-ledger bucket a balance lives in.
// Transfer rules differ by destination partition only.
type Partition string

const (
	PartitionRegD Partition = "REG_D"
	PartitionRegS Partition = "REG_S"
)

func Partitions() []Partition {
	return []Partition{PartitionRegD, PartitionRegS}
}

func ParsePartition(value string) (Partition, bool) {
	switch Partition(strings.ToUpper(strings.TrimSpace(value))) {
	case PartitionRegD:
		return PartitionRegD, true
	case PartitionRegS:
		return PartitionRegS, true
	default:
		return "", false
	}
}

// Claims are the compliance attributes attached to a wallet.
// Zero LockupUntil means no lockup; zero ExpiresAt means the claims never expire.
type Claims struct {
	CountryCode string
	Accredited  bool
	LockupUntil time.Time
	ExpiresAt   time.Time
}

// ClaimsRecord is the stored registry row for one wallet.
// Whitelisted is a separate toggle: it is set by claim updates and explicit
// whitelist calls, never inferred from claims presence alone.
type ClaimsRecord struct {
	Wallet      string
	Claims      Claims
	Whitelisted bool
	Revoked     bool
	UpdatedAt   time.Time
}

// HasClaims reports whether the wallet carries claims at all.
// A wallet with an empty country code has no claims and is never compliant.
func (r ClaimsRecord) HasClaims() bool {
	return strings.TrimSpace(r.Claims.CountryCode) != ""
}

// IsZeroWallet reports whether the address denotes the null wallet used as the
// mint source and burn destination.
func IsZeroWallet(wallet string) bool {
	return strings.TrimSpace(wallet) == ""
}
