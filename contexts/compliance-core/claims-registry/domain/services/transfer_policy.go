package services

import (
	"time"

	"meridian/contexts/compliance-core/claims-registry/domain/entities"

	"github.com/shopspring/decimal"
)

// RegSRestrictionWindow is the distribution compliance period for US persons
// receiving Reg S partition tokens, measured from the holder's lockup-until.
const RegSRestrictionWindow = 180 * 24 * time.Hour

const restrictedUSCountryCode = "US"

// IsCompliant is the pure wallet compliance predicate. Callers resolve the
// record first; a wallet unknown to the registry is passed as a zero-value
// record carrying only the address.
func IsCompliant(record entities.ClaimsRecord, now time.Time) bool {
	if entities.IsZeroWallet(record.Wallet) {
		return false
	}
	if record.Revoked || !record.Whitelisted || !record.HasClaims() {
		return false
	}
	if !record.Claims.ExpiresAt.IsZero() && !record.Claims.ExpiresAt.After(now) {
		return false
	}
	return true
}

// EvaluateTransfer runs the admission rules in their mandated order and stops
// at the first failing check. A zero-wallet source denotes a mint and skips
// source rules; a zero-wallet destination denotes a burn and skips
// destination rules.
//
// The amount is reserved for future per-transfer limits and takes no part in
// any rule yet.
func EvaluateTransfer(
	from entities.ClaimsRecord,
	to entities.ClaimsRecord,
	partition entities.Partition,
	_ decimal.Decimal,
	now time.Time,
) entities.Decision {
	mint := entities.IsZeroWallet(from.Wallet)
	burn := entities.IsZeroWallet(to.Wallet)

	if !mint && !IsCompliant(from, now) {
		return entities.Denied(entities.Reason{
			Kind:   entities.ReasonWalletNotWhitelisted,
			Wallet: from.Wallet,
		})
	}
	if !burn && !IsCompliant(to, now) {
		return entities.Denied(entities.Reason{
			Kind:   entities.ReasonWalletNotWhitelisted,
			Wallet: to.Wallet,
		})
	}
	if !mint && !from.Claims.LockupUntil.IsZero() && from.Claims.LockupUntil.After(now) {
		return entities.Denied(entities.Reason{
			Kind:   entities.ReasonLockupActive,
			Wallet: from.Wallet,
			Until:  from.Claims.LockupUntil,
		})
	}
	if !burn {
		if denied, reason := destinationPartitionDenial(to, partition, now); denied {
			return entities.Denied(reason)
		}
	}
	return entities.Allowed()
}

// EvaluateForcedTransfer admits controller-initiated remediation transfers.
// Source lockup and compliance rules are bypassed; the destination must still
// satisfy full compliance and partition rules.
func EvaluateForcedTransfer(
	to entities.ClaimsRecord,
	partition entities.Partition,
	_ decimal.Decimal,
	now time.Time,
) entities.Decision {
	if entities.IsZeroWallet(to.Wallet) {
		return entities.Allowed()
	}
	if !IsCompliant(to, now) {
		return entities.Denied(entities.Reason{
			Kind:   entities.ReasonWalletNotWhitelisted,
			Wallet: to.Wallet,
		})
	}
	if denied, reason := destinationPartitionDenial(to, partition, now); denied {
		return entities.Denied(reason)
	}
	return entities.Allowed()
}

func destinationPartitionDenial(
	to entities.ClaimsRecord,
	partition entities.Partition,
	now time.Time,
) (bool, entities.Reason) {
	switch partition {
	case entities.PartitionRegD:
		if !to.Claims.Accredited {
			return true, entities.Reason{
				Kind:   entities.ReasonDestinationNotAccredited,
				Wallet: to.Wallet,
			}
		}
	case entities.PartitionRegS:
		if to.Claims.CountryCode == restrictedUSCountryCode {
			window := to.Claims.LockupUntil.Add(RegSRestrictionWindow)
			if now.Before(window) {
				return true, entities.Reason{
					Kind:   entities.ReasonRegSRestrictedUSPerson,
					Wallet: to.Wallet,
					Until:  window,
				}
			}
		}
	}
	return false, entities.Reason{}
}
