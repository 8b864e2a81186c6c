package entities

import "time"

// ReasonKind tags the rule that decided a transfer admission check.
type ReasonKind string

const (
	ReasonOK                       ReasonKind = "ok"
	ReasonWalletNotWhitelisted     ReasonKind = "wallet_not_whitelisted"
	ReasonLockupActive             ReasonKind = "lockup_active"
	ReasonDestinationNotAccredited ReasonKind = "destination_not_accredited_reg_d"
	ReasonRegSRestrictedUSPerson   ReasonKind = "reg_s_restricted_us_person"
)

// Reason is the structured outcome of a policy check. Rendering to a wire
// reason code or operator-facing text happens at the transport boundary.
type Reason struct {
	Kind ReasonKind
	// Wallet is the non-compliant party for whitelist failures.
	Wallet string
	// Until is the end of the lockup or Reg S restriction window.
	Until time.Time
}

// Decision is the admission verdict for a proposed transfer. Denials are
// first-class values, not errors: callers branch on the reason kind.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func Allowed() Decision {
	return Decision{Allowed: true, Reason: Reason{Kind: ReasonOK}}
}

func Denied(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}
