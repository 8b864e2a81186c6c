package http

import (
	"fmt"
	"time"

	"meridian/contexts/compliance-core/claims-registry/domain/entities"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SetClaimsRequest struct {
	CountryCode string `json:"country_code"`
	Accredited  bool   `json:"accredited"`
	LockupUntil string `json:"lockup_until,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

type WalletStatusResponse struct {
	Wallet      string `json:"wallet"`
	Compliant   bool   `json:"compliant"`
	CountryCode string `json:"country_code,omitempty"`
	Accredited  bool   `json:"accredited"`
	LockupUntil string `json:"lockup_until,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Whitelisted bool   `json:"whitelisted"`
	Revoked     bool   `json:"revoked"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type PreflightRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Partition string `json:"partition"`
	Amount    string `json:"amount"`
}

type PreflightResponse struct {
	Allowed    bool   `json:"allowed"`
	ReasonCode string `json:"reason_code"`
	Message    string `json:"message"`
}

// ReasonCode renders the structured denial reason as the stable wire code
// operators and the console branch on. Dates use real calendar math here at
// the presentation boundary only.
func ReasonCode(decision entities.Decision) string {
	switch decision.Reason.Kind {
	case entities.ReasonOK:
		return "OK"
	case entities.ReasonWalletNotWhitelisted:
		return "WALLET_NOT_WHITELISTED"
	case entities.ReasonLockupActive:
		return "LOCKUP_ACTIVE_UNTIL_" + reasonDate(decision.Reason.Until)
	case entities.ReasonDestinationNotAccredited:
		return "DESTINATION_NOT_ACCREDITED_REG_D"
	case entities.ReasonRegSRestrictedUSPerson:
		return "REG_S_RESTRICTED_US_PERSON"
	default:
		return "UNKNOWN"
	}
}

// ReasonMessage renders the operator-facing explanation for a decision.
func ReasonMessage(decision entities.Decision) string {
	switch decision.Reason.Kind {
	case entities.ReasonOK:
		return "transfer is admissible"
	case entities.ReasonWalletNotWhitelisted:
		return fmt.Sprintf("wallet %s is not whitelisted or not compliant", decision.Reason.Wallet)
	case entities.ReasonLockupActive:
		return fmt.Sprintf("source wallet is locked up until %s", decision.Reason.Until.UTC().Format(time.RFC3339))
	case entities.ReasonDestinationNotAccredited:
		return "destination wallet is not accredited for the Reg D partition"
	case entities.ReasonRegSRestrictedUSPerson:
		return fmt.Sprintf("US-person destination is restricted for Reg S until %s", decision.Reason.Until.UTC().Format(time.RFC3339))
	default:
		return "unknown decision"
	}
}

func reasonDate(value time.Time) string {
	return value.UTC().Format("2006-1-2")
}
