package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	application "meridian/contexts/compliance-core/claims-registry/application"
	"meridian/contexts/compliance-core/claims-registry/domain/entities"
	domainerrors "meridian/contexts/compliance-core/claims-registry/domain/errors"
	"meridian/contexts/compliance-core/claims-registry/ports"
)

type SetClaimsCommand struct {
	CallerID    string
	Wallet      string
	CountryCode string
	Accredited  bool
	LockupUntil time.Time
	ExpiresAt   time.Time
}

type RevokeCommand struct {
	CallerID string
	Wallet   string
}

type WhitelistCommand struct {
	CallerID string
	Wallet   string
}

type UseCase struct {
	Repository ports.Repository
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Authority  ports.Authority
	// Guard serializes registry mutations against transfer admission so a
	// compliance check never races a revoke mid-flight. Shared with the
	// transfer gate by the composition root.
	Guard  *sync.RWMutex
	Logger *slog.Logger
}

// SetClaims overwrites the wallet's claims and marks it whitelisted. An
// existing revocation is kept: only an explicit whitelist call clears it.
func (uc UseCase) SetClaims(ctx context.Context, cmd SetClaimsCommand) (entities.ClaimsRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !uc.Authority.Allows(cmd.CallerID, ports.CapabilityOracle) {
		logger.Warn("claims update rejected for unauthorized caller",
			"event", "claims_set_unauthorized",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"caller_id", strings.TrimSpace(cmd.CallerID),
			"wallet", strings.TrimSpace(cmd.Wallet),
		)
		return entities.ClaimsRecord{}, domainerrors.ErrUnauthorizedCaller
	}

	wallet := strings.TrimSpace(cmd.Wallet)
	now := uc.now()
	claims := entities.Claims{
		CountryCode: strings.ToUpper(strings.TrimSpace(cmd.CountryCode)),
		Accredited:  cmd.Accredited,
		LockupUntil: cmd.LockupUntil.UTC(),
		ExpiresAt:   cmd.ExpiresAt.UTC(),
	}
	if cmd.LockupUntil.IsZero() {
		claims.LockupUntil = time.Time{}
	}
	if cmd.ExpiresAt.IsZero() {
		claims.ExpiresAt = time.Time{}
	}
	if err := validateClaims(wallet, claims, now); err != nil {
		logger.Warn("claims update rejected for invalid input",
			"event", "claims_set_invalid_input",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"wallet", wallet,
			"country_code", claims.CountryCode,
			"error", err.Error(),
		)
		return entities.ClaimsRecord{}, err
	}

	uc.lock()
	defer uc.unlock()

	record, err := uc.Repository.GetRecord(ctx, wallet)
	if err != nil && !errors.Is(err, domainerrors.ErrWalletNotFound) {
		return entities.ClaimsRecord{}, err
	}
	record.Wallet = wallet
	record.Claims = claims
	record.Whitelisted = true
	record.UpdatedAt = now
	if err := uc.Repository.UpsertRecord(ctx, record); err != nil {
		logger.Error("claims update persistence failed",
			"event", "claims_set_persistence_failed",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"wallet", wallet,
			"error", err.Error(),
		)
		return entities.ClaimsRecord{}, err
	}
	if err := uc.appendOutbox(ctx, "compliance.claims_updated", wallet, map[string]any{
		"wallet":       wallet,
		"country_code": claims.CountryCode,
		"accredited":   claims.Accredited,
		"lockup_until": timestampField(claims.LockupUntil),
		"expires_at":   timestampField(claims.ExpiresAt),
		"whitelisted":  record.Whitelisted,
		"revoked":      record.Revoked,
	}); err != nil {
		return entities.ClaimsRecord{}, err
	}

	logger.Info("wallet claims updated",
		"event", "claims_set_completed",
		"module", "compliance-core/claims-registry",
		"layer", "application",
		"wallet", wallet,
		"country_code", claims.CountryCode,
		"accredited", claims.Accredited,
		"revoked", record.Revoked,
	)
	return record, nil
}

// Revoke marks the wallet revoked and removes it from the whitelist. Revoking
// an already revoked wallet changes nothing but still emits the event.
func (uc UseCase) Revoke(ctx context.Context, cmd RevokeCommand) (entities.ClaimsRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !uc.Authority.Allows(cmd.CallerID, ports.CapabilityOracle) {
		logger.Warn("revoke rejected for unauthorized caller",
			"event", "claims_revoke_unauthorized",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"caller_id", strings.TrimSpace(cmd.CallerID),
			"wallet", strings.TrimSpace(cmd.Wallet),
		)
		return entities.ClaimsRecord{}, domainerrors.ErrUnauthorizedCaller
	}
	wallet := strings.TrimSpace(cmd.Wallet)
	if entities.IsZeroWallet(wallet) {
		return entities.ClaimsRecord{}, domainerrors.ErrZeroWalletAddress
	}

	uc.lock()
	defer uc.unlock()

	record, err := uc.Repository.GetRecord(ctx, wallet)
	if err != nil {
		if errors.Is(err, domainerrors.ErrWalletNotFound) {
			record = entities.ClaimsRecord{Wallet: wallet}
		} else {
			return entities.ClaimsRecord{}, err
		}
	}
	now := uc.now()
	record.Wallet = wallet
	record.Revoked = true
	record.Whitelisted = false
	record.UpdatedAt = now
	if err := uc.Repository.UpsertRecord(ctx, record); err != nil {
		logger.Error("revoke persistence failed",
			"event", "claims_revoke_persistence_failed",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"wallet", wallet,
			"error", err.Error(),
		)
		return entities.ClaimsRecord{}, err
	}
	if err := uc.appendOutbox(ctx, "compliance.wallet_revoked", wallet, map[string]any{
		"wallet": wallet,
	}); err != nil {
		return entities.ClaimsRecord{}, err
	}

	logger.Warn("wallet revoked",
		"event", "claims_revoke_completed",
		"module", "compliance-core/claims-registry",
		"layer", "application",
		"wallet", wallet,
	)
	return record, nil
}

// Whitelist re-admits a wallet that already carries claims. This is the only
// path that clears a revocation.
func (uc UseCase) Whitelist(ctx context.Context, cmd WhitelistCommand) (entities.ClaimsRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !uc.Authority.Allows(cmd.CallerID, ports.CapabilityOracle) {
		logger.Warn("whitelist rejected for unauthorized caller",
			"event", "claims_whitelist_unauthorized",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"caller_id", strings.TrimSpace(cmd.CallerID),
			"wallet", strings.TrimSpace(cmd.Wallet),
		)
		return entities.ClaimsRecord{}, domainerrors.ErrUnauthorizedCaller
	}
	wallet := strings.TrimSpace(cmd.Wallet)
	if entities.IsZeroWallet(wallet) {
		return entities.ClaimsRecord{}, domainerrors.ErrZeroWalletAddress
	}

	uc.lock()
	defer uc.unlock()

	record, err := uc.Repository.GetRecord(ctx, wallet)
	if err != nil {
		if errors.Is(err, domainerrors.ErrWalletNotFound) {
			return entities.ClaimsRecord{}, domainerrors.ErrClaimsRequired
		}
		return entities.ClaimsRecord{}, err
	}
	if !record.HasClaims() {
		logger.Warn("whitelist rejected for wallet without claims",
			"event", "claims_whitelist_missing_claims",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"wallet", wallet,
		)
		return entities.ClaimsRecord{}, domainerrors.ErrClaimsRequired
	}
	record.Whitelisted = true
	record.Revoked = false
	record.UpdatedAt = uc.now()
	if err := uc.Repository.UpsertRecord(ctx, record); err != nil {
		logger.Error("whitelist persistence failed",
			"event", "claims_whitelist_persistence_failed",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"wallet", wallet,
			"error", err.Error(),
		)
		return entities.ClaimsRecord{}, err
	}
	if err := uc.appendOutbox(ctx, "compliance.wallet_whitelisted", wallet, map[string]any{
		"wallet": wallet,
	}); err != nil {
		return entities.ClaimsRecord{}, err
	}

	logger.Info("wallet whitelisted",
		"event", "claims_whitelist_completed",
		"module", "compliance-core/claims-registry",
		"layer", "application",
		"wallet", wallet,
	)
	return record, nil
}

func validateClaims(wallet string, claims entities.Claims, now time.Time) error {
	if entities.IsZeroWallet(wallet) {
		return domainerrors.ErrZeroWalletAddress
	}
	if claims.CountryCode == "" {
		return domainerrors.ErrMissingCountryCode
	}
	if len(claims.CountryCode) != 2 {
		return domainerrors.ErrInvalidCountryCode
	}
	if !claims.LockupUntil.IsZero() && claims.LockupUntil.Before(now) {
		return domainerrors.ErrLockupInPast
	}
	if !claims.ExpiresAt.IsZero() && claims.ExpiresAt.Before(now) {
		return domainerrors.ErrExpiryInPast
	}
	return nil
}

func timestampField(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func (uc UseCase) appendOutbox(
	ctx context.Context,
	eventType string,
	wallet string,
	data map[string]any,
) error {
	logger := application.ResolveLogger(uc.Logger)
	if uc.Outbox == nil {
		logger.Debug("registry outbox disabled for module",
			"event", "claims_outbox_disabled",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"event_type", eventType,
			"wallet", wallet,
		)
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       uc.now(),
		SourceService:    "claims-registry",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "wallet",
		PartitionKey:     wallet,
		Data:             payload,
	}); err != nil {
		logger.Error("registry outbox append failed",
			"event", "claims_outbox_append_failed",
			"module", "compliance-core/claims-registry",
			"layer", "application",
			"event_type", eventType,
			"wallet", wallet,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc UseCase) lock() {
	if uc.Guard != nil {
		uc.Guard.Lock()
	}
}

func (uc UseCase) unlock() {
	if uc.Guard != nil {
		uc.Guard.Unlock()
	}
}
