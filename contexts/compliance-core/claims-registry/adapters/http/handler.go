package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "meridian/contexts/compliance-core/claims-registry/application"
	"meridian/contexts/compliance-core/claims-registry/application/commands"
	"meridian/contexts/compliance-core/claims-registry/application/queries"
	"meridian/contexts/compliance-core/claims-registry/domain/entities"
	domainerrors "meridian/contexts/compliance-core/claims-registry/domain/errors"
	httptransport "meridian/contexts/compliance-core/claims-registry/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) SetClaimsHandler(
	ctx context.Context,
	callerID string,
	wallet string,
	req httptransport.SetClaimsRequest,
) (httptransport.WalletStatusResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	lockupUntil, err := parseOptionalTime(req.LockupUntil)
	if err != nil {
		return httptransport.WalletStatusResponse{}, domainerrors.ErrLockupInPast
	}
	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		return httptransport.WalletStatusResponse{}, domainerrors.ErrExpiryInPast
	}

	record, err := h.Commands.SetClaims(ctx, commands.SetClaimsCommand{
		CallerID:    callerID,
		Wallet:      wallet,
		CountryCode: req.CountryCode,
		Accredited:  req.Accredited,
		LockupUntil: lockupUntil,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		logger.Warn("claims http set failed",
			"event", "claims_http_set_failed",
			"module", "compliance-core/claims-registry",
			"layer", "adapter",
			"wallet", strings.TrimSpace(wallet),
			"error", err.Error(),
		)
		return httptransport.WalletStatusResponse{}, err
	}
	compliant, err := h.Queries.IsWalletCompliant(ctx, record.Wallet)
	if err != nil {
		return httptransport.WalletStatusResponse{}, err
	}
	return statusResponse(record, compliant), nil
}

func (h Handler) RevokeHandler(ctx context.Context, callerID string, wallet string) (httptransport.WalletStatusResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	record, err := h.Commands.Revoke(ctx, commands.RevokeCommand{
		CallerID: callerID,
		Wallet:   wallet,
	})
	if err != nil {
		logger.Warn("claims http revoke failed",
			"event", "claims_http_revoke_failed",
			"module", "compliance-core/claims-registry",
			"layer", "adapter",
			"wallet", strings.TrimSpace(wallet),
			"error", err.Error(),
		)
		return httptransport.WalletStatusResponse{}, err
	}
	return statusResponse(record, false), nil
}

func (h Handler) WhitelistHandler(ctx context.Context, callerID string, wallet string) (httptransport.WalletStatusResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	record, err := h.Commands.Whitelist(ctx, commands.WhitelistCommand{
		CallerID: callerID,
		Wallet:   wallet,
	})
	if err != nil {
		logger.Warn("claims http whitelist failed",
			"event", "claims_http_whitelist_failed",
			"module", "compliance-core/claims-registry",
			"layer", "adapter",
			"wallet", strings.TrimSpace(wallet),
			"error", err.Error(),
		)
		return httptransport.WalletStatusResponse{}, err
	}
	compliant, err := h.Queries.IsWalletCompliant(ctx, record.Wallet)
	if err != nil {
		return httptransport.WalletStatusResponse{}, err
	}
	return statusResponse(record, compliant), nil
}

func (h Handler) WalletStatusHandler(ctx context.Context, wallet string) (httptransport.WalletStatusResponse, error) {
	record, compliant, err := h.Queries.WalletStatus(ctx, wallet)
	if err != nil {
		return httptransport.WalletStatusResponse{}, err
	}
	return statusResponse(record, compliant), nil
}

// PreflightHandler is the read-only dry-run admission check used by the
// console before submitting a transfer.
func (h Handler) PreflightHandler(ctx context.Context, req httptransport.PreflightRequest) (httptransport.PreflightResponse, error) {
	partition, ok := entities.ParsePartition(req.Partition)
	if !ok {
		return httptransport.PreflightResponse{}, domainerrors.ErrInvalidPartition
	}
	amount := decimal.Zero
	if strings.TrimSpace(req.Amount) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil {
			return httptransport.PreflightResponse{}, err
		}
		amount = parsed
	}
	decision, err := h.Queries.IsTransferAllowed(ctx, req.From, req.To, partition, amount)
	if err != nil {
		return httptransport.PreflightResponse{}, err
	}
	return httptransport.PreflightResponse{
		Allowed:    decision.Allowed,
		ReasonCode: httptransport.ReasonCode(decision),
		Message:    httptransport.ReasonMessage(decision),
	}, nil
}

func statusResponse(record entities.ClaimsRecord, compliant bool) httptransport.WalletStatusResponse {
	resp := httptransport.WalletStatusResponse{
		Wallet:      record.Wallet,
		Compliant:   compliant,
		CountryCode: record.Claims.CountryCode,
		Accredited:  record.Claims.Accredited,
		Whitelisted: record.Whitelisted,
		Revoked:     record.Revoked,
	}
	if !record.Claims.LockupUntil.IsZero() {
		resp.LockupUntil = record.Claims.LockupUntil.UTC().Format(time.RFC3339)
	}
	if !record.Claims.ExpiresAt.IsZero() {
		resp.ExpiresAt = record.Claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if !record.UpdatedAt.IsZero() {
		resp.UpdatedAt = record.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func parseOptionalTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, trimmed)
}
