package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	application "meridian/contexts/payout-core/distribution-engine/application"
	"meridian/contexts/payout-core/distribution-engine/application/commands"
	"meridian/contexts/payout-core/distribution-engine/application/queries"
	"meridian/contexts/payout-core/distribution-engine/domain/entities"
	domainerrors "meridian/contexts/payout-core/distribution-engine/domain/errors"
	httptransport "meridian/contexts/payout-core/distribution-engine/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) TakeSnapshotHandler(ctx context.Context, req httptransport.TakeSnapshotRequest) (httptransport.CycleResponse, error) {
	cmd := commands.TakeSnapshotCommand{}
	if strings.TrimSpace(req.RequiredAmount) != "" {
		required, err := decimal.NewFromString(strings.TrimSpace(req.RequiredAmount))
		if err != nil {
			return httptransport.CycleResponse{}, domainerrors.ErrInvalidAmount
		}
		cmd.RequiredOverride = &required
	}
	cycle, snapshot, err := h.Commands.TakeSnapshot(ctx, cmd)
	if err != nil {
		h.logFailure("payout_http_snapshot_failed", err)
		return httptransport.CycleResponse{}, err
	}
	return httptransport.CycleResponseFromEntities(cycle, snapshot), nil
}

func (h Handler) FundHandler(ctx context.Context, snapshotID string, req httptransport.FundRequest) (httptransport.CycleResponse, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return httptransport.CycleResponse{}, domainerrors.ErrInvalidAmount
	}
	cycle, err := h.Commands.Fund(ctx, commands.FundCommand{
		SnapshotID: snapshotID,
		Amount:     amount,
	})
	if err != nil {
		h.logFailure("payout_http_fund_failed", err)
		return httptransport.CycleResponse{}, err
	}
	return httptransport.CycleResponseFromEntities(cycle, entities.Snapshot{}), nil
}

func (h Handler) SetModeHandler(ctx context.Context, snapshotID string, req httptransport.SetModeRequest) (httptransport.CycleResponse, error) {
	mode, ok := entities.ParseMode(req.Mode)
	if !ok {
		return httptransport.CycleResponse{}, domainerrors.ErrInvalidMode
	}
	cycle, err := h.Commands.SetMode(ctx, commands.SetModeCommand{
		SnapshotID: snapshotID,
		Mode:       mode,
	})
	if err != nil {
		h.logFailure("payout_http_set_mode_failed", err)
		return httptransport.CycleResponse{}, err
	}
	return httptransport.CycleResponseFromEntities(cycle, entities.Snapshot{}), nil
}

func (h Handler) DistributeHandler(ctx context.Context, snapshotID string) (httptransport.DistributeResponse, error) {
	result, err := h.Commands.Distribute(ctx, commands.DistributeCommand{SnapshotID: snapshotID})
	if err != nil {
		h.logFailure("payout_http_distribute_failed", err)
		return httptransport.DistributeResponse{}, err
	}
	records, err := h.Queries.PayoutRecords(ctx, snapshotID)
	if err != nil {
		return httptransport.DistributeResponse{}, err
	}
	response := httptransport.DistributeResponse{
		SnapshotID:         result.SnapshotID,
		Mode:               string(result.Mode),
		TotalPaid:          result.TotalPaid.String(),
		Residual:           result.Residual.String(),
		HolderCount:        result.HolderCount,
		AlreadyDistributed: result.AlreadyDistributed,
		Payouts:            make([]httptransport.PayoutRecord, 0, len(records)),
	}
	for _, record := range records {
		response.Payouts = append(response.Payouts, httptransport.PayoutRecord{
			Wallet: record.Wallet,
			Amount: record.Amount.String(),
			Status: string(record.Status),
		})
	}
	return response, nil
}

func (h Handler) CycleStatusHandler(ctx context.Context, snapshotID string) (httptransport.CycleResponse, error) {
	cycle, snapshot, err := h.Queries.CycleStatus(ctx, snapshotID)
	if err != nil {
		return httptransport.CycleResponse{}, err
	}
	return httptransport.CycleResponseFromEntities(cycle, snapshot), nil
}

func (h Handler) RequiredAmountHandler(ctx context.Context, snapshotID string) (httptransport.RequiredAmountResponse, error) {
	required, err := h.Queries.RequiredAmount(ctx, snapshotID)
	if err != nil {
		return httptransport.RequiredAmountResponse{}, err
	}
	return httptransport.RequiredAmountResponse{
		SnapshotID:     snapshotID,
		RequiredAmount: required.String(),
	}, nil
}

func (h Handler) logFailure(event string, err error) {
	application.ResolveLogger(h.Logger).Warn("payout http operation failed",
		"event", event,
		"module", "payout-core/distribution-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
}
