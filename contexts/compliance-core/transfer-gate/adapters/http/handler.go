package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	application "meridian/contexts/compliance-core/transfer-gate/application"
	"meridian/contexts/compliance-core/transfer-gate/application/commands"
	"meridian/contexts/compliance-core/transfer-gate/application/queries"
	"meridian/contexts/compliance-core/transfer-gate/domain/entities"
	domainerrors "meridian/contexts/compliance-core/transfer-gate/domain/errors"
	httptransport "meridian/contexts/compliance-core/transfer-gate/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) MintHandler(
	ctx context.Context,
	callerID string,
	idempotencyKey string,
	req httptransport.MintRequest,
) (httptransport.TransferResponse, bool, error) {
	partition, amount, err := parsePartitionAmount(req.Partition, req.Amount)
	if err != nil {
		return httptransport.TransferResponse{}, false, err
	}
	outcome, replayed, err := h.Commands.Mint(ctx, commands.MintCommand{
		CallerID:       callerID,
		IdempotencyKey: idempotencyKey,
		To:             req.To,
		Partition:      partition,
		Amount:         amount,
	})
	if err != nil {
		h.logFailure("ledger_http_mint_failed", err)
		return httptransport.TransferResponse{}, false, err
	}
	return httptransport.TransferResponseFromOutcome(outcome), replayed, nil
}

func (h Handler) BurnHandler(
	ctx context.Context,
	callerID string,
	idempotencyKey string,
	req httptransport.BurnRequest,
) (httptransport.TransferResponse, bool, error) {
	partition, amount, err := parsePartitionAmount(req.Partition, req.Amount)
	if err != nil {
		return httptransport.TransferResponse{}, false, err
	}
	outcome, replayed, err := h.Commands.Burn(ctx, commands.BurnCommand{
		CallerID:       callerID,
		IdempotencyKey: idempotencyKey,
		From:           req.From,
		Partition:      partition,
		Amount:         amount,
	})
	if err != nil {
		h.logFailure("ledger_http_burn_failed", err)
		return httptransport.TransferResponse{}, false, err
	}
	return httptransport.TransferResponseFromOutcome(outcome), replayed, nil
}

func (h Handler) TransferHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.TransferRequest,
) (httptransport.TransferResponse, bool, error) {
	partition, amount, err := parsePartitionAmount(req.Partition, req.Amount)
	if err != nil {
		return httptransport.TransferResponse{}, false, err
	}
	outcome, replayed, err := h.Commands.Transfer(ctx, commands.TransferCommand{
		IdempotencyKey: idempotencyKey,
		From:           req.From,
		To:             req.To,
		Partition:      partition,
		Amount:         amount,
	})
	if err != nil {
		h.logFailure("ledger_http_transfer_failed", err)
		return httptransport.TransferResponse{}, false, err
	}
	return httptransport.TransferResponseFromOutcome(outcome), replayed, nil
}

func (h Handler) ForcedTransferHandler(
	ctx context.Context,
	callerID string,
	idempotencyKey string,
	req httptransport.TransferRequest,
) (httptransport.TransferResponse, bool, error) {
	partition, amount, err := parsePartitionAmount(req.Partition, req.Amount)
	if err != nil {
		return httptransport.TransferResponse{}, false, err
	}
	outcome, replayed, err := h.Commands.ForcedTransfer(ctx, commands.ForcedTransferCommand{
		CallerID:       callerID,
		IdempotencyKey: idempotencyKey,
		From:           req.From,
		To:             req.To,
		Partition:      partition,
		Amount:         amount,
	})
	if err != nil {
		h.logFailure("ledger_http_forced_transfer_failed", err)
		return httptransport.TransferResponse{}, false, err
	}
	return httptransport.TransferResponseFromOutcome(outcome), replayed, nil
}

func (h Handler) BalancesHandler(ctx context.Context, wallet string) (httptransport.BalanceResponse, error) {
	holdings, err := h.Queries.WalletBalances(ctx, wallet)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	response := httptransport.BalanceResponse{
		Wallet:   strings.TrimSpace(wallet),
		Balances: make(map[string]string, len(holdings)),
	}
	for _, holding := range holdings {
		response.Balances[string(holding.Partition)] = holding.Balance.String()
	}
	return response, nil
}

func (h Handler) SupplyHandler(ctx context.Context, rawPartition string) (httptransport.SupplyResponse, error) {
	partition, ok := entities.ParsePartition(rawPartition)
	if !ok {
		return httptransport.SupplyResponse{}, domainerrors.ErrInvalidPartition
	}
	supply, err := h.Queries.PartitionSupply(ctx, partition)
	if err != nil {
		return httptransport.SupplyResponse{}, err
	}
	return httptransport.SupplyResponse{
		Partition: string(partition),
		Supply:    supply.String(),
	}, nil
}

func parsePartitionAmount(rawPartition string, rawAmount string) (entities.Partition, decimal.Decimal, error) {
	partition, ok := entities.ParsePartition(rawPartition)
	if !ok {
		return "", decimal.Zero, domainerrors.ErrInvalidPartition
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rawAmount))
	if err != nil {
		return "", decimal.Zero, domainerrors.ErrInvalidAmount
	}
	return partition, amount, nil
}

func (h Handler) logFailure(event string, err error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Warn("transfer gate http operation failed",
		"event", event,
		"module", "compliance-core/transfer-gate",
		"layer", "adapter",
		"error", err.Error(),
	)
}
