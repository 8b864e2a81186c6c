package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"meridian/contexts/compliance-core/transfer-gate/application"
	"meridian/contexts/compliance-core/transfer-gate/domain/entities"
	domainerrors "meridian/contexts/compliance-core/transfer-gate/domain/errors"
	"meridian/contexts/compliance-core/transfer-gate/ports"

	registryentities "meridian/contexts/compliance-core/claims-registry/domain/entities"
	registryports "meridian/contexts/compliance-core/claims-registry/ports"

	"github.com/shopspring/decimal"
)

const defaultIdempotencyTTL = 7 * 24 * time.Hour

type MintCommand struct {
	CallerID       string
	IdempotencyKey string
	To             string
	Partition      entities.Partition
	Amount         decimal.Decimal
}

type BurnCommand struct {
	CallerID       string
	IdempotencyKey string
	From           string
	Partition      entities.Partition
	Amount         decimal.Decimal
}

type TransferCommand struct {
	IdempotencyKey string
	From           string
	To             string
	Partition      entities.Partition
	Amount         decimal.Decimal
}

type ForcedTransferCommand struct {
	CallerID       string
	IdempotencyKey string
	From           string
	To             string
	Partition      entities.Partition
	Amount         decimal.Decimal
}

type UseCase struct {
	Ledger         ports.LedgerRepository
	Compliance     ports.ComplianceChecker
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Authority      ports.Authority
	IdempotencyTTL time.Duration
	// Guard serializes admission checks with ledger mutation and with registry
	// mutations, so a transfer is never admitted against claims that are being
	// revoked mid-check. Shared with the claims-registry command use case.
	Guard  *sync.RWMutex
	Logger *slog.Logger
}

// Mint creates supply in the destination partition. The source side of the
// admission check is skipped; destination compliance and partition rules
// still apply. Controller authority required.
func (uc UseCase) Mint(ctx context.Context, cmd MintCommand) (entities.TransferOutcome, bool, error) {
	if !uc.Authority.Allows(cmd.CallerID, registryports.CapabilityController) {
		uc.logUnauthorized("mint", cmd.CallerID)
		return entities.TransferOutcome{}, false, domainerrors.ErrUnauthorizedCaller
	}
	return uc.execute(ctx, executeInput{
		op:             "mint",
		kind:           entities.TransferKindMint,
		idempotencyKey: cmd.IdempotencyKey,
		callerID:       cmd.CallerID,
		from:           "",
		to:             cmd.To,
		partition:      cmd.Partition,
		amount:         cmd.Amount,
		eventType:      "token.minted",
	})
}

// Burn destroys supply from the source partition. Only source checks apply.
// Controller authority required.
func (uc UseCase) Burn(ctx context.Context, cmd BurnCommand) (entities.TransferOutcome, bool, error) {
	if !uc.Authority.Allows(cmd.CallerID, registryports.CapabilityController) {
		uc.logUnauthorized("burn", cmd.CallerID)
		return entities.TransferOutcome{}, false, domainerrors.ErrUnauthorizedCaller
	}
	return uc.execute(ctx, executeInput{
		op:             "burn",
		kind:           entities.TransferKindBurn,
		idempotencyKey: cmd.IdempotencyKey,
		callerID:       cmd.CallerID,
		from:           cmd.From,
		to:             "",
		partition:      cmd.Partition,
		amount:         cmd.Amount,
		eventType:      "token.burned",
	})
}

// Transfer moves balance between wallets within one partition after the full
// admission evaluation. Balances and partitions are fixed at call time; there
// is no cross-partition transfer.
func (uc UseCase) Transfer(ctx context.Context, cmd TransferCommand) (entities.TransferOutcome, bool, error) {
	if strings.TrimSpace(cmd.From) == "" || strings.TrimSpace(cmd.To) == "" {
		return entities.TransferOutcome{}, false, domainerrors.ErrZeroWalletAddress
	}
	return uc.execute(ctx, executeInput{
		op:             "transfer",
		kind:           entities.TransferKindMove,
		idempotencyKey: cmd.IdempotencyKey,
		from:           cmd.From,
		to:             cmd.To,
		partition:      cmd.Partition,
		amount:         cmd.Amount,
		eventType:      "token.transferred",
	})
}

// ForcedTransfer is the remediation path for court-ordered or regulatory
// moves. Source lockup and compliance checks are bypassed; the destination
// must still be compliant. Controller authority required, and the action is
// logged and evented separately from ordinary transfers.
func (uc UseCase) ForcedTransfer(ctx context.Context, cmd ForcedTransferCommand) (entities.TransferOutcome, bool, error) {
	if !uc.Authority.Allows(cmd.CallerID, registryports.CapabilityController) {
		uc.logUnauthorized("forced_transfer", cmd.CallerID)
		return entities.TransferOutcome{}, false, domainerrors.ErrUnauthorizedCaller
	}
	if strings.TrimSpace(cmd.From) == "" || strings.TrimSpace(cmd.To) == "" {
		return entities.TransferOutcome{}, false, domainerrors.ErrZeroWalletAddress
	}
	return uc.execute(ctx, executeInput{
		op:             "forced_transfer",
		kind:           entities.TransferKindForced,
		idempotencyKey: cmd.IdempotencyKey,
		callerID:       cmd.CallerID,
		from:           cmd.From,
		to:             cmd.To,
		partition:      cmd.Partition,
		amount:         cmd.Amount,
		eventType:      "token.transfer_forced",
	})
}

type executeInput struct {
	op             string
	kind           entities.TransferKind
	idempotencyKey string
	callerID       string
	from           string
	to             string
	partition      entities.Partition
	amount         decimal.Decimal
	eventType      string
}

func (uc UseCase) execute(ctx context.Context, input executeInput) (entities.TransferOutcome, bool, error) {
	logger := application.ResolveLogger(uc.Logger)
	key := strings.TrimSpace(input.idempotencyKey)
	if key == "" {
		return entities.TransferOutcome{}, false, domainerrors.ErrIdempotencyKeyMissing
	}
	if _, ok := registryentities.ParsePartition(string(input.partition)); !ok {
		return entities.TransferOutcome{}, false, domainerrors.ErrInvalidPartition
	}
	if !input.amount.IsPositive() || !input.amount.IsInteger() {
		return entities.TransferOutcome{}, false, domainerrors.ErrInvalidAmount
	}

	now := uc.now()
	requestHash := hashPayload(map[string]any{
		"op":        input.op,
		"from":      strings.TrimSpace(input.from),
		"to":        strings.TrimSpace(input.to),
		"partition": string(input.partition),
		"amount":    input.amount.String(),
	})
	record, found, err := uc.Idempotency.GetRecord(ctx, key, now)
	if err != nil {
		return entities.TransferOutcome{}, false, err
	}
	if found {
		if record.RequestHash != requestHash {
			return entities.TransferOutcome{}, false, domainerrors.ErrIdempotencyConflict
		}
		var replayed entities.TransferOutcome
		if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
			return entities.TransferOutcome{}, false, err
		}
		logger.Info("ledger command replayed from idempotency record",
			"event", "transfer_gate_command_replayed",
			"module", "compliance-core/transfer-gate",
			"layer", "application",
			"op", input.op,
			"idempotency_key", key,
		)
		return replayed, true, nil
	}

	uc.lock()
	defer uc.unlock()

	decision, err := uc.decide(ctx, input)
	if err != nil {
		return entities.TransferOutcome{}, false, err
	}
	if !decision.Allowed {
		outcome := entities.TransferOutcome{Admitted: false, Decision: decision}
		if err := uc.storeOutcome(ctx, key, requestHash, outcome, now); err != nil {
			return entities.TransferOutcome{}, false, err
		}
		logger.Warn("ledger mutation denied by compliance",
			"event", "transfer_gate_denied",
			"module", "compliance-core/transfer-gate",
			"layer", "application",
			"op", input.op,
			"from", strings.TrimSpace(input.from),
			"to", strings.TrimSpace(input.to),
			"partition", string(input.partition),
			"reason_kind", string(decision.Reason.Kind),
		)
		return outcome, false, nil
	}

	transferID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.TransferOutcome{}, false, err
	}
	receipt := entities.TransferReceipt{
		TransferID: transferID,
		Kind:       input.kind,
		From:       strings.TrimSpace(input.from),
		To:         strings.TrimSpace(input.to),
		Partition:  input.partition,
		Amount:     input.amount,
		CallerID:   strings.TrimSpace(input.callerID),
		OccurredAt: now,
	}
	if err := uc.apply(ctx, receipt); err != nil {
		logger.Error("ledger mutation failed",
			"event", "transfer_gate_apply_failed",
			"module", "compliance-core/transfer-gate",
			"layer", "application",
			"op", input.op,
			"transfer_id", transferID,
			"error", err.Error(),
		)
		return entities.TransferOutcome{}, false, err
	}

	if err := uc.appendOutbox(ctx, input.eventType, receipt); err != nil {
		return entities.TransferOutcome{}, false, err
	}
	outcome := entities.TransferOutcome{
		Admitted: true,
		Decision: registryentities.Allowed(),
		Receipt:  receipt,
	}
	if err := uc.storeOutcome(ctx, key, requestHash, outcome, now); err != nil {
		return entities.TransferOutcome{}, false, err
	}

	level := logger.Info
	if input.kind == entities.TransferKindForced {
		level = logger.Warn
	}
	level("ledger mutation admitted",
		"event", "transfer_gate_"+input.op+"_completed",
		"module", "compliance-core/transfer-gate",
		"layer", "application",
		"transfer_id", transferID,
		"from", receipt.From,
		"to", receipt.To,
		"partition", string(receipt.Partition),
		"amount", receipt.Amount.String(),
	)
	return outcome, false, nil
}

func (uc UseCase) decide(ctx context.Context, input executeInput) (registryentities.Decision, error) {
	if input.kind == entities.TransferKindForced {
		return uc.Compliance.IsForcedTransferAllowed(ctx, input.to, input.partition, input.amount)
	}
	return uc.Compliance.IsTransferAllowed(ctx, input.from, input.to, input.partition, input.amount)
}

func (uc UseCase) apply(ctx context.Context, receipt entities.TransferReceipt) error {
	switch receipt.Kind {
	case entities.TransferKindMint:
		return uc.Ledger.ApplyMint(ctx, receipt)
	case entities.TransferKindBurn:
		return uc.Ledger.ApplyBurn(ctx, receipt)
	default:
		return uc.Ledger.ApplyTransfer(ctx, receipt)
	}
}

func (uc UseCase) storeOutcome(
	ctx context.Context,
	key string,
	requestHash string,
	outcome entities.TransferOutcome,
	now time.Time,
) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	ttl := uc.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return uc.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             key,
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       now.Add(ttl),
	})
}

func (uc UseCase) appendOutbox(ctx context.Context, eventType string, receipt entities.TransferReceipt) error {
	logger := application.ResolveLogger(uc.Logger)
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"transfer_id": receipt.TransferID,
		"kind":        string(receipt.Kind),
		"from":        receipt.From,
		"to":          receipt.To,
		"partition":   string(receipt.Partition),
		"amount":      receipt.Amount.String(),
		"caller_id":   receipt.CallerID,
	})
	if err != nil {
		return err
	}
	if err := uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       receipt.OccurredAt,
		SourceService:    "transfer-gate",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "transfer_id",
		PartitionKey:     receipt.TransferID,
		Data:             payload,
	}); err != nil {
		logger.Error("ledger outbox append failed",
			"event", "transfer_gate_outbox_append_failed",
			"module", "compliance-core/transfer-gate",
			"layer", "application",
			"event_type", eventType,
			"transfer_id", receipt.TransferID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (uc UseCase) logUnauthorized(op string, callerID string) {
	application.ResolveLogger(uc.Logger).Warn("ledger command rejected for unauthorized caller",
		"event", "transfer_gate_unauthorized",
		"module", "compliance-core/transfer-gate",
		"layer", "application",
		"op", op,
		"caller_id", strings.TrimSpace(callerID),
	)
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

func hashPayload(payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
