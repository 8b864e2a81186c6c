package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	application "meridian/contexts/payout-core/distribution-engine/application"
	"meridian/contexts/payout-core/distribution-engine/domain/entities"
	domainerrors "meridian/contexts/payout-core/distribution-engine/domain/errors"
	"meridian/contexts/payout-core/distribution-engine/domain/services"
	"meridian/contexts/payout-core/distribution-engine/ports"

	"github.com/shopspring/decimal"
)

const defaultBatchSize = 200

type TakeSnapshotCommand struct {
	// RequiredOverride replaces the rate-derived required amount when set.
	RequiredOverride *decimal.Decimal
}

type FundCommand struct {
	SnapshotID string
	Amount     decimal.Decimal
}

type SetModeCommand struct {
	SnapshotID string
	Mode       entities.Mode
}

type DistributeCommand struct {
	SnapshotID string
}

type UseCase struct {
	Repository ports.Repository
	Holders    ports.HolderSource
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	// PayoutRate is the per-unit rate that turns snapshot supply into the
	// cycle's required amount, absent an explicit override.
	PayoutRate decimal.Decimal
	BatchSize  int
	// Guard serializes cycle mutation so two distribute calls for the same
	// snapshot cannot interleave; the loser of the race observes the
	// already-distributed state instead of double-paying.
	Guard  *sync.Mutex
	Logger *slog.Logger
}

// TakeSnapshot captures the ledger's holder view into an immutable snapshot
// and opens its payout cycle. At most one unfinished cycle may exist.
func (uc UseCase) TakeSnapshot(ctx context.Context, cmd TakeSnapshotCommand) (entities.Cycle, entities.Snapshot, error) {
	uc.lock()
	defer uc.unlock()

	if _, exists, err := uc.Repository.UnfinishedCycle(ctx); err != nil {
		return entities.Cycle{}, entities.Snapshot{}, err
	} else if exists {
		return entities.Cycle{}, entities.Snapshot{}, domainerrors.ErrCycleInProgress
	}

	supply, holders, err := uc.Holders.SnapshotView(ctx)
	if err != nil {
		return entities.Cycle{}, entities.Snapshot{}, err
	}
	// A zero-supply snapshot would open a cycle nothing can retire: Distribute
	// rejects it, and the unfinished-cycle guard blocks every later snapshot.
	if !supply.IsPositive() {
		return entities.Cycle{}, entities.Snapshot{}, domainerrors.ErrEmptySnapshot
	}
	sequence, err := uc.Repository.NextSnapshotSequence(ctx)
	if err != nil {
		return entities.Cycle{}, entities.Snapshot{}, err
	}

	now := uc.now()
	snapshot := entities.Snapshot{
		SnapshotID:  fmt.Sprintf("snap-%d", sequence),
		Sequence:    sequence,
		TotalSupply: supply,
		TakenAt:     now,
		Holders:     holders,
	}
	required := services.RequiredAmount(supply, uc.PayoutRate)
	if cmd.RequiredOverride != nil {
		if !cmd.RequiredOverride.IsPositive() || !cmd.RequiredOverride.IsInteger() {
			return entities.Cycle{}, entities.Snapshot{}, domainerrors.ErrInvalidAmount
		}
		required = *cmd.RequiredOverride
	}
	cycle := entities.Cycle{
		SnapshotID:     snapshot.SnapshotID,
		Sequence:       sequence,
		State:          entities.StateSnapshotted,
		Mode:           entities.ModeFull,
		RequiredAmount: required,
		FundedAmount:   decimal.Zero,
		TotalPaid:      decimal.Zero,
		Residual:       decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.Repository.SaveSnapshot(ctx, snapshot); err != nil {
		return entities.Cycle{}, entities.Snapshot{}, err
	}
	if err := uc.Repository.SaveCycle(ctx, cycle); err != nil {
		return entities.Cycle{}, entities.Snapshot{}, err
	}
	if err := uc.appendOutbox(ctx, "payout.snapshot_taken", snapshot.SnapshotID, now, map[string]any{
		"snapshot_id":  snapshot.SnapshotID,
		"sequence":     sequence,
		"total_supply": supply.String(),
		"holder_count": len(holders),
		"required":     required.String(),
	}); err != nil {
		return entities.Cycle{}, entities.Snapshot{}, err
	}

	application.ResolveLogger(uc.Logger).Info("payout snapshot taken",
		"event", "payout_snapshot_taken",
		"module", "payout-core/distribution-engine",
		"layer", "application",
		"snapshot_id", snapshot.SnapshotID,
		"sequence", sequence,
		"total_supply", supply.String(),
		"holder_count", len(holders),
	)
	return cycle, snapshot, nil
}

// Fund adds a positive integer amount of payout currency to the cycle's
// funded total. Overfunding is allowed; the excess comes back as residual at
// distribution time.
func (uc UseCase) Fund(ctx context.Context, cmd FundCommand) (entities.Cycle, error) {
	if !cmd.Amount.IsPositive() || !cmd.Amount.IsInteger() {
		return entities.Cycle{}, domainerrors.ErrInvalidAmount
	}

	uc.lock()
	defer uc.unlock()

	cycle, err := uc.Repository.GetCycle(ctx, cmd.SnapshotID)
	if err != nil {
		return entities.Cycle{}, err
	}
	if cycle.Finished() {
		return entities.Cycle{}, domainerrors.ErrCycleDistributed
	}

	now := uc.now()
	cycle.FundedAmount = cycle.FundedAmount.Add(cmd.Amount)
	cycle.State = entities.StateFunding
	cycle.UpdatedAt = now
	if err := uc.Repository.SaveCycle(ctx, cycle); err != nil {
		return entities.Cycle{}, err
	}
	if err := uc.appendOutbox(ctx, "payout.cycle_funded", cycle.SnapshotID, now, map[string]any{
		"snapshot_id": cycle.SnapshotID,
		"amount":      cmd.Amount.String(),
		"funded":      cycle.FundedAmount.String(),
		"required":    cycle.RequiredAmount.String(),
	}); err != nil {
		return entities.Cycle{}, err
	}

	application.ResolveLogger(uc.Logger).Info("payout cycle funded",
		"event", "payout_cycle_funded",
		"module", "payout-core/distribution-engine",
		"layer", "application",
		"snapshot_id", cycle.SnapshotID,
		"amount", cmd.Amount.String(),
		"funded", cycle.FundedAmount.String(),
	)
	return cycle, nil
}

// SetMode switches the cycle between FULL and PRO_RATA. The mode is locked
// once the cycle has distributed.
func (uc UseCase) SetMode(ctx context.Context, cmd SetModeCommand) (entities.Cycle, error) {
	if cmd.Mode != entities.ModeFull && cmd.Mode != entities.ModeProRata {
		return entities.Cycle{}, domainerrors.ErrInvalidMode
	}

	uc.lock()
	defer uc.unlock()

	cycle, err := uc.Repository.GetCycle(ctx, cmd.SnapshotID)
	if err != nil {
		return entities.Cycle{}, err
	}
	if cycle.Finished() {
		return entities.Cycle{}, domainerrors.ErrCycleDistributed
	}

	now := uc.now()
	cycle.Mode = cmd.Mode
	cycle.UpdatedAt = now
	if err := uc.Repository.SaveCycle(ctx, cycle); err != nil {
		return entities.Cycle{}, err
	}
	if err := uc.appendOutbox(ctx, "payout.mode_changed", cycle.SnapshotID, now, map[string]any{
		"snapshot_id": cycle.SnapshotID,
		"mode":        string(cycle.Mode),
	}); err != nil {
		return entities.Cycle{}, err
	}
	return cycle, nil
}

// Distribute pays every snapshot holder their share of the payout pool in
// bounded batches, each committed durably before the next. Re-invoking on a
// distributed cycle reports already-distributed without touching state;
// re-invoking on a partially processed cycle resumes at the persisted cursor.
func (uc UseCase) Distribute(ctx context.Context, cmd DistributeCommand) (entities.DistributionResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	uc.lock()
	defer uc.unlock()

	cycle, err := uc.Repository.GetCycle(ctx, cmd.SnapshotID)
	if err != nil {
		return entities.DistributionResult{}, err
	}
	snapshot, err := uc.Repository.GetSnapshot(ctx, cmd.SnapshotID)
	if err != nil {
		return entities.DistributionResult{}, err
	}
	if cycle.Finished() {
		return entities.DistributionResult{
			SnapshotID:         cycle.SnapshotID,
			Mode:               cycle.Mode,
			TotalPaid:          cycle.TotalPaid,
			Residual:           cycle.Residual,
			HolderCount:        len(snapshot.Holders),
			AlreadyDistributed: true,
		}, nil
	}
	if !snapshot.TotalSupply.IsPositive() {
		return entities.DistributionResult{}, domainerrors.ErrEmptySnapshot
	}
	if cycle.Mode == entities.ModeFull && cycle.FundedAmount.LessThan(cycle.RequiredAmount) {
		return entities.DistributionResult{}, domainerrors.ErrCycleUnderfunded
	}

	pool := services.PayoutPool(cycle.Mode, cycle.RequiredAmount, cycle.FundedAmount)
	allocations := services.Allocate(snapshot.Holders, snapshot.TotalSupply, pool)

	batchSize := uc.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for cycle.Cursor < len(allocations) {
		end := cycle.Cursor + batchSize
		if end > len(allocations) {
			end = len(allocations)
		}
		now := uc.now()
		records := make([]entities.PayoutRecord, 0, end-cycle.Cursor)
		for _, allocation := range allocations[cycle.Cursor:end] {
			records = append(records, entities.PayoutRecord{
				SnapshotID: cycle.SnapshotID,
				Wallet:     allocation.Wallet,
				Amount:     allocation.Amount,
				Status:     allocation.Status,
				RecordedAt: now,
			})
			if allocation.Status == entities.PayoutStatusPaid {
				cycle.TotalPaid = cycle.TotalPaid.Add(allocation.Amount)
			}
		}
		cycle.Cursor = end
		cycle.UpdatedAt = now
		if err := uc.Repository.CommitBatch(ctx, cycle, records); err != nil {
			logger.Error("payout batch commit failed",
				"event", "payout_batch_commit_failed",
				"module", "payout-core/distribution-engine",
				"layer", "application",
				"snapshot_id", cycle.SnapshotID,
				"cursor", cycle.Cursor,
				"error", err.Error(),
			)
			return entities.DistributionResult{}, err
		}
	}

	now := uc.now()
	cycle.State = entities.StateDistributed
	cycle.Residual = cycle.FundedAmount.Sub(cycle.TotalPaid)
	cycle.UpdatedAt = now
	cycle.DistributedAt = now
	if err := uc.Repository.SaveCycle(ctx, cycle); err != nil {
		return entities.DistributionResult{}, err
	}
	if err := uc.appendOutbox(ctx, "payout.cycle_distributed", cycle.SnapshotID, now, map[string]any{
		"snapshot_id":  cycle.SnapshotID,
		"mode":         string(cycle.Mode),
		"funded":       cycle.FundedAmount.String(),
		"total_paid":   cycle.TotalPaid.String(),
		"residual":     cycle.Residual.String(),
		"holder_count": len(snapshot.Holders),
	}); err != nil {
		return entities.DistributionResult{}, err
	}

	logger.Info("payout cycle distributed",
		"event", "payout_cycle_distributed",
		"module", "payout-core/distribution-engine",
		"layer", "application",
		"snapshot_id", cycle.SnapshotID,
		"mode", string(cycle.Mode),
		"total_paid", cycle.TotalPaid.String(),
		"residual", cycle.Residual.String(),
	)
	return entities.DistributionResult{
		SnapshotID:  cycle.SnapshotID,
		Mode:        cycle.Mode,
		TotalPaid:   cycle.TotalPaid,
		Residual:    cycle.Residual,
		HolderCount: len(snapshot.Holders),
	}, nil
}

func (uc UseCase) appendOutbox(
	ctx context.Context,
	eventType string,
	snapshotID string,
	occurredAt time.Time,
	data map[string]any,
) error {
	if uc.Outbox == nil {
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
		OccurredAt:       occurredAt,
		SourceService:    "distribution-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "snapshot_id",
		PartitionKey:     snapshotID,
		Data:             payload,
	}); err != nil {
		application.ResolveLogger(uc.Logger).Error("payout outbox append failed",
			"event", "payout_outbox_append_failed",
			"module", "payout-core/distribution-engine",
			"layer", "application",
			"event_type", eventType,
			"snapshot_id", snapshotID,
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
