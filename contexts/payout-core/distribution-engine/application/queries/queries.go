package queries

import (
	"context"

	"meridian/contexts/payout-core/distribution-engine/domain/entities"
	"meridian/contexts/payout-core/distribution-engine/ports"

	"github.com/shopspring/decimal"
)

type UseCase struct {
	Repository ports.Repository
}

// CycleStatus returns the cycle and its immutable snapshot.
func (uc UseCase) CycleStatus(ctx context.Context, snapshotID string) (entities.Cycle, entities.Snapshot, error) {
	cycle, err := uc.Repository.GetCycle(ctx, snapshotID)
	if err != nil {
		return entities.Cycle{}, entities.Snapshot{}, err
	}
	snapshot, err := uc.Repository.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return entities.Cycle{}, entities.Snapshot{}, err
	}
	return cycle, snapshot, nil
}

// RequiredAmount is fixed at snapshot time, so this is a plain cycle read.
func (uc UseCase) RequiredAmount(ctx context.Context, snapshotID string) (decimal.Decimal, error) {
	cycle, err := uc.Repository.GetCycle(ctx, snapshotID)
	if err != nil {
		return decimal.Zero, err
	}
	return cycle.RequiredAmount, nil
}

func (uc UseCase) PayoutRecords(ctx context.Context, snapshotID string) ([]entities.PayoutRecord, error) {
	if _, err := uc.Repository.GetCycle(ctx, snapshotID); err != nil {
		return nil, err
	}
	return uc.Repository.PayoutRecords(ctx, snapshotID)
}
