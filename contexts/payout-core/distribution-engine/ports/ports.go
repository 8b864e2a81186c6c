package ports

import (
	"context"
	"time"

	registryports "meridian/contexts/compliance-core/claims-registry/ports"
	gateentities "meridian/contexts/compliance-core/transfer-gate/domain/entities"
	"meridian/contexts/payout-core/distribution-engine/domain/entities"

	"github.com/shopspring/decimal"
)

// Repository owns snapshots, payout cycles, and payout records.
// CommitBatch is the durability boundary for distribution: a batch of
// records and the advanced cycle cursor persist atomically, so a resumed
// run continues exactly where the last committed batch stopped.
type Repository interface {
	SaveSnapshot(ctx context.Context, snapshot entities.Snapshot) error
	GetSnapshot(ctx context.Context, snapshotID string) (entities.Snapshot, error)
	SaveCycle(ctx context.Context, cycle entities.Cycle) error
	GetCycle(ctx context.Context, snapshotID string) (entities.Cycle, error)
	// UnfinishedCycle returns the single cycle not yet distributed, if any.
	UnfinishedCycle(ctx context.Context) (entities.Cycle, bool, error)
	// NextSnapshotSequence allocates the next monotonic snapshot sequence.
	NextSnapshotSequence(ctx context.Context) (uint64, error)
	CommitBatch(ctx context.Context, cycle entities.Cycle, records []entities.PayoutRecord) error
	PayoutRecords(ctx context.Context, snapshotID string) ([]entities.PayoutRecord, error)
}

// HolderSource is the read-only view of the ledger a snapshot captures.
// Implemented by the transfer-gate query use case.
type HolderSource interface {
	SnapshotView(ctx context.Context) (decimal.Decimal, []gateentities.HolderBalance, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = registryports.EventEnvelope

type OutboxMessage = registryports.OutboxMessage

type EventPublisher = registryports.EventPublisher

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}
