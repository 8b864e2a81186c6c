package ports

import (
	"context"
	"time"

	registryentities "meridian/contexts/compliance-core/claims-registry/domain/entities"
	registryports "meridian/contexts/compliance-core/claims-registry/ports"
	"meridian/contexts/compliance-core/transfer-gate/domain/entities"

	"github.com/shopspring/decimal"
)

// LedgerRepository owns (wallet, partition) balances and per-partition supply.
// Apply* methods mutate balance, supply, and the receipt audit row atomically;
// a failed precondition (such as insufficient balance) leaves no change.
type LedgerRepository interface {
	GetBalance(ctx context.Context, wallet string, partition entities.Partition) (decimal.Decimal, error)
	PartitionSupply(ctx context.Context, partition entities.Partition) (decimal.Decimal, error)
	// ListHoldings returns every non-zero holding in one consistent view.
	ListHoldings(ctx context.Context) ([]entities.Holding, error)
	ApplyMint(ctx context.Context, receipt entities.TransferReceipt) error
	ApplyBurn(ctx context.Context, receipt entities.TransferReceipt) error
	ApplyTransfer(ctx context.Context, receipt entities.TransferReceipt) error
}

// ComplianceChecker is the admission policy surface the gate consults before
// any ledger mutation. Implemented by the claims-registry query use case.
type ComplianceChecker interface {
	IsTransferAllowed(
		ctx context.Context,
		from string,
		to string,
		partition registryentities.Partition,
		amount decimal.Decimal,
	) (registryentities.Decision, error)
	IsForcedTransferAllowed(
		ctx context.Context,
		to string,
		partition registryentities.Partition,
		amount decimal.Decimal,
	) (registryentities.Decision, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Authority = registryports.Authority

type Capability = registryports.Capability

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
