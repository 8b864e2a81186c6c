package ports

import (
	"context"
	"strings"
	"time"

	"meridian/contexts/compliance-core/claims-registry/domain/entities"
	contractsv1 "meridian/contracts/gen/events/v1"
)

type Repository interface {
	GetRecord(ctx context.Context, wallet string) (entities.ClaimsRecord, error)
	UpsertRecord(ctx context.Context, record entities.ClaimsRecord) error
	// ListExpiredClaims returns whitelisted wallets whose claims expired at or
	// before the given instant. Used by the expiry audit worker only.
	ListExpiredClaims(ctx context.Context, now time.Time, limit int) ([]entities.ClaimsRecord, error)
}

// Capability is the authority kind a caller must hold for privileged
// operations. Authority identities are injected as configuration.
type Capability string

const (
	CapabilityOracle     Capability = "oracle"
	CapabilityController Capability = "controller"
)

// Authority is the configured set of privileged caller identities. The oracle
// mutates compliance claims; the controller may force remediation transfers.
type Authority struct {
	OracleID     string
	ControllerID string
}

func (a Authority) Allows(callerID string, capability Capability) bool {
	caller := strings.TrimSpace(callerID)
	if caller == "" {
		return false
	}
	switch capability {
	case CapabilityOracle:
		return caller == strings.TrimSpace(a.OracleID)
	case CapabilityController:
		return caller == strings.TrimSpace(a.ControllerID)
	default:
		return false
	}
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	Sequence     uint64
	CreatedAt    time.Time
}

// OutboxWriter appends an event for the indexer. The adapter assigns the
// monotonic sequence when the row is persisted.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventPublisher hands sequenced envelopes to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, envelope EventEnvelope) error
}
