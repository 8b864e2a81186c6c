package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "meridian/contexts/compliance-core/claims-registry/application"
	"meridian/contexts/compliance-core/claims-registry/ports"
)

// OutboxRelay publishes persisted outbox records to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows in sequence order
// and marks each row sent only after broker publish succeeds. It stops on
// the first failure so the retry loop can reprocess remaining rows safely.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("claims outbox list failed",
			"event", "claims_outbox_list_failed",
			"module", "compliance-core/claims-registry",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("claims outbox decode failed",
				"event", "claims_outbox_decode_failed",
				"module", "compliance-core/claims-registry",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		event.Sequence = row.Sequence
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("claims outbox publish failed",
				"event", "claims_outbox_publish_failed",
				"module", "compliance-core/claims-registry",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxSent(ctx, row.OutboxID, now); err != nil {
			logger.Error("claims outbox mark sent failed",
				"event", "claims_outbox_mark_sent_failed",
				"module", "compliance-core/claims-registry",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("claims outbox relay cycle completed",
		"event", "claims_outbox_relay_completed",
		"module", "compliance-core/claims-registry",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
