package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	application "meridian/contexts/compliance-core/claims-registry/application"
	"meridian/contexts/compliance-core/claims-registry/ports"
)

// ClaimsExpiryAuditor emits observation events for whitelisted wallets whose
// claims crossed expires-at. Expiry itself is derived at read time and never
// mutates registry state; these events only feed offline analytics. A process
// restart may re-emit an observation, so consumers dedup on wallet+expires_at.
type ClaimsExpiryAuditor struct {
	Repository ports.Repository
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	BatchSize  int
	Logger     *slog.Logger

	mu       sync.Mutex
	observed map[string]time.Time
}

func (a *ClaimsExpiryAuditor) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(a.Logger)
	limit := a.BatchSize
	if limit <= 0 {
		limit = 100
	}
	now := time.Now().UTC()
	if a.Clock != nil {
		now = a.Clock.Now().UTC()
	}

	expired, err := a.Repository.ListExpiredClaims(ctx, now, limit)
	if err != nil {
		logger.Error("claims expiry sweep failed",
			"event", "claims_expiry_sweep_failed",
			"module", "compliance-core/claims-registry",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	emitted := 0
	for _, record := range expired {
		if !a.markObserved(record.Wallet, record.Claims.ExpiresAt) {
			continue
		}
		if a.Outbox == nil {
			continue
		}
		eventID, err := a.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(map[string]any{
			"wallet":     record.Wallet,
			"expires_at": record.Claims.ExpiresAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := a.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
			EventID:          eventID,
			EventType:        "compliance.claims_expired",
			OccurredAt:       now,
			SourceService:    "claims-registry",
			TraceID:          eventID,
			SchemaVersion:    1,
			PartitionKeyPath: "wallet",
			PartitionKey:     record.Wallet,
			Data:             payload,
		}); err != nil {
			logger.Error("claims expiry event append failed",
				"event", "claims_expiry_event_append_failed",
				"module", "compliance-core/claims-registry",
				"layer", "worker",
				"wallet", record.Wallet,
				"error", err.Error(),
			)
			return err
		}
		emitted++
	}

	if emitted > 0 {
		logger.Info("claims expiry sweep completed",
			"event", "claims_expiry_sweep_completed",
			"module", "compliance-core/claims-registry",
			"layer", "worker",
			"expired_count", len(expired),
			"emitted_count", emitted,
		)
	}
	return nil
}

func (a *ClaimsExpiryAuditor) markObserved(wallet string, expiresAt time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.observed == nil {
		a.observed = make(map[string]time.Time)
	}
	if seen, ok := a.observed[wallet]; ok && seen.Equal(expiresAt) {
		return false
	}
	a.observed[wallet] = expiresAt
	return true
}
