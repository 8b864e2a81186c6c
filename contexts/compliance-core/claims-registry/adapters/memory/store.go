package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"meridian/contexts/compliance-core/claims-registry/domain/entities"
	domainerrors "meridian/contexts/compliance-core/claims-registry/domain/errors"
	"meridian/contexts/compliance-core/claims-registry/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	OutboxID  string
	Envelope  ports.EventEnvelope
	Payload   []byte
	Sequence  uint64
	CreatedAt time.Time
	SentAt    *time.Time
}

// Store is the in-memory registry used by tests and local runs. It backs the
// Repository, OutboxWriter, OutboxRepository, Clock, and IDGenerator ports.
type Store struct {
	mu sync.RWMutex

	records  map[string]entities.ClaimsRecord
	outbox   []outboxRecord
	sequence uint64
}

func NewStore(seed []entities.ClaimsRecord) *Store {
	records := make(map[string]entities.ClaimsRecord, len(seed))
	for _, record := range seed {
		if !entities.IsZeroWallet(record.Wallet) {
			records[record.Wallet] = record
		}
	}
	return &Store{records: records}
}

func (s *Store) GetRecord(_ context.Context, wallet string) (entities.ClaimsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[strings.TrimSpace(wallet)]
	if !exists {
		return entities.ClaimsRecord{}, domainerrors.ErrWalletNotFound
	}
	return record, nil
}

func (s *Store) UpsertRecord(_ context.Context, record entities.ClaimsRecord) error {
	if entities.IsZeroWallet(record.Wallet) {
		return domainerrors.ErrZeroWalletAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[strings.TrimSpace(record.Wallet)] = record
	return nil
}

func (s *Store) ListExpiredClaims(_ context.Context, now time.Time, limit int) ([]entities.ClaimsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expired := make([]entities.ClaimsRecord, 0)
	for _, record := range s.records {
		if !record.Whitelisted || !record.HasClaims() {
			continue
		}
		if record.Claims.ExpiresAt.IsZero() || record.Claims.ExpiresAt.After(now) {
			continue
		}
		expired = append(expired, record)
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].Wallet < expired[j].Wallet
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	envelope.Sequence = s.sequence
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, outboxRecord{
		OutboxID:  uuid.NewString(),
		Envelope:  envelope,
		Payload:   payload,
		Sequence:  s.sequence,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]ports.OutboxMessage, 0)
	for _, record := range s.outbox {
		if record.SentAt != nil {
			continue
		}
		pending = append(pending, ports.OutboxMessage{
			OutboxID:     record.OutboxID,
			EventType:    record.Envelope.EventType,
			PartitionKey: record.Envelope.PartitionKey,
			Payload:      record.Payload,
			Sequence:     record.Sequence,
			CreatedAt:    record.CreatedAt,
		})
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx := range s.outbox {
		if s.outbox[idx].OutboxID == outboxID {
			sent := sentAt.UTC()
			s.outbox[idx].SentAt = &sent
			return nil
		}
	}
	return nil
}

// Events returns every appended envelope in sequence order. Test helper.
func (s *Store) Events() []ports.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.EventEnvelope, 0, len(s.outbox))
	for _, record := range s.outbox {
		events = append(events, record.Envelope)
	}
	return events
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
