package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"meridian/contexts/payout-core/distribution-engine/domain/entities"
	domainerrors "meridian/contexts/payout-core/distribution-engine/domain/errors"
	"meridian/contexts/payout-core/distribution-engine/ports"

	"github.com/google/uuid"
)

// Store is the in-memory payout repository used by tests and local runs.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]entities.Snapshot
	cycles    map[string]entities.Cycle
	records   map[string]map[string]entities.PayoutRecord
	sequence  uint64
	outbox    []outboxRow
	outboxSeq uint64
}

type outboxRow struct {
	message ports.OutboxMessage
	sent    bool
}

func NewStore() *Store {
	return &Store{
		snapshots: make(map[string]entities.Snapshot),
		cycles:    make(map[string]entities.Cycle),
		records:   make(map[string]map[string]entities.PayoutRecord),
	}
}

func (s *Store) SaveSnapshot(_ context.Context, snapshot entities.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holders := make([]entities.HolderBalance, len(snapshot.Holders))
	copy(holders, snapshot.Holders)
	snapshot.Holders = holders
	s.snapshots[snapshot.SnapshotID] = snapshot
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, snapshotID string) (entities.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[snapshotID]
	if !ok {
		return entities.Snapshot{}, domainerrors.ErrUnknownSnapshot
	}
	return snapshot, nil
}

func (s *Store) SaveCycle(_ context.Context, cycle entities.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles[cycle.SnapshotID] = cycle
	return nil
}

func (s *Store) GetCycle(_ context.Context, snapshotID string) (entities.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cycle, ok := s.cycles[snapshotID]
	if !ok {
		return entities.Cycle{}, domainerrors.ErrUnknownSnapshot
	}
	return cycle, nil
}

func (s *Store) UnfinishedCycle(_ context.Context) (entities.Cycle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cycle := range s.cycles {
		if !cycle.Finished() {
			return cycle, true, nil
		}
	}
	return entities.Cycle{}, false, nil
}

func (s *Store) NextSnapshotSequence(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return s.sequence, nil
}

func (s *Store) CommitBatch(_ context.Context, cycle entities.Cycle, records []entities.PayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byWallet, ok := s.records[cycle.SnapshotID]
	if !ok {
		byWallet = make(map[string]entities.PayoutRecord)
		s.records[cycle.SnapshotID] = byWallet
	}
	for _, record := range records {
		// Keyed by wallet: a replayed batch overwrites with identical data
		// instead of duplicating.
		byWallet[record.Wallet] = record
	}
	s.cycles[cycle.SnapshotID] = cycle
	return nil
}

func (s *Store) PayoutRecords(_ context.Context, snapshotID string) ([]entities.PayoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byWallet := s.records[snapshotID]
	records := make([]entities.PayoutRecord, 0, len(byWallet))
	snapshot, ok := s.snapshots[snapshotID]
	if ok {
		// Snapshot holder order keeps the listing deterministic.
		for _, holder := range snapshot.Holders {
			if record, found := byWallet[holder.Wallet]; found {
				records = append(records, record)
			}
		}
		return records, nil
	}
	for _, record := range byWallet {
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outboxSeq++
	envelope.Sequence = s.outboxSeq
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     uuid.NewString(),
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			Sequence:     s.outboxSeq,
			CreatedAt:    time.Now().UTC(),
		},
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, row := range s.outbox {
		if row.sent {
			continue
		}
		messages = append(messages, row.message)
		if len(messages) == limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].sent = true
			return nil
		}
	}
	return nil
}

// Events decodes every appended envelope in order, for tests.
func (s *Store) Events() []ports.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]ports.EventEnvelope, 0, len(s.outbox))
	for _, row := range s.outbox {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.message.Payload, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
