package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"meridian/contexts/compliance-core/transfer-gate/domain/entities"
	domainerrors "meridian/contexts/compliance-core/transfer-gate/domain/errors"
	"meridian/contexts/compliance-core/transfer-gate/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type outboxRecord struct {
	OutboxID  string
	Envelope  ports.EventEnvelope
	Payload   []byte
	Sequence  uint64
	CreatedAt time.Time
	SentAt    *time.Time
}

// Store is the in-memory ledger used by tests and local runs. It backs the
// LedgerRepository, IdempotencyStore, OutboxWriter, OutboxRepository, Clock,
// and IDGenerator ports.
type Store struct {
	mu sync.RWMutex

	balances    map[entities.Partition]map[string]decimal.Decimal
	supply      map[entities.Partition]decimal.Decimal
	receipts    []entities.TransferReceipt
	idempotency map[string]ports.IdempotencyRecord
	outbox      []outboxRecord
	sequence    uint64
}

func NewStore() *Store {
	return &Store{
		balances:    make(map[entities.Partition]map[string]decimal.Decimal),
		supply:      make(map[entities.Partition]decimal.Decimal),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) GetBalance(_ context.Context, wallet string, partition entities.Partition) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[partition][strings.TrimSpace(wallet)], nil
}

func (s *Store) PartitionSupply(_ context.Context, partition entities.Partition) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.supply[partition], nil
}

func (s *Store) ListHoldings(_ context.Context) ([]entities.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holdings := make([]entities.Holding, 0)
	for partition, wallets := range s.balances {
		for wallet, balance := range wallets {
			if balance.IsZero() {
				continue
			}
			holdings = append(holdings, entities.Holding{
				Wallet:    wallet,
				Partition: partition,
				Balance:   balance,
			})
		}
	}
	return holdings, nil
}

func (s *Store) ApplyMint(_ context.Context, receipt entities.TransferReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credit(receipt.To, receipt.Partition, receipt.Amount)
	s.supply[receipt.Partition] = s.supply[receipt.Partition].Add(receipt.Amount)
	s.receipts = append(s.receipts, receipt)
	return nil
}

func (s *Store) ApplyBurn(_ context.Context, receipt entities.TransferReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[receipt.Partition][receipt.From].LessThan(receipt.Amount) {
		return domainerrors.ErrInsufficientBalance
	}
	s.debit(receipt.From, receipt.Partition, receipt.Amount)
	s.supply[receipt.Partition] = s.supply[receipt.Partition].Sub(receipt.Amount)
	s.receipts = append(s.receipts, receipt)
	return nil
}

func (s *Store) ApplyTransfer(_ context.Context, receipt entities.TransferReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[receipt.Partition][receipt.From].LessThan(receipt.Amount) {
		return domainerrors.ErrInsufficientBalance
	}
	s.debit(receipt.From, receipt.Partition, receipt.Amount)
	s.credit(receipt.To, receipt.Partition, receipt.Amount)
	s.receipts = append(s.receipts, receipt)
	return nil
}

func (s *Store) credit(wallet string, partition entities.Partition, amount decimal.Decimal) {
	if s.balances[partition] == nil {
		s.balances[partition] = make(map[string]decimal.Decimal)
	}
	s.balances[partition][wallet] = s.balances[partition][wallet].Add(amount)
}

func (s *Store) debit(wallet string, partition entities.Partition, amount decimal.Decimal) {
	remaining := s.balances[partition][wallet].Sub(amount)
	if remaining.IsZero() {
		delete(s.balances[partition], wallet)
		return
	}
	s.balances[partition][wallet] = remaining
}

// Receipts returns every admitted mutation in order. Test helper.
func (s *Store) Receipts() []entities.TransferReceipt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]entities.TransferReceipt(nil), s.receipts...)
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.idempotency[key]
	if !exists || record.ExpiresAt.Before(now) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idempotency[record.Key] = record
	return nil
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
