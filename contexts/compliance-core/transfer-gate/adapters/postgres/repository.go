package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"meridian/contexts/compliance-core/transfer-gate/domain/entities"
	domainerrors "meridian/contexts/compliance-core/transfer-gate/domain/errors"
	"meridian/contexts/compliance-core/transfer-gate/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetBalance(ctx context.Context, wallet string, partition entities.Partition) (decimal.Decimal, error) {
	var row holdingModel
	err := r.db.WithContext(ctx).
		Where("wallet = ?", strings.TrimSpace(wallet)).
		Where("partition = ?", string(partition)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, r.logError("ledger_repo_get_balance_failed", err,
			"wallet", strings.TrimSpace(wallet),
			"partition", string(partition),
		)
	}
	return row.Balance, nil
}

func (r *Repository) PartitionSupply(ctx context.Context, partition entities.Partition) (decimal.Decimal, error) {
	var row supplyModel
	err := r.db.WithContext(ctx).
		Where("partition = ?", string(partition)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, r.logError("ledger_repo_get_supply_failed", err,
			"partition", string(partition),
		)
	}
	return row.Supply, nil
}

func (r *Repository) ListHoldings(ctx context.Context) ([]entities.Holding, error) {
	var rows []holdingModel
	err := r.db.WithContext(ctx).
		Where("balance > 0").
		Order("wallet ASC, partition ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("ledger_repo_list_holdings_failed", err)
	}
	holdings := make([]entities.Holding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, entities.Holding{
			Wallet:    row.Wallet,
			Partition: entities.Partition(row.Partition),
			Balance:   row.Balance,
		})
	}
	return holdings, nil
}

func (r *Repository) ApplyMint(ctx context.Context, receipt entities.TransferReceipt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := creditBalance(tx, receipt.To, receipt.Partition, receipt.Amount); err != nil {
			return err
		}
		if err := adjustSupply(tx, receipt.Partition, receipt.Amount); err != nil {
			return err
		}
		return tx.Create(transferModelFromReceipt(receipt)).Error
	})
}

func (r *Repository) ApplyBurn(ctx context.Context, receipt entities.TransferReceipt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := debitBalance(tx, receipt.From, receipt.Partition, receipt.Amount); err != nil {
			return err
		}
		if err := adjustSupply(tx, receipt.Partition, receipt.Amount.Neg()); err != nil {
			return err
		}
		return tx.Create(transferModelFromReceipt(receipt)).Error
	})
}

func (r *Repository) ApplyTransfer(ctx context.Context, receipt entities.TransferReceipt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := debitBalance(tx, receipt.From, receipt.Partition, receipt.Amount); err != nil {
			return err
		}
		if err := creditBalance(tx, receipt.To, receipt.Partition, receipt.Amount); err != nil {
			return err
		}
		return tx.Create(transferModelFromReceipt(receipt)).Error
	})
}

func debitBalance(tx *gorm.DB, wallet string, partition entities.Partition, amount decimal.Decimal) error {
	var row holdingModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet = ?", wallet).
		Where("partition = ?", string(partition)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrInsufficientBalance
		}
		return err
	}
	if row.Balance.LessThan(amount) {
		return domainerrors.ErrInsufficientBalance
	}
	return tx.
		Model(&holdingModel{}).
		Where("wallet = ?", wallet).
		Where("partition = ?", string(partition)).
		Update("balance", row.Balance.Sub(amount)).
		Error
}

func creditBalance(tx *gorm.DB, wallet string, partition entities.Partition, amount decimal.Decimal) error {
	var row holdingModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet = ?", wallet).
		Where("partition = ?", string(partition)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&holdingModel{
				Wallet:    wallet,
				Partition: string(partition),
				Balance:   amount,
			}).Error
		}
		return err
	}
	return tx.
		Model(&holdingModel{}).
		Where("wallet = ?", wallet).
		Where("partition = ?", string(partition)).
		Update("balance", row.Balance.Add(amount)).
		Error
}

func adjustSupply(tx *gorm.DB, partition entities.Partition, delta decimal.Decimal) error {
	var row supplyModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("partition = ?", string(partition)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&supplyModel{
				Partition: string(partition),
				Supply:    delta,
			}).Error
		}
		return err
	}
	return tx.
		Model(&supplyModel{}).
		Where("partition = ?", string(partition)).
		Update("supply", row.Supply.Add(delta)).
		Error
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("ledger_repo_idempotency_get_failed", err)
	}
	if row.ExpiresAt.Before(now) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: row.ResponsePayload,
		ExpiresAt:       row.ExpiresAt,
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             record.Key,
		RequestHash:     record.RequestHash,
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
	if err != nil && !isUniqueViolation(err) {
		return r.logError("ledger_repo_idempotency_put_failed", err)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     uuid.NewString(),
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return r.logError("ledger_repo_outbox_append_failed", err,
			"event_type", envelope.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("ledger_repo_outbox_list_failed", err)
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			Sequence:     row.Sequence,
			CreatedAt:    row.CreatedAt,
		})
	}
	return messages, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		}).
		Error
	if err != nil {
		return r.logError("ledger_repo_outbox_mark_sent_failed", err,
			"outbox_id", outboxID,
		)
	}
	return nil
}

type holdingModel struct {
	Wallet    string          `gorm:"column:wallet;primaryKey"`
	Partition string          `gorm:"column:partition;primaryKey"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric"`
}

func (holdingModel) TableName() string {
	return "ledger_holdings"
}

type supplyModel struct {
	Partition string          `gorm:"column:partition;primaryKey"`
	Supply    decimal.Decimal `gorm:"column:supply;type:numeric"`
}

func (supplyModel) TableName() string {
	return "ledger_partition_supply"
}

type transferModel struct {
	TransferID string          `gorm:"column:transfer_id;primaryKey"`
	Kind       string          `gorm:"column:kind"`
	FromWallet string          `gorm:"column:from_wallet"`
	ToWallet   string          `gorm:"column:to_wallet"`
	Partition  string          `gorm:"column:partition"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric"`
	CallerID   string          `gorm:"column:caller_id"`
	OccurredAt time.Time       `gorm:"column:occurred_at"`
}

func (transferModel) TableName() string {
	return "ledger_transfers"
}

func transferModelFromReceipt(receipt entities.TransferReceipt) *transferModel {
	return &transferModel{
		TransferID: receipt.TransferID,
		Kind:       string(receipt.Kind),
		FromWallet: receipt.From,
		ToWallet:   receipt.To,
		Partition:  string(receipt.Partition),
		Amount:     receipt.Amount,
		CallerID:   receipt.CallerID,
		OccurredAt: receipt.OccurredAt.UTC(),
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "ledger_idempotency_records"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	Sequence     uint64     `gorm:"column:sequence;autoIncrement"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "ledger_outbox"
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "compliance-core/transfer-gate",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("transfer gate repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
