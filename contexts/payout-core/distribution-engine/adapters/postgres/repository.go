package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"meridian/contexts/payout-core/distribution-engine/domain/entities"
	domainerrors "meridian/contexts/payout-core/distribution-engine/domain/errors"
	"meridian/contexts/payout-core/distribution-engine/ports"

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

func (r *Repository) SaveSnapshot(ctx context.Context, snapshot entities.Snapshot) error {
	holders, err := json.Marshal(snapshot.Holders)
	if err != nil {
		return err
	}
	row := snapshotModel{
		SnapshotID:  snapshot.SnapshotID,
		Sequence:    snapshot.Sequence,
		TotalSupply: snapshot.TotalSupply,
		TakenAt:     snapshot.TakenAt.UTC(),
		Holders:     holders,
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "snapshot_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
	if err != nil && !isUniqueViolation(err) {
		return r.logError("payout_repo_save_snapshot_failed", err,
			"snapshot_id", snapshot.SnapshotID,
		)
	}
	return nil
}

func (r *Repository) GetSnapshot(ctx context.Context, snapshotID string) (entities.Snapshot, error) {
	var row snapshotModel
	err := r.db.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Snapshot{}, domainerrors.ErrUnknownSnapshot
		}
		return entities.Snapshot{}, r.logError("payout_repo_get_snapshot_failed", err,
			"snapshot_id", snapshotID,
		)
	}
	var holders []entities.HolderBalance
	if err := json.Unmarshal(row.Holders, &holders); err != nil {
		return entities.Snapshot{}, err
	}
	return entities.Snapshot{
		SnapshotID:  row.SnapshotID,
		Sequence:    row.Sequence,
		TotalSupply: row.TotalSupply,
		TakenAt:     row.TakenAt,
		Holders:     holders,
	}, nil
}

func (r *Repository) SaveCycle(ctx context.Context, cycle entities.Cycle) error {
	row := cycleModelFromEntity(cycle)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "snapshot_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"state", "mode", "required_amount", "funded_amount",
				"cursor", "total_paid", "residual", "updated_at", "distributed_at",
			}),
		}).
		Create(&row).
		Error
	if err != nil {
		return r.logError("payout_repo_save_cycle_failed", err,
			"snapshot_id", cycle.SnapshotID,
		)
	}
	return nil
}

func (r *Repository) GetCycle(ctx context.Context, snapshotID string) (entities.Cycle, error) {
	var row cycleModel
	err := r.db.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Cycle{}, domainerrors.ErrUnknownSnapshot
		}
		return entities.Cycle{}, r.logError("payout_repo_get_cycle_failed", err,
			"snapshot_id", snapshotID,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) UnfinishedCycle(ctx context.Context) (entities.Cycle, bool, error) {
	var row cycleModel
	err := r.db.WithContext(ctx).
		Where("state <> ?", string(entities.StateDistributed)).
		Order("sequence DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Cycle{}, false, nil
		}
		return entities.Cycle{}, false, r.logError("payout_repo_unfinished_cycle_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) NextSnapshotSequence(ctx context.Context) (uint64, error) {
	var current uint64
	err := r.db.WithContext(ctx).
		Model(&snapshotModel{}).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&current).
		Error
	if err != nil {
		return 0, r.logError("payout_repo_next_sequence_failed", err)
	}
	return current + 1, nil
}

func (r *Repository) CommitBatch(ctx context.Context, cycle entities.Cycle, records []entities.PayoutRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			row := payoutRecordModel{
				SnapshotID: record.SnapshotID,
				Wallet:     record.Wallet,
				Amount:     record.Amount,
				Status:     string(record.Status),
				RecordedAt: record.RecordedAt.UTC(),
			}
			err := tx.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "snapshot_id"}, {Name: "wallet"}},
					DoNothing: true,
				}).
				Create(&row).
				Error
			if err != nil && !isUniqueViolation(err) {
				return err
			}
		}
		cycleRow := cycleModelFromEntity(cycle)
		return tx.
			Model(&cycleModel{}).
			Where("snapshot_id = ?", cycle.SnapshotID).
			Updates(map[string]any{
				"cursor":     cycleRow.Cursor,
				"total_paid": cycleRow.TotalPaid,
				"updated_at": cycleRow.UpdatedAt,
			}).
			Error
	})
}

func (r *Repository) PayoutRecords(ctx context.Context, snapshotID string) ([]entities.PayoutRecord, error) {
	var rows []payoutRecordModel
	err := r.db.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		Order("wallet ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("payout_repo_list_records_failed", err,
			"snapshot_id", snapshotID,
		)
	}
	records := make([]entities.PayoutRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, entities.PayoutRecord{
			SnapshotID: row.SnapshotID,
			Wallet:     row.Wallet,
			Amount:     row.Amount,
			Status:     entities.PayoutStatus(row.Status),
			RecordedAt: row.RecordedAt,
		})
	}
	return records, nil
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
		return r.logError("payout_repo_outbox_append_failed", err,
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
		return nil, r.logError("payout_repo_outbox_list_failed", err)
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
		return r.logError("payout_repo_outbox_mark_sent_failed", err,
			"outbox_id", outboxID,
		)
	}
	return nil
}

type snapshotModel struct {
	SnapshotID  string          `gorm:"column:snapshot_id;primaryKey"`
	Sequence    uint64          `gorm:"column:sequence;uniqueIndex"`
	TotalSupply decimal.Decimal `gorm:"column:total_supply;type:numeric"`
	TakenAt     time.Time       `gorm:"column:taken_at"`
	Holders     []byte          `gorm:"column:holders;type:jsonb"`
}

func (snapshotModel) TableName() string {
	return "payout_snapshots"
}

type cycleModel struct {
	SnapshotID     string          `gorm:"column:snapshot_id;primaryKey"`
	Sequence       uint64          `gorm:"column:sequence"`
	State          string          `gorm:"column:state"`
	Mode           string          `gorm:"column:mode"`
	RequiredAmount decimal.Decimal `gorm:"column:required_amount;type:numeric"`
	FundedAmount   decimal.Decimal `gorm:"column:funded_amount;type:numeric"`
	Cursor         int             `gorm:"column:cursor"`
	TotalPaid      decimal.Decimal `gorm:"column:total_paid;type:numeric"`
	Residual       decimal.Decimal `gorm:"column:residual;type:numeric"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
	DistributedAt  *time.Time      `gorm:"column:distributed_at"`
}

func (cycleModel) TableName() string {
	return "payout_cycles"
}

func cycleModelFromEntity(cycle entities.Cycle) cycleModel {
	row := cycleModel{
		SnapshotID:     cycle.SnapshotID,
		Sequence:       cycle.Sequence,
		State:          string(cycle.State),
		Mode:           string(cycle.Mode),
		RequiredAmount: cycle.RequiredAmount,
		FundedAmount:   cycle.FundedAmount,
		Cursor:         cycle.Cursor,
		TotalPaid:      cycle.TotalPaid,
		Residual:       cycle.Residual,
		CreatedAt:      cycle.CreatedAt.UTC(),
		UpdatedAt:      cycle.UpdatedAt.UTC(),
	}
	if !cycle.DistributedAt.IsZero() {
		distributedAt := cycle.DistributedAt.UTC()
		row.DistributedAt = &distributedAt
	}
	return row
}

func (m cycleModel) toEntity() entities.Cycle {
	cycle := entities.Cycle{
		SnapshotID:     m.SnapshotID,
		Sequence:       m.Sequence,
		State:          entities.CycleState(m.State),
		Mode:           entities.Mode(m.Mode),
		RequiredAmount: m.RequiredAmount,
		FundedAmount:   m.FundedAmount,
		Cursor:         m.Cursor,
		TotalPaid:      m.TotalPaid,
		Residual:       m.Residual,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.DistributedAt != nil {
		cycle.DistributedAt = *m.DistributedAt
	}
	return cycle
}

type payoutRecordModel struct {
	SnapshotID string          `gorm:"column:snapshot_id;primaryKey"`
	Wallet     string          `gorm:"column:wallet;primaryKey"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric"`
	Status     string          `gorm:"column:status"`
	RecordedAt time.Time       `gorm:"column:recorded_at"`
}

func (payoutRecordModel) TableName() string {
	return "payout_records"
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
	return "payout_outbox"
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
		"module", "payout-core/distribution-engine",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("payout repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
