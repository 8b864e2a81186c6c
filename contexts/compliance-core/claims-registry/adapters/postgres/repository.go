package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"meridian/contexts/compliance-core/claims-registry/domain/entities"
	domainerrors "meridian/contexts/compliance-core/claims-registry/domain/errors"
	"meridian/contexts/compliance-core/claims-registry/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
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

func (r *Repository) GetRecord(ctx context.Context, wallet string) (entities.ClaimsRecord, error) {
	var row claimModel
	err := r.db.WithContext(ctx).
		Where("wallet = ?", strings.TrimSpace(wallet)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ClaimsRecord{}, domainerrors.ErrWalletNotFound
		}
		return entities.ClaimsRecord{}, r.logError("claims_repo_get_failed", err,
			"wallet", strings.TrimSpace(wallet),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) UpsertRecord(ctx context.Context, record entities.ClaimsRecord) error {
	if entities.IsZeroWallet(record.Wallet) {
		return domainerrors.ErrZeroWalletAddress
	}
	row := claimModelFromEntity(record)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "wallet"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"country_code", "accredited", "lockup_until", "expires_at",
				"whitelisted", "revoked", "updated_at",
			}),
		}).
		Create(&row).
		Error
	if err != nil {
		return r.logError("claims_repo_upsert_failed", err,
			"wallet", strings.TrimSpace(record.Wallet),
		)
	}
	return nil
}

func (r *Repository) ListExpiredClaims(ctx context.Context, now time.Time, limit int) ([]entities.ClaimsRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []claimModel
	err := r.db.WithContext(ctx).
		Where("whitelisted = ?", true).
		Where("country_code <> ''").
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now.UTC()).
		Order("wallet ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("claims_repo_list_expired_failed", err)
	}
	records := make([]entities.ClaimsRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
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
		return r.logError("claims_repo_outbox_append_failed", err,
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
		return nil, r.logError("claims_repo_outbox_list_failed", err)
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
		return r.logError("claims_repo_outbox_mark_sent_failed", err,
			"outbox_id", outboxID,
		)
	}
	return nil
}

type claimModel struct {
	Wallet      string     `gorm:"column:wallet;primaryKey"`
	CountryCode string     `gorm:"column:country_code"`
	Accredited  bool       `gorm:"column:accredited"`
	LockupUntil *time.Time `gorm:"column:lockup_until"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	Whitelisted bool       `gorm:"column:whitelisted"`
	Revoked     bool       `gorm:"column:revoked"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (claimModel) TableName() string {
	return "compliance_claims"
}

func (m claimModel) toEntity() entities.ClaimsRecord {
	record := entities.ClaimsRecord{
		Wallet: m.Wallet,
		Claims: entities.Claims{
			CountryCode: m.CountryCode,
			Accredited:  m.Accredited,
		},
		Whitelisted: m.Whitelisted,
		Revoked:     m.Revoked,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.LockupUntil != nil {
		record.Claims.LockupUntil = m.LockupUntil.UTC()
	}
	if m.ExpiresAt != nil {
		record.Claims.ExpiresAt = m.ExpiresAt.UTC()
	}
	return record
}

func claimModelFromEntity(record entities.ClaimsRecord) claimModel {
	row := claimModel{
		Wallet:      strings.TrimSpace(record.Wallet),
		CountryCode: record.Claims.CountryCode,
		Accredited:  record.Claims.Accredited,
		Whitelisted: record.Whitelisted,
		Revoked:     record.Revoked,
		UpdatedAt:   record.UpdatedAt.UTC(),
	}
	if !record.Claims.LockupUntil.IsZero() {
		lockup := record.Claims.LockupUntil.UTC()
		row.LockupUntil = &lockup
	}
	if !record.Claims.ExpiresAt.IsZero() {
		expires := record.Claims.ExpiresAt.UTC()
		row.ExpiresAt = &expires
	}
	return row
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
	return "compliance_outbox"
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
		"module", "compliance-core/claims-registry",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("claims registry repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
