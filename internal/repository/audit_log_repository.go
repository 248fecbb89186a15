package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
)

// AuditLogRepository handles audit log data access
type AuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append inserts a new audit log entry (append-only - no updates allowed)
func (r *AuditLogRepository) Append(ctx context.Context, log *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListByEntity retrieves audit logs for a specific entity, newest first
func (r *AuditLogRepository) ListByEntity(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, limit int) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	query := r.db.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("performed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&logs).Error
	return logs, err
}

// CountByAction counts entries of one action for an entity
func (r *AuditLogRepository) CountByAction(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, action string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Where("entity_kind = ? AND entity_id = ? AND action = ?", kind, entityID, action).
		Count(&count).Error
	return count, err
}
