package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/mapper"
	"github.com/straye-as/salesflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultHistoryLimit caps an entity history response when the caller gives no limit
const DefaultHistoryLimit = 50

// AuditLogService reads the audit trail of leads, opportunities, deals,
// clients and projects. Rows are written by the operations themselves.
type AuditLogService struct {
	auditRepo *repository.AuditLogRepository
	guard     *AccessGuard
	logger    *zap.Logger
	db        *gorm.DB
}

// NewAuditLogService creates a new audit log service
func NewAuditLogService(auditRepo *repository.AuditLogRepository, guard *AccessGuard, logger *zap.Logger, db *gorm.DB) *AuditLogService {
	return &AuditLogService{
		auditRepo: auditRepo,
		guard:     guard,
		logger:    logger,
		db:        db,
	}
}

// GetByEntity returns the newest audit rows for an entity the current user may view
func (s *AuditLogService) GetByEntity(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, limit int) ([]domain.AuditLogDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if kind == domain.EntityProposal {
		return nil, ErrEntityNotAssignable
	}
	if _, err := loadEntityLabel(ctx, s.db, kind, entityID); err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeView(ctx, kind, entityID, user); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > repository.MaxPageSize {
		limit = DefaultHistoryLimit
	}
	logs, err := s.auditRepo.ListByEntity(ctx, kind, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	dtos := make([]domain.AuditLogDTO, len(logs))
	for i := range logs {
		dtos[i] = mapper.ToAuditLogDTO(&logs[i])
	}
	return dtos, nil
}
