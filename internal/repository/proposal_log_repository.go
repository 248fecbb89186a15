package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
)

// ProposalLogRepository handles the append-only proposal log
type ProposalLogRepository struct {
	db *gorm.DB
}

func NewProposalLogRepository(db *gorm.DB) *ProposalLogRepository {
	return &ProposalLogRepository{db: db}
}

// Append inserts a log row. There is no update or delete.
func (r *ProposalLogRepository) Append(ctx context.Context, log *domain.ProposalLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListByProposal returns log rows oldest first
func (r *ProposalLogRepository) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]domain.ProposalLog, error) {
	var logs []domain.ProposalLog
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

func (r *ProposalLogRepository) Count(ctx context.Context, proposalID uuid.UUID, action *domain.ProposalAction) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.ProposalLog{}).Where("proposal_id = ?", proposalID)
	if action != nil {
		query = query.Where("action = ?", *action)
	}
	err := query.Count(&count).Error
	return count, err
}
