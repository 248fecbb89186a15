package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OpportunityFilters contains filter options for listing opportunities
type OpportunityFilters struct {
	Stage    *domain.OpportunityStage
	ClientID *uuid.UUID
}

type OpportunityRepository struct {
	db *gorm.DB
}

func NewOpportunityRepository(db *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

func (r *OpportunityRepository) Create(ctx context.Context, opp *domain.Opportunity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(opp).Error
}

func (r *OpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	err := r.db.WithContext(ctx).First(&opp, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &opp, nil
}

func (r *OpportunityRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Opportunity{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *OpportunityRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage domain.OpportunityStage) error {
	return r.db.WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("id = ?", id).
		Update("stage", stage).Error
}

// SetClient links an opportunity to the client created for it
func (r *OpportunityRepository) SetClient(ctx context.Context, id, clientID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("id = ?", id).
		Update("client_id", clientID).Error
}

func (r *OpportunityRepository) List(ctx context.Context, opts ListOptions, filters *OpportunityFilters) ([]domain.Opportunity, int64, error) {
	var opps []domain.Opportunity
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Opportunity{})
	query = ApplyAssignmentScope(query, domain.EntityOpportunity, opts.Scope)

	if filters != nil {
		if filters.Stage != nil {
			query = query.Where("stage = ?", *filters.Stage)
		}
		if filters.ClientID != nil {
			query = query.Where("client_id = ?", *filters.ClientID)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query, opts, map[string]string{
		"createdAt":      "created_at",
		"updatedAt":      "updated_at",
		"name":           "name",
		"estimatedValue": "estimated_value",
	}).Find(&opps).Error
	return opps, total, err
}
