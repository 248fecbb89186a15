package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadFilters contains filter options for listing leads
type LeadFilters struct {
	Status      *domain.LeadStatus
	Source      *string
	SearchQuery *string
}

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(lead).Error
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).First(&lead, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepository) GetByEmail(ctx context.Context, email string) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *LeadRepository) List(ctx context.Context, opts ListOptions, filters *LeadFilters) ([]domain.Lead, int64, error) {
	var leads []domain.Lead
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Lead{})
	query = ApplyAssignmentScope(query, domain.EntityLead, opts.Scope)

	if filters != nil {
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
		if filters.Source != nil {
			query = query.Where("source = ?", *filters.Source)
		}
		if filters.SearchQuery != nil && *filters.SearchQuery != "" {
			pattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
			query = query.Where("LOWER(name) LIKE ? OR LOWER(company_name) LIKE ?", pattern, pattern)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query, opts, nil).Find(&leads).Error
	return leads, total, err
}
