package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DealFilters contains filter options for listing deals
type DealFilters struct {
	Stage       *domain.DealStage
	ClientID    *uuid.UUID
	MinPrice    *float64
	MaxPrice    *float64
	SearchQuery *string
}

var dealSortFields = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"name":        "name",
	"companyName": "company_name",
	"price":       "price",
}

type DealRepository struct {
	db *gorm.DB
}

func NewDealRepository(db *gorm.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Create inserts the deal row only; child rows are written separately
func (r *DealRepository) Create(ctx context.Context, deal *domain.Deal) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(deal).Error
}

func (r *DealRepository) CreateInvoices(ctx context.Context, invoices []domain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&invoices).Error
}

func (r *DealRepository) CreateDeliveryDetails(ctx context.Context, details []domain.DeliveryDetail) error {
	if len(details) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&details).Error
}

func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.db.WithContext(ctx).
		Preload("Invoices", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("DeliveryDetails", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&deal, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// ExistsByNameAndCompany checks the (name, companyName) pair among live
// deals, optionally ignoring one deal.
func (r *DealRepository) ExistsByNameAndCompany(ctx context.Context, name, companyName string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("name = ? AND company_name = ?", name, companyName)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// UpdateFields writes the editable deal columns, including a nil cancelled reason
func (r *DealRepository) UpdateFields(ctx context.Context, deal *domain.Deal) error {
	return r.db.WithContext(ctx).
		Model(deal).
		Select("name", "company_name", "price", "stage", "cancelled_reason", "updated_at").
		Updates(deal).Error
}

func (r *DealRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage domain.DealStage) error {
	return r.db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stage":            stage,
			"cancelled_reason": nil,
		}).Error
}

func (r *DealRepository) List(ctx context.Context, opts ListOptions, filters *DealFilters) ([]domain.Deal, int64, error) {
	var deals []domain.Deal
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Deal{})
	query = ApplyAssignmentScope(query, domain.EntityDeal, opts.Scope)
	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query, opts, dealSortFields).Find(&deals).Error
	return deals, total, err
}

func (r *DealRepository) applyFilters(query *gorm.DB, filters *DealFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.Stage != nil {
		query = query.Where("stage = ?", *filters.Stage)
	}
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if filters.MinPrice != nil {
		query = query.Where("price >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		query = query.Where("price <= ?", *filters.MaxPrice)
	}
	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		pattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(company_name) LIKE ?", pattern, pattern)
	}

	return query
}
