package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProposalFilters contains filter options for listing proposals
type ProposalFilters struct {
	Status      *domain.ProposalStatus
	Related     *domain.RelatedEntity
	SearchQuery *string
}

var proposalSortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"reference": "reference",
	"version":   "version",
}

type ProposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func (r *ProposalRepository) Create(ctx context.Context, proposal *domain.Proposal) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(proposal).Error
}

// GetByID loads a proposal without its children
func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	var proposal domain.Proposal
	err := r.db.WithContext(ctx).First(&proposal, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GetWithDetails loads a proposal together with its content sections and finance table
func (r *ProposalRepository) GetWithDetails(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	var proposal domain.Proposal
	err := r.db.WithContext(ctx).
		Preload("Contents", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("FinanceTable").
		Preload("FinanceTable.Rows", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&proposal, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *ProposalRepository) ExistsByReference(ctx context.Context, reference string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Proposal{}).Where("reference = ?", reference)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// UpdateFields writes the editable header columns of a proposal
func (r *ProposalRepository) UpdateFields(ctx context.Context, proposal *domain.Proposal) error {
	return r.db.WithContext(ctx).
		Model(proposal).
		Select("title", "version", "type", "reference", "related_entity_type", "related_entity_id", "updated_at").
		Updates(proposal).Error
}

// UpdateStatus sets status and rejection reason together; a nil reason clears it
func (r *ProposalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus, rejectionReason *string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Proposal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           status,
			"rejection_reason": rejectionReason,
		}).Error
}

// ListByRelated returns every proposal attached to the given owner
func (r *ProposalRepository) ListByRelated(ctx context.Context, ref domain.RelatedEntity) ([]domain.Proposal, error) {
	var proposals []domain.Proposal
	err := r.db.WithContext(ctx).
		Where("related_entity_type = ? AND related_entity_id = ?", ref.Kind, ref.ID).
		Order("created_at ASC").
		Find(&proposals).Error
	return proposals, err
}

func (r *ProposalRepository) List(ctx context.Context, opts ListOptions, filters *ProposalFilters) ([]domain.Proposal, int64, error) {
	var proposals []domain.Proposal
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Proposal{})
	query = ApplyAssignmentScope(query, domain.EntityProposal, opts.Scope)

	if filters != nil {
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
		if filters.Related != nil && !filters.Related.IsNone() {
			query = query.Where("related_entity_type = ? AND related_entity_id = ?", filters.Related.Kind, filters.Related.ID)
		}
		if filters.SearchQuery != nil && *filters.SearchQuery != "" {
			pattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
			query = query.Where("LOWER(title) LIKE ? OR LOWER(reference) LIKE ?", pattern, pattern)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query, opts, proposalSortFields).Find(&proposals).Error
	return proposals, total, err
}

// ReplaceContents swaps the full set of content sections of a proposal
func (r *ProposalRepository) ReplaceContents(ctx context.Context, proposalID uuid.UUID, contents []domain.ProposalContent) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("proposal_id = ?", proposalID).Delete(&domain.ProposalContent{}).Error; err != nil {
		return err
	}
	if len(contents) == 0 {
		return nil
	}
	for i := range contents {
		contents[i].ProposalID = proposalID
	}
	return db.Create(&contents).Error
}

// UpsertFinanceTable replaces the finance table of a proposal and its rows
func (r *ProposalRepository) UpsertFinanceTable(ctx context.Context, table *domain.FinanceTable) error {
	db := r.db.WithContext(ctx)

	var existing domain.FinanceTable
	err := db.Where("proposal_id = ?", table.ProposalID).First(&existing).Error
	switch {
	case err == nil:
		table.ID = existing.ID
		table.CreatedAt = existing.CreatedAt
		if err := db.Where("finance_table_id = ?", existing.ID).Delete(&domain.FinanceRow{}).Error; err != nil {
			return err
		}
		if err := db.Model(&existing).
			Select("discount", "tax_rate", "subtotal", "tax_amount", "total", "updated_at").
			Updates(table).Error; err != nil {
			return err
		}
	case err == gorm.ErrRecordNotFound:
		if err := db.Omit(clause.Associations).Create(table).Error; err != nil {
			return err
		}
	default:
		return err
	}

	if len(table.Rows) == 0 {
		return nil
	}
	for i := range table.Rows {
		table.Rows[i].ID = uuid.Nil
		table.Rows[i].FinanceTableID = table.ID
	}
	return db.Create(&table.Rows).Error
}
