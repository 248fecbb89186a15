package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
)

type entityDescriptor struct {
	table       string
	labelColumn string
	softDelete  bool
	notFound    *Error
}

// entityDescriptors is the dispatch table used wherever an operation only
// knows an entity by kind and id.
var entityDescriptors = map[domain.EntityKind]entityDescriptor{
	domain.EntityLead:        {table: "leads", labelColumn: "name", notFound: ErrLeadNotFound},
	domain.EntityOpportunity: {table: "opportunities", labelColumn: "name", notFound: ErrOpportunityNotFound},
	domain.EntityDeal:        {table: "deals", labelColumn: "name", softDelete: true, notFound: ErrDealNotFound},
	domain.EntityClient:      {table: "clients", labelColumn: "client_name", notFound: ErrClientNotFound},
	domain.EntityProposal:    {table: "proposals", labelColumn: "title", notFound: ErrProposalNotFound},
	domain.EntityProject:     {table: "projects", labelColumn: "name", notFound: ErrProjectNotFound},
}

var relatedEntityKinds = map[domain.RelatedEntityKind]domain.EntityKind{
	domain.RelatedEntityOpportunity: domain.EntityOpportunity,
	domain.RelatedEntityDeal:        domain.EntityDeal,
	domain.RelatedEntityProject:     domain.EntityProject,
}

func entityQuery(ctx context.Context, db *gorm.DB, d entityDescriptor, id uuid.UUID) *gorm.DB {
	query := db.WithContext(ctx).Table(d.table).Where("id = ?", id)
	if d.softDelete {
		query = query.Where("deleted_at IS NULL")
	}
	return query
}

// loadEntityLabel returns the human readable name of an entity, or the
// kind's not-found error
func loadEntityLabel(ctx context.Context, db *gorm.DB, kind domain.EntityKind, id uuid.UUID) (string, error) {
	d, ok := entityDescriptors[kind]
	if !ok {
		return "", ErrEntityNotAssignable
	}

	var labels []string
	if err := entityQuery(ctx, db, d, id).Limit(1).Pluck(d.labelColumn, &labels).Error; err != nil {
		return "", fmt.Errorf("failed to load %s: %w", kind, err)
	}
	if len(labels) == 0 {
		return "", d.notFound
	}
	return labels[0], nil
}

// ensureRelatedEntity checks that a proposal's owning record exists.
// The zero reference is always valid.
func ensureRelatedEntity(ctx context.Context, db *gorm.DB, ref domain.RelatedEntity) error {
	if ref.IsNone() {
		return nil
	}
	kind, ok := relatedEntityKinds[ref.Kind]
	if !ok {
		return ErrInvalidRelatedEntity
	}

	var count int64
	if err := entityQuery(ctx, db, entityDescriptors[kind], ref.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check related entity: %w", err)
	}
	if count == 0 {
		return ErrRelatedEntityNotFound
	}
	return nil
}
