package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type assignmentTable struct {
	table  string
	column string
}

// assignmentTables maps each assignable kind to its (entity, user) join table
var assignmentTables = map[domain.EntityKind]assignmentTable{
	domain.EntityLead:        {table: "lead_users", column: "lead_id"},
	domain.EntityOpportunity: {table: "opportunity_users", column: "opportunity_id"},
	domain.EntityDeal:        {table: "deal_users", column: "deal_id"},
	domain.EntityClient:      {table: "client_users", column: "client_id"},
	domain.EntityProposal:    {table: "proposal_users", column: "proposal_id"},
}

// ErrNotAssignable is returned for entity kinds that have no join table
var ErrNotAssignable = fmt.Errorf("entity kind has no assignment table")

// HasAssignments reports whether kind carries user assignments
func HasAssignments(kind domain.EntityKind) bool {
	_, ok := assignmentTables[kind]
	return ok
}

// AssignmentRepository reads and writes the (entity, user) join tables
type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) lookup(kind domain.EntityKind) (assignmentTable, error) {
	t, ok := assignmentTables[kind]
	if !ok {
		return assignmentTable{}, fmt.Errorf("%w: %s", ErrNotAssignable, kind)
	}
	return t, nil
}

// UserIDs returns the users currently assigned to an entity
func (r *AssignmentRepository) UserIDs(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID) ([]uuid.UUID, error) {
	t, err := r.lookup(kind)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	err = r.db.WithContext(ctx).
		Table(t.table).
		Where(t.column+" = ?", entityID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// UserIDsFor returns assignments for several entities of the same kind
func (r *AssignmentRepository) UserIDsFor(ctx context.Context, kind domain.EntityKind, entityIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	result := make(map[uuid.UUID][]uuid.UUID, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}
	t, err := r.lookup(kind)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		EntityID uuid.UUID
		UserID   uuid.UUID
	}
	err = r.db.WithContext(ctx).
		Table(t.table).
		Select(t.column+" AS entity_id, user_id").
		Where(t.column+" IN ?", entityIDs).
		Order("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.EntityID] = append(result[row.EntityID], row.UserID)
	}
	return result, nil
}

// IsAssigned reports whether a join row exists for (entity, user)
func (r *AssignmentRepository) IsAssigned(ctx context.Context, kind domain.EntityKind, entityID, userID uuid.UUID) (bool, error) {
	t, err := r.lookup(kind)
	if err != nil {
		return false, err
	}
	var count int64
	err = r.db.WithContext(ctx).
		Table(t.table).
		Where(t.column+" = ? AND user_id = ?", entityID, userID).
		Count(&count).Error
	return count > 0, err
}

// Apply inserts added and deletes removed memberships
func (r *AssignmentRepository) Apply(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, added, removed []uuid.UUID) error {
	t, err := r.lookup(kind)
	if err != nil {
		return err
	}

	if len(removed) > 0 {
		err := r.db.WithContext(ctx).
			Exec("DELETE FROM "+t.table+" WHERE "+t.column+" = ? AND user_id IN ?", entityID, removed).Error
		if err != nil {
			return fmt.Errorf("failed to remove assignments: %w", err)
		}
	}

	if len(added) > 0 {
		rows := make([]map[string]interface{}, 0, len(added))
		for _, userID := range added {
			rows = append(rows, map[string]interface{}{
				t.column:  entityID,
				"user_id": userID,
			})
		}
		err := r.db.WithContext(ctx).
			Table(t.table).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(rows).Error
		if err != nil {
			return fmt.Errorf("failed to add assignments: %w", err)
		}
	}

	return nil
}
