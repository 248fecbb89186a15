package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository handles roles and the permissions they grant
type RoleRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *gorm.DB, logger *zap.Logger) *RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a role with its permission grants
func (r *RoleRepository) Create(ctx context.Context, role *domain.Role, permissions []domain.Permission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(role).Error; err != nil {
			r.logger.Error("failed to create role", zap.String("name", role.Name), zap.Error(err))
			return err
		}
		if len(permissions) == 0 {
			return nil
		}
		grants := make([]domain.RolePermission, len(permissions))
		for i, p := range permissions {
			grants[i] = domain.RolePermission{RoleID: role.ID, Permission: p}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grants).Error
	})
}

// PermissionsForUser returns the permissions granted by the user's role.
// A user without a role has none.
func (r *RoleRepository) PermissionsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Permission, error) {
	var perms []domain.Permission
	err := r.db.WithContext(ctx).
		Model(&domain.RolePermission{}).
		Joins("JOIN users ON users.role_id = role_permissions.role_id").
		Where("users.id = ?", userID).
		Order("role_permissions.permission ASC").
		Pluck("role_permissions.permission", &perms).Error
	if err != nil {
		r.logger.Error("failed to load permissions", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}
	return perms, nil
}
