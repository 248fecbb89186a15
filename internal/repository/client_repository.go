package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(client).Error
}

func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// FindByContact looks a client up by email when one is given, otherwise by
// phone among clients without an email. Returns gorm.ErrRecordNotFound when
// neither matches.
func (r *ClientRepository) FindByContact(ctx context.Context, email, phone *string) (*domain.Client, error) {
	var client domain.Client
	query := r.db.WithContext(ctx)

	switch {
	case email != nil && *email != "":
		query = query.Where("LOWER(email) = ?", strings.ToLower(*email))
	case phone != nil && *phone != "":
		query = query.Where("phone = ? AND email IS NULL", *phone)
	default:
		return nil, gorm.ErrRecordNotFound
	}

	if err := query.First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) List(ctx context.Context, opts ListOptions, search string) ([]domain.Client, int64, error) {
	var clients []domain.Client
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Client{})
	query = ApplyAssignmentScope(query, domain.EntityClient, opts.Scope)

	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(client_name) LIKE ? OR LOWER(company_name) LIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query, opts, map[string]string{
		"createdAt":  "created_at",
		"updatedAt":  "updated_at",
		"clientName": "client_name",
	}).Find(&clients).Error
	return clients, total, err
}
