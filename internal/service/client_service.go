package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/mapper"
	"github.com/straye-as/salesflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ClientService struct {
	clientRepo     *repository.ClientRepository
	assignmentRepo *repository.AssignmentRepository
	guard          *AccessGuard
	logger         *zap.Logger
}

func NewClientService(
	clientRepo *repository.ClientRepository,
	assignmentRepo *repository.AssignmentRepository,
	guard *AccessGuard,
	logger *zap.Logger,
) *ClientService {
	return &ClientService{
		clientRepo:     clientRepo,
		assignmentRepo: assignmentRepo,
		guard:          guard,
		logger:         logger,
	}
}

func (s *ClientService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClientDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if err := s.guard.AuthorizeView(ctx, domain.EntityClient, id, user); err != nil {
		return nil, err
	}

	users, err := s.assignmentRepo.UserIDs(ctx, domain.EntityClient, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load client assignments: %w", err)
	}
	dto := mapper.ToClientDTO(client, users)
	return &dto, nil
}

// List returns clients visible to the current user, optionally filtered by
// a name search
func (s *ClientService) List(ctx context.Context, opts repository.ListOptions, search string) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := s.guard.Scope(domain.EntityClient, user)
	if err != nil {
		return nil, err
	}

	opts = opts.Normalize()
	opts.Scope = scope
	clients, total, err := s.clientRepo.List(ctx, opts, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	ids := make([]uuid.UUID, len(clients))
	for i := range clients {
		ids[i] = clients[i].ID
	}
	users, err := s.assignmentRepo.UserIDsFor(ctx, domain.EntityClient, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load client assignments: %w", err)
	}

	dtos := make([]domain.ClientDTO, len(clients))
	for i := range clients {
		dtos[i] = mapper.ToClientDTO(&clients[i], users[clients[i].ID])
	}
	return mapper.NewPaginatedResponse(dtos, total, opts.Page, opts.PageSize), nil
}
