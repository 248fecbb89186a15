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

type OpportunityService struct {
	oppRepo        *repository.OpportunityRepository
	assignmentRepo *repository.AssignmentRepository
	guard          *AccessGuard
	logger         *zap.Logger
}

func NewOpportunityService(
	oppRepo *repository.OpportunityRepository,
	assignmentRepo *repository.AssignmentRepository,
	guard *AccessGuard,
	logger *zap.Logger,
) *OpportunityService {
	return &OpportunityService{
		oppRepo:        oppRepo,
		assignmentRepo: assignmentRepo,
		guard:          guard,
		logger:         logger,
	}
}

func (s *OpportunityService) GetByID(ctx context.Context, id uuid.UUID) (*domain.OpportunityDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	opp, err := s.oppRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOpportunityNotFound
		}
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}
	if err := s.guard.AuthorizeView(ctx, domain.EntityOpportunity, id, user); err != nil {
		return nil, err
	}

	users, err := s.assignmentRepo.UserIDs(ctx, domain.EntityOpportunity, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunity assignments: %w", err)
	}
	dto := mapper.ToOpportunityDTO(opp, users)
	return &dto, nil
}

func (s *OpportunityService) List(ctx context.Context, opts repository.ListOptions, filters *repository.OpportunityFilters) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := s.guard.Scope(domain.EntityOpportunity, user)
	if err != nil {
		return nil, err
	}

	opts = opts.Normalize()
	opts.Scope = scope
	opps, total, err := s.oppRepo.List(ctx, opts, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}

	ids := make([]uuid.UUID, len(opps))
	for i := range opps {
		ids[i] = opps[i].ID
	}
	users, err := s.assignmentRepo.UserIDsFor(ctx, domain.EntityOpportunity, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunity assignments: %w", err)
	}

	dtos := make([]domain.OpportunityDTO, len(opps))
	for i := range opps {
		dtos[i] = mapper.ToOpportunityDTO(&opps[i], users[opps[i].ID])
	}
	return mapper.NewPaginatedResponse(dtos, total, opts.Page, opts.PageSize), nil
}
