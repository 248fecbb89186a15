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

type LeadService struct {
	leadRepo       *repository.LeadRepository
	assignmentRepo *repository.AssignmentRepository
	assignments    *AssignmentService
	guard          *AccessGuard
	logger         *zap.Logger
	db             *gorm.DB
}

func NewLeadService(
	leadRepo *repository.LeadRepository,
	assignmentRepo *repository.AssignmentRepository,
	assignments *AssignmentService,
	guard *AccessGuard,
	logger *zap.Logger,
	db *gorm.DB,
) *LeadService {
	return &LeadService{
		leadRepo:       leadRepo,
		assignmentRepo: assignmentRepo,
		assignments:    assignments,
		guard:          guard,
		logger:         logger,
		db:             db,
	}
}

// Create registers a new lead. The creator is always assigned.
func (s *LeadService) Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.LeadDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if isBlank(req.Email) && isBlank(req.Phone) {
		return nil, ErrLeadContactRequired
	}

	input := &domain.NewLeadInput{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		CompanyName: req.CompanyName,
		Source:      req.Source,
	}

	var lead *domain.Lead
	var notice pendingNotice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		lead, notice, err = insertLead(ctx, tx, s.assignments, input, domain.LeadStatusNew, req.Users, user)
		if err != nil {
			return err
		}
		if req.Notes != "" {
			lead.Notes = req.Notes
			return tx.WithContext(ctx).Model(lead).Update("notes", req.Notes).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lead created",
		zap.String("lead_id", lead.ID.String()),
		zap.String("user_id", user.UserID.String()))

	s.assignments.Notify(ctx, notice.kind, notice.id, notice.label, notice.diff, user)
	return s.leadDTO(ctx, lead.ID)
}

// GetByID returns a lead the current user may see
func (s *LeadService) GetByID(ctx context.Context, id uuid.UUID) (*domain.LeadDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.leadRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	if err := s.guard.AuthorizeView(ctx, domain.EntityLead, id, user); err != nil {
		return nil, err
	}
	return s.leadDTO(ctx, id)
}

// List returns leads visible to the current user
func (s *LeadService) List(ctx context.Context, opts repository.ListOptions, filters *repository.LeadFilters) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := s.guard.Scope(domain.EntityLead, user)
	if err != nil {
		return nil, err
	}

	opts = opts.Normalize()
	opts.Scope = scope
	leads, total, err := s.leadRepo.List(ctx, opts, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	ids := make([]uuid.UUID, len(leads))
	for i := range leads {
		ids[i] = leads[i].ID
	}
	users, err := s.assignmentRepo.UserIDsFor(ctx, domain.EntityLead, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead assignments: %w", err)
	}

	dtos := make([]domain.LeadDTO, len(leads))
	for i := range leads {
		dtos[i] = mapper.ToLeadDTO(&leads[i], users[leads[i].ID])
	}
	return mapper.NewPaginatedResponse(dtos, total, opts.Page, opts.PageSize), nil
}

func (s *LeadService) leadDTO(ctx context.Context, id uuid.UUID) (*domain.LeadDTO, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	users, err := s.assignmentRepo.UserIDs(ctx, domain.EntityLead, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead assignments: %w", err)
	}
	dto := mapper.ToLeadDTO(lead, users)
	return &dto, nil
}
