package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/mapper"
	"github.com/straye-as/salesflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DealService struct {
	dealRepo       *repository.DealRepository
	assignmentRepo *repository.AssignmentRepository
	assignments    *AssignmentService
	guard          *AccessGuard
	logger         *zap.Logger
	db             *gorm.DB
}

func NewDealService(
	dealRepo *repository.DealRepository,
	assignmentRepo *repository.AssignmentRepository,
	assignments *AssignmentService,
	guard *AccessGuard,
	logger *zap.Logger,
	db *gorm.DB,
) *DealService {
	return &DealService{
		dealRepo:       dealRepo,
		assignmentRepo: assignmentRepo,
		assignments:    assignments,
		guard:          guard,
		logger:         logger,
		db:             db,
	}
}

// GetByID returns a deal with its invoices, delivery details and assignees
func (s *DealService) GetByID(ctx context.Context, id uuid.UUID) (*domain.DealDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	deal, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	if err := s.guard.AuthorizeView(ctx, domain.EntityDeal, id, user); err != nil {
		return nil, err
	}

	return dealDTO(ctx, s.assignmentRepo, deal)
}

// List returns deals visible to the current user
func (s *DealService) List(ctx context.Context, opts repository.ListOptions, filters *repository.DealFilters) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := s.guard.Scope(domain.EntityDeal, user)
	if err != nil {
		return nil, err
	}

	opts = opts.Normalize()
	opts.Scope = scope
	deals, total, err := s.dealRepo.List(ctx, opts, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}

	ids := make([]uuid.UUID, len(deals))
	for i := range deals {
		ids[i] = deals[i].ID
	}
	users, err := s.assignmentRepo.UserIDsFor(ctx, domain.EntityDeal, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load deal assignments: %w", err)
	}

	dtos := make([]domain.DealDTO, len(deals))
	for i := range deals {
		dtos[i] = mapper.ToDealDTO(&deals[i], users[deals[i].ID])
	}
	return mapper.NewPaginatedResponse(dtos, total, opts.Page, opts.PageSize), nil
}

// Update changes the editable deal fields. When req.Users is set the
// assignment set is replaced as well.
func (s *DealService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateDealRequest) (*domain.DealDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	if err := s.guard.AuthorizeEdit(ctx, domain.EntityDeal, id, user); err != nil {
		return nil, err
	}
	if existing.Stage == domain.DealStageConverted {
		return nil, ErrDealAlreadyConverted
	}
	if err := validateDealStage(req.Stage); err != nil {
		return nil, err
	}
	reason, err := cancelledReasonFor(req.Stage, req.CancelledReason)
	if err != nil {
		return nil, err
	}

	var diff AssignmentDiff
	err = s.db.Transaction(func(tx *gorm.DB) error {
		dealRepo := repository.NewDealRepository(tx)

		deal, err := dealRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDealNotFound
			}
			return fmt.Errorf("failed to reload deal: %w", err)
		}

		exists, err := dealRepo.ExistsByNameAndCompany(ctx, req.Name, req.CompanyName, &id)
		if err != nil {
			return fmt.Errorf("failed to check deal uniqueness: %w", err)
		}
		if exists {
			return ErrDealAlreadyExists
		}

		deal.Name = req.Name
		deal.CompanyName = req.CompanyName
		deal.Price = req.Price
		deal.Stage = req.Stage
		deal.CancelledReason = reason
		deal.UpdatedAt = time.Now().UTC()
		if err := dealRepo.UpdateFields(ctx, deal); err != nil {
			return uniqueViolation(err, ErrDealAlreadyExists, "failed to update deal")
		}

		if req.Users != nil {
			diff, err = s.assignments.Reconcile(ctx, tx, domain.EntityDeal, id, *req.Users)
			if err != nil {
				return err
			}
		}

		return appendAudit(ctx, tx, domain.EntityDeal, id, user.UserID, domain.AuditActionDealUpdated,
			fmt.Sprintf("stage=%s", deal.Stage))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal updated",
		zap.String("deal_id", id.String()),
		zap.String("stage", string(req.Stage)))

	s.assignments.Notify(ctx, domain.EntityDeal, id, req.Name, diff, user)

	deal, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload deal: %w", err)
	}
	return dealDTO(ctx, s.assignmentRepo, deal)
}

func dealDTO(ctx context.Context, assignmentRepo *repository.AssignmentRepository, deal *domain.Deal) (*domain.DealDTO, error) {
	users, err := assignmentRepo.UserIDs(ctx, domain.EntityDeal, deal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deal assignments: %w", err)
	}
	dto := mapper.ToDealDTO(deal, users)
	return &dto, nil
}

// validateDealStage rejects unknown stages and CONVERTED, which only a
// conversion may set
func validateDealStage(stage domain.DealStage) error {
	if !stage.IsValid() || stage == domain.DealStageConverted {
		return ErrInvalidDealStage
	}
	return nil
}

// cancelledReasonFor returns the reason to persist for stage. Any supplied
// reason is dropped unless the deal is CANCELLED, which requires one.
func cancelledReasonFor(stage domain.DealStage, reason *string) (*string, error) {
	if stage != domain.DealStageCancelled {
		return nil, nil
	}
	if reason == nil || strings.TrimSpace(*reason) == "" {
		return nil, ErrCancelledReasonRequired
	}
	trimmed := strings.TrimSpace(*reason)
	return &trimmed, nil
}

// newDealFromInput builds an unsaved deal from the shared input fields
func newDealFromInput(input *domain.DealInput) (*domain.Deal, error) {
	if err := validateDealStage(input.Stage); err != nil {
		return nil, err
	}
	reason, err := cancelledReasonFor(input.Stage, input.CancelledReason)
	if err != nil {
		return nil, err
	}
	return &domain.Deal{
		Name:            input.Name,
		CompanyName:     input.CompanyName,
		Price:           input.Price,
		Stage:           input.Stage,
		CancelledReason: reason,
	}, nil
}
