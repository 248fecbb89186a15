package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/mapper"
	"github.com/straye-as/salesflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProposalService creates proposals and manages their content sections and
// finance table. Status changes live in ProposalLifecycleService.
type ProposalService struct {
	proposalRepo   *repository.ProposalRepository
	logRepo        *repository.ProposalLogRepository
	assignmentRepo *repository.AssignmentRepository
	assignments    *AssignmentService
	guard          *AccessGuard
	logger         *zap.Logger
	db             *gorm.DB
}

func NewProposalService(
	proposalRepo *repository.ProposalRepository,
	logRepo *repository.ProposalLogRepository,
	assignmentRepo *repository.AssignmentRepository,
	assignments *AssignmentService,
	guard *AccessGuard,
	logger *zap.Logger,
	db *gorm.DB,
) *ProposalService {
	return &ProposalService{
		proposalRepo:   proposalRepo,
		logRepo:        logRepo,
		assignmentRepo: assignmentRepo,
		assignments:    assignments,
		guard:          guard,
		logger:         logger,
		db:             db,
	}
}

// Create opens a proposal in WAITING_APPROVAL, attached to an optional
// opportunity, deal or project
func (s *ProposalService) Create(ctx context.Context, req *domain.CreateProposalRequest) (*domain.ProposalDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	ref, err := domain.ParseRelatedEntity(req.RelatedEntityType, req.RelatedEntityID)
	if err != nil {
		return nil, ErrInvalidRelatedEntity
	}
	if err := ensureRelatedEntity(ctx, s.db, ref); err != nil {
		return nil, err
	}
	if !ref.IsNone() {
		if err := s.guard.AuthorizeView(ctx, relatedEntityKinds[ref.Kind], ref.ID, user); err != nil {
			return nil, err
		}
	}

	version := req.Version
	if version == 0 {
		version = 1
	}
	proposal := &domain.Proposal{
		Title:     req.Title,
		Version:   version,
		Type:      req.Type,
		Reference: req.Reference,
		Status:    domain.ProposalStatusWaitingApproval,
	}
	proposal.SetRelated(ref)

	var diff AssignmentDiff
	err = s.db.Transaction(func(tx *gorm.DB) error {
		proposalRepo := repository.NewProposalRepository(tx)

		exists, err := proposalRepo.ExistsByReference(ctx, req.Reference, nil)
		if err != nil {
			return fmt.Errorf("failed to check proposal reference: %w", err)
		}
		if exists {
			return ErrProposalReferenceAlreadyExists
		}
		if err := proposalRepo.Create(ctx, proposal); err != nil {
			return uniqueViolation(err, ErrProposalReferenceAlreadyExists, "failed to create proposal")
		}

		diff, err = s.assignments.Reconcile(ctx, tx, domain.EntityProposal, proposal.ID, WithCreator(req.Users, user.UserID))
		if err != nil {
			return err
		}
		return appendProposalLog(ctx, tx, proposal.ID, user.UserID, domain.ProposalActionCreated)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("proposal created",
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("related", ref.String()))

	s.assignments.Notify(ctx, domain.EntityProposal, proposal.ID, proposal.Title, diff, user)
	return proposalDTO(ctx, s.db, s.assignmentRepo, proposal.ID)
}

// GetByID returns a proposal with content and finance table
func (s *ProposalService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	if err := s.authorizeView(ctx, id); err != nil {
		return nil, err
	}
	return proposalDTO(ctx, s.db, s.assignmentRepo, id)
}

// List returns proposals visible to the current user
func (s *ProposalService) List(ctx context.Context, opts repository.ListOptions, filters *repository.ProposalFilters) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := s.guard.Scope(domain.EntityProposal, user)
	if err != nil {
		return nil, err
	}

	opts = opts.Normalize()
	opts.Scope = scope
	proposals, total, err := s.proposalRepo.List(ctx, opts, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	ids := make([]uuid.UUID, len(proposals))
	for i := range proposals {
		ids[i] = proposals[i].ID
	}
	users, err := s.assignmentRepo.UserIDsFor(ctx, domain.EntityProposal, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal assignments: %w", err)
	}

	dtos := make([]domain.ProposalDTO, len(proposals))
	for i := range proposals {
		dtos[i] = mapper.ToProposalDTO(&proposals[i], users[proposals[i].ID])
	}
	return mapper.NewPaginatedResponse(dtos, total, opts.Page, opts.PageSize), nil
}

// Logs returns the audit trail of a proposal, oldest first
func (s *ProposalService) Logs(ctx context.Context, id uuid.UUID) ([]domain.ProposalLogDTO, error) {
	if err := s.authorizeView(ctx, id); err != nil {
		return nil, err
	}

	logs, err := s.logRepo.ListByProposal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposal logs: %w", err)
	}
	dtos := make([]domain.ProposalLogDTO, len(logs))
	for i := range logs {
		dtos[i] = mapper.ToProposalLogDTO(&logs[i])
	}
	return dtos, nil
}

// ReplaceContent swaps all content sections. Section order follows the request.
func (s *ProposalService) ReplaceContent(ctx context.Context, id uuid.UUID, req *domain.ReplaceProposalContentRequest) (*domain.ProposalDTO, error) {
	contents := make([]domain.ProposalContent, len(req.Sections))
	for i, section := range req.Sections {
		contents[i] = domain.ProposalContent{
			Position: i,
			Heading:  section.Heading,
			Body:     section.Body,
		}
	}

	err := s.editWhileWaiting(ctx, id, domain.ProposalActionContentUpdated, func(tx *gorm.DB) error {
		if err := repository.NewProposalRepository(tx).ReplaceContents(ctx, id, contents); err != nil {
			return fmt.Errorf("failed to replace proposal content: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposalDTO(ctx, s.db, s.assignmentRepo, id)
}

// UpsertFinanceTable prices the given rows and stores them as the proposal's
// finance table
func (s *ProposalService) UpsertFinanceTable(ctx context.Context, id uuid.UUID, req *domain.UpsertFinanceTableRequest) (*domain.ProposalDTO, error) {
	table := mapper.BuildFinanceTable(id, req.Rows, req.Discount, req.TaxRate)

	err := s.editWhileWaiting(ctx, id, domain.ProposalActionFinanceUpdated, func(tx *gorm.DB) error {
		if err := repository.NewProposalRepository(tx).UpsertFinanceTable(ctx, table); err != nil {
			return fmt.Errorf("failed to save finance table: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("proposal finance table saved",
		zap.String("proposal_id", id.String()),
		zap.Float64("total", table.Total))
	return proposalDTO(ctx, s.db, s.assignmentRepo, id)
}

// editWhileWaiting runs edit in a transaction after checking the proposal is
// still waiting for approval, then appends action to the log
func (s *ProposalService) editWhileWaiting(ctx context.Context, id uuid.UUID, action domain.ProposalAction, edit func(tx *gorm.DB) error) error {
	user, err := s.authorizeEdit(ctx, id)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		proposal, err := loadProposal(ctx, tx, id)
		if err != nil {
			return err
		}
		switch proposal.Status {
		case domain.ProposalStatusArchived:
			return ErrInvalidProposalStatus
		case domain.ProposalStatusWaitingApproval:
		default:
			return ErrInvalidProposalStatusToUpdate
		}

		if err := edit(tx); err != nil {
			return err
		}
		return appendProposalLog(ctx, tx, id, user.UserID, action)
	})
}

func (s *ProposalService) authorizeView(ctx context.Context, id uuid.UUID) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if _, err := loadProposal(ctx, s.db, id); err != nil {
		return err
	}
	return s.guard.AuthorizeView(ctx, domain.EntityProposal, id, user)
}

func (s *ProposalService) authorizeEdit(ctx context.Context, id uuid.UUID) (*auth.UserContext, error) {
	return authorizeProposalEdit(ctx, s.db, s.guard, id)
}

// loadProposal reads a proposal header with db, mapping a missing row to
// ErrProposalNotFound
func loadProposal(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Proposal, error) {
	proposal, err := repository.NewProposalRepository(db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return proposal, nil
}

func appendProposalLog(ctx context.Context, tx *gorm.DB, proposalID, userID uuid.UUID, action domain.ProposalAction) error {
	err := repository.NewProposalLogRepository(tx).Append(ctx, &domain.ProposalLog{
		ProposalID: proposalID,
		UserID:     userID,
		Action:     action,
	})
	if err != nil {
		return fmt.Errorf("failed to append proposal log: %w", err)
	}
	return nil
}

func proposalDTO(ctx context.Context, db *gorm.DB, assignmentRepo *repository.AssignmentRepository, id uuid.UUID) (*domain.ProposalDTO, error) {
	proposal, err := repository.NewProposalRepository(db).GetWithDetails(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to load proposal: %w", err)
	}
	users, err := assignmentRepo.UserIDs(ctx, domain.EntityProposal, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal assignments: %w", err)
	}
	dto := mapper.ToProposalDTO(proposal, users)
	return &dto, nil
}
