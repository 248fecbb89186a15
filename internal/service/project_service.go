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

type ProjectService struct {
	projectRepo *repository.ProjectRepository
	proposals   *ProposalLifecycleService
	guard       *AccessGuard
	logger      *zap.Logger
	db          *gorm.DB
}

func NewProjectService(
	projectRepo *repository.ProjectRepository,
	proposals *ProposalLifecycleService,
	guard *AccessGuard,
	logger *zap.Logger,
	db *gorm.DB,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		proposals:   proposals,
		guard:       guard,
		logger:      logger,
		db:          db,
	}
}

func (s *ProjectService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if err := s.guard.AuthorizeView(ctx, domain.EntityProject, id, user); err != nil {
		return nil, err
	}
	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// Archive closes a project and archives every proposal attached to it in the
// same transaction
func (s *ProjectService) Archive(ctx context.Context, id uuid.UUID) (*domain.ProjectDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.projectRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if err := s.guard.AuthorizeEdit(ctx, domain.EntityProject, id, user); err != nil {
		return nil, err
	}

	var project *domain.Project
	var archivedProposals int
	err = s.db.Transaction(func(tx *gorm.DB) error {
		projectRepo := repository.NewProjectRepository(tx)

		var err error
		project, err = projectRepo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to reload project: %w", err)
		}
		if project.Status == domain.ProjectStatusArchived {
			return ErrProjectAlreadyArchived
		}

		if err := projectRepo.UpdateStatus(ctx, id, domain.ProjectStatusArchived); err != nil {
			return fmt.Errorf("failed to archive project: %w", err)
		}
		project.Status = domain.ProjectStatusArchived

		ref := domain.RelatedEntity{Kind: domain.RelatedEntityProject, ID: id}
		archivedProposals, err = s.proposals.ArchiveByOwner(ctx, tx, ref, user.UserID)
		if err != nil {
			return err
		}

		return appendAudit(ctx, tx, domain.EntityProject, id, user.UserID, domain.AuditActionProjectArchived,
			fmt.Sprintf("proposals=%d", archivedProposals))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project archived",
		zap.String("project_id", id.String()),
		zap.Int("archived_proposals", archivedProposals))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}
