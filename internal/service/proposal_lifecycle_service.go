package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/straye-as/salesflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxRejectionReasonLength bounds the stored rejection reason
const MaxRejectionReasonLength = 500

// Proposal transition names used in metrics
const (
	TransitionApprove     = "approve"
	TransitionReject      = "reject"
	TransitionReopen      = "reopen"
	TransitionUpdate      = "update"
	TransitionAssignUsers = "assign_users"
	TransitionArchive     = "archive"
)

// ProposalLifecycleService drives the proposal approval state machine:
//
//	WAITING_APPROVAL -> APPROVED | REJECTED
//	APPROVED | REJECTED -> WAITING_APPROVAL (reopen)
//	any -> ARCHIVED (only when the owning record is archived)
//
// Every operation appends exactly one log row in the transaction that
// changes the proposal.
type ProposalLifecycleService struct {
	assignmentRepo *repository.AssignmentRepository
	assignments    *AssignmentService
	guard          *AccessGuard
	metrics        *metrics.Metrics
	logger         *zap.Logger
	db             *gorm.DB
}

func NewProposalLifecycleService(
	assignmentRepo *repository.AssignmentRepository,
	assignments *AssignmentService,
	guard *AccessGuard,
	m *metrics.Metrics,
	logger *zap.Logger,
	db *gorm.DB,
) *ProposalLifecycleService {
	return &ProposalLifecycleService{
		assignmentRepo: assignmentRepo,
		assignments:    assignments,
		guard:          guard,
		metrics:        m,
		logger:         logger,
		db:             db,
	}
}

// transition describes one user-driven change of a proposal
type transition struct {
	name   string
	action domain.ProposalAction
	// apply validates the current state and writes the change with tx
	apply func(tx *gorm.DB, p *domain.Proposal) error
	// notify, when set, is sent to every assigned user after commit
	notify domain.NotificationType
}

// Approve moves a proposal to APPROVED and notifies its assigned users
func (s *ProposalLifecycleService) Approve(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	return s.run(ctx, id, transition{
		name:   TransitionApprove,
		action: domain.ProposalActionApproved,
		notify: domain.NotificationTypeProposalApproved,
		apply: func(tx *gorm.DB, p *domain.Proposal) error {
			if p.Status == domain.ProposalStatusApproved {
				return ErrProposalAlreadyApproved
			}
			p.Status = domain.ProposalStatusApproved
			p.RejectionReason = nil
			return repository.NewProposalRepository(tx).UpdateStatus(ctx, p.ID, p.Status, nil)
		},
	})
}

// Reject moves a proposal to REJECTED with a reason and notifies its
// assigned users
func (s *ProposalLifecycleService) Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.ProposalDTO, error) {
	reason = strings.TrimSpace(reason)

	return s.run(ctx, id, transition{
		name:   TransitionReject,
		action: domain.ProposalActionRejected,
		notify: domain.NotificationTypeProposalRejected,
		apply: func(tx *gorm.DB, p *domain.Proposal) error {
			if p.Status == domain.ProposalStatusRejected {
				return ErrProposalAlreadyRejected
			}
			if reason == "" || utf8.RuneCountInString(reason) > MaxRejectionReasonLength {
				return ErrInvalidRejectionReason
			}
			p.Status = domain.ProposalStatusRejected
			p.RejectionReason = &reason
			return repository.NewProposalRepository(tx).UpdateStatus(ctx, p.ID, p.Status, p.RejectionReason)
		},
	})
}

// Reopen sends an approved or rejected proposal back to WAITING_APPROVAL
func (s *ProposalLifecycleService) Reopen(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	return s.run(ctx, id, transition{
		name:   TransitionReopen,
		action: domain.ProposalActionWaitingApproval,
		apply: func(tx *gorm.DB, p *domain.Proposal) error {
			if p.Status == domain.ProposalStatusWaitingApproval {
				return ErrProposalAlreadyWaiting
			}
			p.Status = domain.ProposalStatusWaitingApproval
			p.RejectionReason = nil
			return repository.NewProposalRepository(tx).UpdateStatus(ctx, p.ID, p.Status, nil)
		},
	})
}

// Update edits the proposal header. Only proposals waiting for approval can
// be edited.
func (s *ProposalLifecycleService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateProposalRequest) (*domain.ProposalDTO, error) {
	return s.run(ctx, id, transition{
		name:   TransitionUpdate,
		action: domain.ProposalActionUpdated,
		apply: func(tx *gorm.DB, p *domain.Proposal) error {
			if p.Status != domain.ProposalStatusWaitingApproval {
				return ErrInvalidProposalStatusToUpdate
			}

			proposalRepo := repository.NewProposalRepository(tx)
			exists, err := proposalRepo.ExistsByReference(ctx, req.Reference, &p.ID)
			if err != nil {
				return fmt.Errorf("failed to check proposal reference: %w", err)
			}
			if exists {
				return ErrProposalReferenceAlreadyExists
			}

			p.Title = req.Title
			if req.Version > 0 {
				p.Version = req.Version
			}
			p.Type = req.Type
			p.Reference = req.Reference
			if err := proposalRepo.UpdateFields(ctx, p); err != nil {
				return uniqueViolation(err, ErrProposalReferenceAlreadyExists, "failed to update proposal")
			}
			return nil
		},
	})
}

// AssignUsers replaces the proposal's assigned users and notifies the added ones
func (s *ProposalLifecycleService) AssignUsers(ctx context.Context, id uuid.UUID, desired []uuid.UUID) (diff *AssignmentDiff, err error) {
	defer func() { s.metrics.RecordProposalTransition(TransitionAssignUsers, err) }()

	if _, err := loadProposal(ctx, s.db, id); err != nil {
		return nil, err
	}
	return s.assignments.assign(ctx, domain.EntityProposal, id, desired, func(tx *gorm.DB) error {
		p, err := loadProposal(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Status == domain.ProposalStatusArchived {
			return ErrInvalidProposalStatus
		}
		return nil
	})
}

// ArchiveByOwner archives every proposal attached to ref using the caller's
// transaction and returns how many changed. It is only reachable through the
// owner being archived.
func (s *ProposalLifecycleService) ArchiveByOwner(ctx context.Context, tx *gorm.DB, ref domain.RelatedEntity, userID uuid.UUID) (int, error) {
	if ref.IsNone() {
		return 0, nil
	}

	proposalRepo := repository.NewProposalRepository(tx)
	proposals, err := proposalRepo.ListByRelated(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("failed to list proposals for %s: %w", ref, err)
	}

	archived := 0
	for i := range proposals {
		p := &proposals[i]
		if p.Status == domain.ProposalStatusArchived {
			continue
		}
		if err := proposalRepo.UpdateStatus(ctx, p.ID, domain.ProposalStatusArchived, p.RejectionReason); err != nil {
			return 0, fmt.Errorf("failed to archive proposal: %w", err)
		}
		if err := appendProposalLog(ctx, tx, p.ID, userID, domain.ProposalActionArchived); err != nil {
			return 0, err
		}
		archived++
	}

	if archived > 0 {
		s.metrics.RecordProposalTransition(TransitionArchive, nil)
	}
	return archived, nil
}

// run authorizes, applies t inside one transaction together with its log row
// and sends notifications after commit
func (s *ProposalLifecycleService) run(ctx context.Context, id uuid.UUID, t transition) (dto *domain.ProposalDTO, err error) {
	defer func() { s.metrics.RecordProposalTransition(t.name, err) }()

	user, err := authorizeProposalEdit(ctx, s.db, s.guard, id)
	if err != nil {
		return nil, err
	}

	var proposal *domain.Proposal
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		proposal, err = loadProposal(ctx, tx, id)
		if err != nil {
			return err
		}
		if proposal.Status == domain.ProposalStatusArchived {
			return ErrInvalidProposalStatus
		}
		if err := t.apply(tx, proposal); err != nil {
			return err
		}
		return appendProposalLog(ctx, tx, id, user.UserID, t.action)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("proposal transition",
		zap.String("proposal_id", id.String()),
		zap.String("transition", t.name),
		zap.String("status", string(proposal.Status)),
		zap.String("user_id", user.UserID.String()))

	if t.notify != "" {
		s.notifyAssigned(ctx, proposal, t.notify, user)
	}
	return proposalDTO(ctx, s.db, s.assignmentRepo, id)
}

func (s *ProposalLifecycleService) notifyAssigned(ctx context.Context, p *domain.Proposal, kind domain.NotificationType, actor *auth.UserContext) {
	users, err := s.assignmentRepo.UserIDs(ctx, domain.EntityProposal, p.ID)
	if err != nil {
		s.logger.Warn("failed to load proposal assignees for notification",
			zap.String("proposal_id", p.ID.String()),
			zap.Error(err))
		return
	}

	var title, body string
	switch kind {
	case domain.NotificationTypeProposalApproved:
		title = "Proposal approved"
		body = fmt.Sprintf("%s approved proposal %s (%s)", actor.DisplayName, p.Title, p.Reference)
	case domain.NotificationTypeProposalRejected:
		title = "Proposal rejected"
		body = fmt.Sprintf("%s rejected proposal %s (%s)", actor.DisplayName, p.Title, p.Reference)
		if p.RejectionReason != nil {
			body += ": " + *p.RejectionReason
		}
	}

	notifications := make([]domain.Notification, 0, len(users))
	for _, userID := range users {
		entityID := p.ID
		notifications = append(notifications, domain.Notification{
			UserID:     userID,
			ActorID:    &actor.UserID,
			EntityKind: domain.EntityProposal,
			EntityID:   &entityID,
			Type:       kind,
			Title:      title,
			Body:       truncate(body, 500),
		})
	}
	s.assignments.Dispatch(ctx, notifications)
}

// authorizeProposalEdit resolves the current user and checks they may edit
// the proposal. A missing proposal is reported before access.
func authorizeProposalEdit(ctx context.Context, db *gorm.DB, guard *AccessGuard, id uuid.UUID) (*auth.UserContext, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := loadProposal(ctx, db, id); err != nil {
		return nil, err
	}
	if err := guard.AuthorizeEdit(ctx, domain.EntityProposal, id, user); err != nil {
		return nil, err
	}
	return user, nil
}
