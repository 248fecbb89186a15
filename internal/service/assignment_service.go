package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/straye-as/salesflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AssignmentDiff is the membership change produced by a reconcile
type AssignmentDiff struct {
	Added   []uuid.UUID `json:"added"`
	Removed []uuid.UUID `json:"removed"`
}

// IsEmpty reports whether the reconcile changed nothing
func (d AssignmentDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// ComputeDiff returns desired minus current as Added and current minus
// desired as Removed. Duplicates in either input are ignored.
func ComputeDiff(current, desired []uuid.UUID) AssignmentDiff {
	currentSet := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	desiredSet := make(map[uuid.UUID]struct{}, len(desired))

	diff := AssignmentDiff{Added: []uuid.UUID{}, Removed: []uuid.UUID{}}
	for _, id := range desired {
		if _, seen := desiredSet[id]; seen {
			continue
		}
		desiredSet[id] = struct{}{}
		if _, ok := currentSet[id]; !ok {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range currentSet {
		if _, ok := desiredSet[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}
	return diff
}

// WithCreator returns users with creator appended when it is missing
func WithCreator(users []uuid.UUID, creator uuid.UUID) []uuid.UUID {
	result := make([]uuid.UUID, 0, len(users)+1)
	found := false
	for _, id := range users {
		if id == creator {
			found = true
		}
		result = append(result, id)
	}
	if !found {
		result = append(result, creator)
	}
	return result
}

// AssignmentService reconciles entity assignments and notifies new members
type AssignmentService struct {
	guard   *AccessGuard
	sender  NotificationSender
	metrics *metrics.Metrics
	logger  *zap.Logger
	db      *gorm.DB
}

func NewAssignmentService(
	guard *AccessGuard,
	sender NotificationSender,
	m *metrics.Metrics,
	logger *zap.Logger,
	db *gorm.DB,
) *AssignmentService {
	return &AssignmentService{
		guard:   guard,
		sender:  sender,
		metrics: m,
		logger:  logger,
		db:      db,
	}
}

// Reconcile replaces the membership of an entity with desired inside tx.
// Unknown user ids fail with ErrUserNotFound before anything is written.
func (s *AssignmentService) Reconcile(ctx context.Context, tx *gorm.DB, kind domain.EntityKind, entityID uuid.UUID, desired []uuid.UUID) (AssignmentDiff, error) {
	if !repository.HasAssignments(kind) {
		return AssignmentDiff{}, ErrEntityNotAssignable
	}

	missing, err := repository.NewUserRepository(tx).FindMissing(ctx, desired)
	if err != nil {
		return AssignmentDiff{}, fmt.Errorf("failed to verify users: %w", err)
	}
	if len(missing) > 0 {
		s.logger.Debug("assignment references unknown users",
			zap.String("entity_kind", string(kind)),
			zap.Int("missing", len(missing)))
		return AssignmentDiff{}, ErrUserNotFound
	}

	assignmentRepo := repository.NewAssignmentRepository(tx)
	current, err := assignmentRepo.UserIDs(ctx, kind, entityID)
	if err != nil {
		return AssignmentDiff{}, fmt.Errorf("failed to load assignments: %w", err)
	}

	diff := ComputeDiff(current, desired)
	if diff.IsEmpty() {
		return diff, nil
	}
	if err := assignmentRepo.Apply(ctx, kind, entityID, diff.Added, diff.Removed); err != nil {
		return AssignmentDiff{}, err
	}
	return diff, nil
}

// Notify sends one ASSIGNED notification per added user. It must be called
// after the transaction that applied diff has committed.
func (s *AssignmentService) Notify(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, label string, diff AssignmentDiff, actor *auth.UserContext) int {
	if len(diff.Added) == 0 {
		return 0
	}

	actorName := "Someone"
	var actorID *uuid.UUID
	if actor != nil {
		actorID = &actor.UserID
		if actor.DisplayName != "" {
			actorName = actor.DisplayName
		}
	}

	notifications := make([]domain.Notification, 0, len(diff.Added))
	for _, userID := range diff.Added {
		id := entityID
		notifications = append(notifications, domain.Notification{
			UserID:     userID,
			ActorID:    actorID,
			EntityKind: kind,
			EntityID:   &id,
			Type:       domain.NotificationTypeAssigned,
			Title:      fmt.Sprintf("Assigned to %s", strings.ToLower(string(kind))),
			Body:       truncate(fmt.Sprintf("%s assigned you to %s", actorName, label), 500),
		})
	}
	return s.Dispatch(ctx, notifications)
}

// Dispatch sends each notification and returns how many were delivered.
// Failures are logged and counted; they never reach the caller.
func (s *AssignmentService) Dispatch(ctx context.Context, notifications []domain.Notification) int {
	sent := 0
	for i := range notifications {
		n := &notifications[i]
		err := s.sender.Send(ctx, n)
		s.metrics.RecordNotification(err)
		if err != nil {
			s.logger.Warn("failed to send notification",
				zap.String("userID", n.UserID.String()),
				zap.String("type", string(n.Type)),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// AssignUsers replaces the assigned users of a lead, opportunity, deal or
// client and notifies the users that were added.
func (s *AssignmentService) AssignUsers(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, desired []uuid.UUID) (*AssignmentDiff, error) {
	return s.assign(ctx, kind, entityID, desired, nil)
}

// assign runs guard, reconcile, log row and notify. precheck runs first inside
// the transaction and may veto the change.
func (s *AssignmentService) assign(ctx context.Context, kind domain.EntityKind, entityID uuid.UUID, desired []uuid.UUID, precheck func(tx *gorm.DB) error) (*AssignmentDiff, error) {
	if !repository.HasAssignments(kind) {
		return nil, ErrEntityNotAssignable
	}

	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	label, err := loadEntityLabel(ctx, s.db, kind, entityID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizeEdit(ctx, kind, entityID, user); err != nil {
		return nil, err
	}

	var diff AssignmentDiff
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if precheck != nil {
			if err := precheck(tx); err != nil {
				return err
			}
		}

		var err error
		diff, err = s.Reconcile(ctx, tx, kind, entityID, desired)
		if err != nil {
			return err
		}

		if kind == domain.EntityProposal {
			return repository.NewProposalLogRepository(tx).Append(ctx, &domain.ProposalLog{
				ProposalID: entityID,
				UserID:     user.UserID,
				Action:     domain.ProposalActionUsersUpdated,
			})
		}
		return repository.NewAuditLogRepository(tx).Append(ctx, &domain.AuditLog{
			EntityKind:  kind,
			EntityID:    entityID,
			UserID:      user.UserID,
			Action:      domain.AuditActionUsersUpdated,
			Detail:      fmt.Sprintf("added=%d removed=%d", len(diff.Added), len(diff.Removed)),
			PerformedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("assignments updated",
		zap.String("entity_kind", string(kind)),
		zap.String("entity_id", entityID.String()),
		zap.Int("added", len(diff.Added)),
		zap.Int("removed", len(diff.Removed)))

	s.Notify(ctx, kind, entityID, label, diff, user)
	return &diff, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
