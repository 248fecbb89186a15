package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/mapper"
	"github.com/straye-as/salesflow-api/internal/notify"
	"github.com/straye-as/salesflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationSender delivers one notification. Callers treat it as
// best-effort: an error is logged and counted, never propagated.
type NotificationSender interface {
	Send(ctx context.Context, notification *domain.Notification) error
}

// NotificationService stores notifications, pushes them to the live channel
// and serves the per-user inbox.
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	publisher        notify.Publisher
	logger           *zap.Logger
}

func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	publisher notify.Publisher,
	logger *zap.Logger,
) *NotificationService {
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &NotificationService{
		notificationRepo: notificationRepo,
		publisher:        publisher,
		logger:           logger,
	}
}

// Send persists the notification and publishes it. A publish failure does not
// fail the send once the row is stored.
func (s *NotificationService) Send(ctx context.Context, notification *domain.Notification) error {
	if notification.ReadState == "" {
		notification.ReadState = domain.ReadStateUnread
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if err := s.publisher.Publish(ctx, notification); err != nil {
		s.logger.Warn("failed to publish notification",
			zap.String("notificationID", notification.ID.String()),
			zap.String("userID", notification.UserID.String()),
			zap.Error(err))
	}
	return nil
}

// List returns the current user's notifications, newest first
func (s *NotificationService) List(ctx context.Context, page, pageSize int, unreadOnly bool) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	opts := repository.ListOptions{Page: page, PageSize: pageSize}.Normalize()
	notifications, total, err := s.notificationRepo.ListByUser(ctx, user.UserID, opts.Page, opts.PageSize, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	dtos := make([]domain.NotificationDTO, len(notifications))
	for i := range notifications {
		dtos[i] = mapper.ToNotificationDTO(&notifications[i])
	}
	return mapper.NewPaginatedResponse(dtos, total, opts.Page, opts.PageSize), nil
}

// UnreadCount returns how many of the current user's notifications are unread
func (s *NotificationService) UnreadCount(ctx context.Context) (*domain.UnreadCountDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	count, err := s.notificationRepo.CountUnread(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return &domain.UnreadCountDTO{Count: int64(count)}, nil
}

// MarkRead moves a notification to READ unless it is already READ or CLICKED
func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) (*domain.NotificationDTO, error) {
	return s.advance(ctx, id, domain.ReadStateRead)
}

// MarkClicked moves a notification to CLICKED
func (s *NotificationService) MarkClicked(ctx context.Context, id uuid.UUID) (*domain.NotificationDTO, error) {
	return s.advance(ctx, id, domain.ReadStateClicked)
}

// MarkAllRead marks every unread notification of the current user as read
func (s *NotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.notificationRepo.MarkAllAsRead(ctx, user.UserID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return n, nil
}

// advance applies a forward-only read state change. Requests that would move
// the state backwards leave the row untouched and return it as is.
func (s *NotificationService) advance(ctx context.Context, id uuid.UUID, next domain.ReadState) (*domain.NotificationDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	notification, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	// Other users' notifications are reported as missing
	if notification.UserID != user.UserID {
		return nil, ErrNotificationNotFound
	}

	if notification.ReadState.Advances(next) {
		changed, err := s.notificationRepo.AdvanceReadState(ctx, id, next, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to update notification: %w", err)
		}
		if changed {
			notification, err = s.notificationRepo.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to reload notification: %w", err)
			}
		}
	}

	dto := mapper.ToNotificationDTO(notification)
	return &dto, nil
}
