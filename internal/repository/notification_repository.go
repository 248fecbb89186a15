package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var notification domain.Notification
	err := r.db.WithContext(ctx).First(&notification, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int, unreadOnly bool) ([]domain.Notification, int64, error) {
	var notifications []domain.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", userID)

	if unreadOnly {
		query = query.Where("read_state = ?", domain.ReadStateUnread)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&notifications).Error

	return notifications, total, err
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read_state = ?", userID, domain.ReadStateUnread).
		Count(&count).Error
	return int(count), err
}

// AdvanceReadState moves a notification forward to next. Rows already at or
// past next are left alone; the returned bool reports whether a row changed.
func (r *NotificationRepository) AdvanceReadState(ctx context.Context, id uuid.UUID, next domain.ReadState, at time.Time) (bool, error) {
	var from []domain.ReadState
	for _, s := range []domain.ReadState{domain.ReadStateUnread, domain.ReadStateRead} {
		if s.Advances(next) {
			from = append(from, s)
		}
	}
	if len(from) == 0 {
		return false, nil
	}

	updates := map[string]interface{}{"read_state": next}
	switch next {
	case domain.ReadStateRead:
		updates["read_at"] = at
	case domain.ReadStateClicked:
		updates["clicked_at"] = at
		updates["read_at"] = gorm.Expr("COALESCE(read_at, ?)", at)
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND read_state IN ?", id, from).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// MarkAllAsRead moves every unread notification of a user to READ
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND read_state = ?", userID, domain.ReadStateUnread).
		Updates(map[string]interface{}{
			"read_state": domain.ReadStateRead,
			"read_at":    at,
		})
	return result.RowsAffected, result.Error
}
