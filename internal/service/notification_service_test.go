package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"github.com/straye-as/salesflow-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenPublisher struct{}

func (brokenPublisher) Publish(ctx context.Context, n *domain.Notification) error {
	return errors.New("broker down")
}

func sendTo(t *testing.T, svc *service.NotificationService, userID uuid.UUID, title string) *domain.Notification {
	t.Helper()
	n := &domain.Notification{
		UserID: userID,
		Type:   domain.NotificationTypeAssigned,
		Title:  title,
		Body:   title + " body",
	}
	require.NoError(t, svc.Send(context.Background(), n))
	return n
}

func TestNotificationService_Inbox(t *testing.T) {
	db, admin, ctx := setup(t)
	svc := createServices(t, db, nil)

	other := testutil.CreateTestUser(t, db, "Other")
	first := sendTo(t, svc.notifications, admin.ID, "first")
	sendTo(t, svc.notifications, admin.ID, "second")
	foreign := sendTo(t, svc.notifications, other.ID, "foreign")

	count, err := svc.notifications.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count.Count)

	t.Run("clicked never goes back to read", func(t *testing.T) {
		clicked, err := svc.notifications.MarkClicked(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReadStateClicked, clicked.ReadState)

		again, err := svc.notifications.MarkRead(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReadStateClicked, again.ReadState)
	})

	t.Run("other users' notifications are hidden", func(t *testing.T) {
		_, err := svc.notifications.MarkRead(ctx, foreign.ID)
		assert.ErrorIs(t, err, service.ErrNotificationNotFound)

		_, err = svc.notifications.MarkRead(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrNotificationNotFound)
	})

	t.Run("list unread only", func(t *testing.T) {
		resp, err := svc.notifications.List(ctx, 1, 20, true)
		require.NoError(t, err)
		items := resp.Data.([]domain.NotificationDTO)
		require.Len(t, items, 1)
		assert.Equal(t, "second", items[0].Title)
	})

	t.Run("mark all read", func(t *testing.T) {
		n, err := svc.notifications.MarkAllRead(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		count, err := svc.notifications.UnreadCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count.Count)

		var stored domain.Notification
		require.NoError(t, db.First(&stored, "id = ?", first.ID).Error)
		assert.Equal(t, domain.ReadStateClicked, stored.ReadState)
		require.NoError(t, db.First(&stored, "id = ?", foreign.ID).Error)
		assert.Equal(t, domain.ReadStateUnread, stored.ReadState)
	})
}

func TestNotificationService_Send_PublishFailureKeepsRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "Recipient")
	svc := service.NewNotificationService(repository.NewNotificationRepository(db), brokenPublisher{}, zap.NewNop())

	n := sendTo(t, svc, user.ID, "kept")
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, domain.ReadStateUnread, n.ReadState)
	assert.Equal(t, int64(1), countRows(t, db, &domain.Notification{}, "user_id = ?", user.ID))
}

func TestNotificationService_NilPublisher(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "Recipient")
	svc := service.NewNotificationService(repository.NewNotificationRepository(db), nil, zap.NewNop())

	sendTo(t, svc, user.ID, "quiet")
	assert.Equal(t, int64(1), countRows(t, db, &domain.Notification{}, ""))
}
