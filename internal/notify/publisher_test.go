package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	subject string
	data    []byte
}

type recordingConn struct {
	msgs []published
	err  error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject: subject, data: data})
	return nil
}

func newNotification() *domain.Notification {
	entityID := uuid.New()
	n := &domain.Notification{
		UserID:     uuid.New(),
		EntityKind: domain.EntityDeal,
		EntityID:   &entityID,
		Type:       domain.NotificationTypeAssigned,
		Title:      "Assigned to deal",
		Body:       "You were assigned to Acme Website",
		ReadState:  domain.ReadStateUnread,
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return n
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &recordingConn{}
	p := notify.NewNATSPublisher(conn, "salesflow.notifications", nil, zap.NewNop())
	n := newNotification()

	require.NoError(t, p.Publish(context.Background(), n))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "salesflow.notifications."+n.UserID.String(), conn.msgs[0].subject)

	var event notify.Event
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &event))
	assert.Equal(t, n.ID.String(), event.ID)
	assert.Equal(t, "ASSIGNED", event.Type)
	assert.Equal(t, "DEAL", event.EntityKind)
	assert.Equal(t, n.EntityID.String(), event.EntityID)
	assert.Equal(t, "2026-03-01T12:00:00Z", event.CreatedAt)
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	conn := &recordingConn{}
	p := notify.NewNATSPublisher(conn, "salesflow.notifications", nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, newNotification())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.msgs)
}

func TestNATSPublisher_BreakerOpensAfterFailures(t *testing.T) {
	conn := &recordingConn{err: errors.New("nats: connection closed")}
	p := notify.NewNATSPublisher(conn, "salesflow.notifications", notify.NewCircuitBreaker("test"), zap.NewNop())

	for i := 0; i < 5; i++ {
		err := p.Publish(context.Background(), newNotification())
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	err := p.Publish(context.Background(), newNotification())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, notify.NoopPublisher{}.Publish(context.Background(), newNotification()))
}
