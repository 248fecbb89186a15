// Package notify fans notifications out to connected clients over NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"
	"github.com/straye-as/salesflow-api/internal/config"
	"github.com/straye-as/salesflow-api/internal/domain"
	"go.uber.org/zap"
)

// Publisher pushes a stored notification to live subscribers
type Publisher interface {
	Publish(ctx context.Context, n *domain.Notification) error
}

// Conn is the subset of *nats.Conn the publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
}

// Event is the wire payload published for each notification
type Event struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	Type       string `json:"type"`
	EntityKind string `json:"entityKind,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	CreatedAt  string `json:"createdAt"`
}

// Connect opens a NATS connection for the publisher
func Connect(cfg *config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("salesflow-api"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewCircuitBreaker trips after at least 5 calls with a 60% failure ratio
// and probes again after 10 seconds.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}

// NATSPublisher publishes notification events on "<prefix>.<userID>"
type NATSPublisher struct {
	conn    Conn
	prefix  string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewNATSPublisher(conn Conn, prefix string, breaker *gobreaker.CircuitBreaker, logger *zap.Logger) *NATSPublisher {
	if breaker == nil {
		breaker = NewCircuitBreaker("nats-notifications")
	}
	return &NATSPublisher{
		conn:    conn,
		prefix:  prefix,
		breaker: breaker,
		logger:  logger,
	}
}

// Subject returns the subject a user's notifications are published on
func (p *NATSPublisher) Subject(n *domain.Notification) string {
	return p.prefix + "." + n.UserID.String()
}

func (p *NATSPublisher) Publish(ctx context.Context, n *domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(toEvent(n))
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	subject := p.Subject(n)
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.conn.Publish(subject, data)
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("notification published",
		zap.String("subject", subject),
		zap.String("notification_id", n.ID.String()),
	)
	return nil
}

func toEvent(n *domain.Notification) Event {
	e := Event{
		ID:         n.ID.String(),
		UserID:     n.UserID.String(),
		Type:       string(n.Type),
		EntityKind: string(n.EntityKind),
		Title:      n.Title,
		Body:       n.Body,
		CreatedAt:  n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.EntityID != nil {
		e.EntityID = n.EntityID.String()
	}
	return e
}

// NoopPublisher drops every event. Used when NATS is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, n *domain.Notification) error {
	return nil
}
