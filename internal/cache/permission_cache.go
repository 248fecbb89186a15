// Package cache keeps role permission sets in Redis so authentication does
// not hit the database on every request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"go.uber.org/zap"
)

// Loader is the source of truth the cache reads through to
type Loader interface {
	PermissionsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Permission, error)
}

// PermissionCache is a read-through Redis cache in front of a Loader.
// Redis failures fall back to the loader.
type PermissionCache struct {
	client  *redis.Client
	loader  Loader
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRedisClient parses a redis:// URL and verifies the server answers
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewPermissionCache(client *redis.Client, loader Loader, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *PermissionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PermissionCache{
		client:  client,
		loader:  loader,
		ttl:     ttl,
		prefix:  "perms:",
		metrics: m,
		logger:  logger,
	}
}

func (c *PermissionCache) key(userID uuid.UUID) string {
	return c.prefix + userID.String()
}

// PermissionsForUser returns the cached set, loading and storing it on a miss
func (c *PermissionCache) PermissionsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Permission, error) {
	key := c.key(userID)

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var perms []domain.Permission
		if jsonErr := json.Unmarshal([]byte(raw), &perms); jsonErr == nil {
			c.metrics.RecordPermissionCache("hit")
			return perms, nil
		}
		c.logger.Warn("discarding unreadable permission cache entry", zap.String("key", key))
	case err == redis.Nil:
		c.metrics.RecordPermissionCache("miss")
	default:
		c.metrics.RecordPermissionCache("error")
		c.logger.Warn("permission cache read failed", zap.String("key", key), zap.Error(err))
	}

	perms, err := c.loader.PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(perms)
	if err != nil {
		return perms, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("permission cache write failed", zap.String("key", key), zap.Error(err))
	}
	return perms, nil
}

// Invalidate drops the cached set for a user
func (c *PermissionCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate permissions: %w", err)
	}
	return nil
}
