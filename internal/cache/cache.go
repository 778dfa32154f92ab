// Package cache keeps short-lived gateway state in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks

const (
	webhookKeyPrefix = "webhook:"
	sentKeyPrefix    = "message:"
	pingTimeout      = 2 * time.Second
)

// Cache is the subset of Redis behaviour the services rely on.
type Cache interface {
	// Claim marks a webhook delivery as seen for ttl. It reports false when
	// the key was already claimed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim so a redelivery is processed again.
	Release(ctx context.Context, key string) error
	// RememberSent records the upstream id of a sent message.
	RememberSent(ctx context.Context, messageID string, id int64, ttl time.Duration) error
	// LookupSent returns the local id cached for an upstream message id.
	LookupSent(ctx context.Context, messageID string) (int64, bool, error)
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewRedisCache wraps client.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, webhookKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook key: %w", err)
	}
	return ok, nil
}

func (c *redisCache) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, webhookKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release webhook key: %w", err)
	}
	return nil
}

func (c *redisCache) RememberSent(ctx context.Context, messageID string, id int64, ttl time.Duration) error {
	if err := c.client.Set(ctx, sentKeyPrefix+messageID, id, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache sent message: %w", err)
	}
	return nil
}

func (c *redisCache) LookupSent(ctx context.Context, messageID string) (int64, bool, error) {
	id, err := c.client.Get(ctx, sentKeyPrefix+messageID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read sent message: %w", err)
	}
	return id, true, nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return c.client.Ping(ctx).Err()
}
