// Package cache provides lookaside caches for read-mostly data.
//
// Service tokens are immutable once issued, so every comment request can
// resolve its signing key from the cache instead of the services table.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache stores service tokens keyed by service id.
type TokenCache interface {
	// Get returns the cached token. ok is false on a miss.
	Get(ctx context.Context, serviceID string) (token string, ok bool, err error)
	// Set stores token for serviceID.
	Set(ctx context.Context, serviceID, token string) error
}

// Nop is a TokenCache that never hits. It is used when no Redis is configured.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Set discards the token.
func (Nop) Set(context.Context, string, string) error { return nil }

// RedisTokenCache implements TokenCache on top of Redis.
type RedisTokenCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisTokenCache parses redisURL, connects and verifies the connection.
// A ttl <= 0 keeps entries until evicted.
func NewRedisTokenCache(redisURL string, ttl time.Duration) (*RedisTokenCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisTokenCacheWithClient(client, ttl), nil
}

// NewRedisTokenCacheWithClient creates a cache from an existing Redis client.
func NewRedisTokenCacheWithClient(client *redis.Client, ttl time.Duration) *RedisTokenCache {
	return &RedisTokenCache{
		client: client,
		prefix: "svc-token:",
		ttl:    ttl,
	}
}

func (c *RedisTokenCache) key(serviceID string) string {
	return c.prefix + serviceID
}

// Get returns the cached token for serviceID.
func (c *RedisTokenCache) Get(ctx context.Context, serviceID string) (string, bool, error) {
	tok, err := c.client.Get(ctx, c.key(serviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get service token: %w", err)
	}
	return tok, true, nil
}

// Set stores token for serviceID.
func (c *RedisTokenCache) Set(ctx context.Context, serviceID, token string) error {
	if err := c.client.Set(ctx, c.key(serviceID), token, c.ttl).Err(); err != nil {
		return fmt.Errorf("set service token: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *RedisTokenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}
