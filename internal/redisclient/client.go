package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb       *redis.Client
	dedupeTTL time.Duration
}

// NewClient creates a new Redis client. The dedupe TTL bounds how long a
// webhook event id is remembered; the durable ledger owns correctness, this
// cache only short-circuits obvious redeliveries.
func NewClient(addr, password string, db int, dedupeTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, dedupeTTL: dedupeTTL}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// EventSeen reports whether a webhook event id was already fully processed.
func (c *Client) EventSeen(ctx context.Context, eventID string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("webhook:event:%s", eventID)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// MarkEventSeen records a webhook event id after successful dispatch.
// Marking only after dispatch keeps a failed delivery retryable.
func (c *Client) MarkEventSeen(ctx context.Context, eventID string) error {
	return c.rdb.Set(ctx, fmt.Sprintf("webhook:event:%s", eventID), "1", c.dedupeTTL).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
