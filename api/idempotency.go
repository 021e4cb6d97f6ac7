package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "task-create"

// RedisDeduper remembers processed idempotency keys in Redis so retried task
// creations are answered without appending a second task.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(accountID, key string) string {
	return fmt.Sprintf("%s:%s:%s", accountID, dedupeKeyPrefix, key)
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, accountID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(accountID, key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key. It is used when the insert fails
// so the caller may retry the same request.
func (r *RedisDeduper) Remove(ctx context.Context, accountID, key string) error {
	return r.client.Del(ctx, r.key(accountID, key)).Err()
}
