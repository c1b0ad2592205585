package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nickrsmith/og-platform-sub004/internal/repository"
)

// releaseScript deletes a lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// extendScript refreshes the TTL only if the caller still owns the lock.
var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
	return 0
`)

// Lock implements repository.DistributedLock backed by Redis.
// Each Lock instance owns its acquisitions through a unique token, so one
// process cannot release a lock another process holds.
type Lock struct {
	client *redis.Client
	token  string
}

// NewLock creates a new Redis distributed lock.
func NewLock(client *redis.Client) *Lock {
	return &Lock{
		client: client,
		token:  uuid.NewString(),
	}
}

// Acquire attempts to acquire a lock.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := l.client.SetNX(ctx, key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	return acquired, nil
}

// Release releases a lock if this instance holds it.
func (l *Lock) Release(ctx context.Context, key string) (bool, error) {
	released, err := releaseScript.Run(ctx, l.client, []string{key}, l.token).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %q: %w", key, err)
	}
	return released == 1, nil
}

// Extend extends the TTL of a lock this instance holds.
func (l *Lock) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	extended, err := extendScript.Run(ctx, l.client, []string{key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to extend lock %q: %w", key, err)
	}
	return extended == 1, nil
}

// Ensure Lock implements repository.DistributedLock.
var _ repository.DistributedLock = (*Lock)(nil)
