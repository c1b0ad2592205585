// Package repository defines data access interfaces for the data room service.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Cache Interface (Redis or in-memory)
// =============================================================================

// Cache defines the interface for caching operations.
// Implemented by Redis for distributed deployments and by an in-process map
// for single-node ones.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)
}

// CacheError represents a cache error type.
type CacheError string

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"

	// ErrCacheUnavailable indicates the cache is unavailable.
	ErrCacheUnavailable CacheError = "cache unavailable"
)

func (e CacheError) Error() string {
	return string(e)
}

// =============================================================================
// Distributed Lock Interface (Redis)
// =============================================================================

// DistributedLock defines the interface for distributed locking.
// Used to coordinate the reconciler and the promotion worker across multiple
// server instances.
type DistributedLock interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another
	// process. The lock expires automatically after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// =============================================================================
// Common Keys
// =============================================================================

// LockKey generates lock keys for common scenarios.
type LockKey struct{}

// StatsReconcile returns the lock key for aggregate-counter reconciliation.
func (LockKey) StatsReconcile() string {
	return "lock:reconcile:stats"
}

// Promotion returns the lock key for the promotion worker.
func (LockKey) Promotion() string {
	return "lock:promotion"
}

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// DataRoom returns the cache key for a room.
func (CacheKey) DataRoom(id uuid.UUID) string {
	return "cache:dataroom:" + id.String()
}
