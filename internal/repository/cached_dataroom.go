package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
)

// CachedDataRoomRepository decorates a DataRoomRepository with a read-through
// cache on the id lookup. The cache is keyed by room id; the ownership check
// is re-applied on every cached read so a hit is never less strict than the
// store. Every mutation, including counter adjustments, invalidates the
// cached copy so readers never observe stale aggregates past the TTL window.
type CachedDataRoomRepository struct {
	inner  DataRoomRepository
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedDataRoomRepository wraps repo with caching.
func NewCachedDataRoomRepository(repo DataRoomRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedDataRoomRepository {
	return &CachedDataRoomRepository{
		inner:  repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "dataroom_cache").Logger(),
	}
}

// Create persists a new room.
func (r *CachedDataRoomRepository) Create(ctx context.Context, room *domain.DataRoom) error {
	return r.inner.Create(ctx, room)
}

// GetByIDForOwner retrieves a room, serving from cache when possible.
func (r *CachedDataRoomRepository) GetByIDForOwner(ctx context.Context, id uuid.UUID, ownerUserID string) (*domain.DataRoom, error) {
	key := CacheKey{}.DataRoom(id)

	if data, err := r.cache.Get(ctx, key); err == nil {
		var room domain.DataRoom
		if err := json.Unmarshal(data, &room); err == nil {
			if room.OwnerUserID != ownerUserID {
				return nil, domain.ErrDataRoomNotFound
			}
			return &room, nil
		}
		// Corrupt entry, drop it and fall through to the store.
		_ = r.cache.Delete(ctx, key)
	} else if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn().Err(err).Msg("cache read failed, falling back to store")
	}

	room, err := r.inner.GetByIDForOwner(ctx, id, ownerUserID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(room); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn().Err(err).Msg("cache write failed")
		}
	}

	return room, nil
}

// GetByListingIDForOwner retrieves the owner's room linked to a listing.
// Secondary lookups go straight to the store.
func (r *CachedDataRoomRepository) GetByListingIDForOwner(ctx context.Context, listingID, ownerUserID string) (*domain.DataRoom, error) {
	return r.inner.GetByListingIDForOwner(ctx, listingID, ownerUserID)
}

// GetByAssetIDForOwner retrieves the owner's room linked to an asset.
func (r *CachedDataRoomRepository) GetByAssetIDForOwner(ctx context.Context, assetID, ownerUserID string) (*domain.DataRoom, error) {
	return r.inner.GetByAssetIDForOwner(ctx, assetID, ownerUserID)
}

// ListByOwner returns the owner's rooms.
func (r *CachedDataRoomRepository) ListByOwner(ctx context.Context, ownerUserID string, filter DataRoomFilter) ([]*domain.DataRoom, error) {
	return r.inner.ListByOwner(ctx, ownerUserID, filter)
}

// Update persists an existing room and invalidates its cached copy.
func (r *CachedDataRoomRepository) Update(ctx context.Context, room *domain.DataRoom) error {
	if err := r.inner.Update(ctx, room); err != nil {
		return err
	}
	r.invalidate(ctx, room.ID)
	return nil
}

// Delete removes a room and invalidates its cached copy.
func (r *CachedDataRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// AdjustStats applies a relative counter adjustment and invalidates the
// cached copy so stale counters don't outlive the write.
func (r *CachedDataRoomRepository) AdjustStats(ctx context.Context, id uuid.UUID, docDelta, sizeDelta int64) error {
	if err := r.inner.AdjustStats(ctx, id, docDelta, sizeDelta); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// ReconcileStats recomputes counters for drifted rooms.
func (r *CachedDataRoomRepository) ReconcileStats(ctx context.Context) (int64, error) {
	return r.inner.ReconcileStats(ctx)
}

// invalidate drops the cached copy of a room.
func (r *CachedDataRoomRepository) invalidate(ctx context.Context, id uuid.UUID) {
	key := CacheKey{}.DataRoom(id)
	if err := r.cache.Delete(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}

// Ensure CachedDataRoomRepository implements DataRoomRepository.
var _ DataRoomRepository = (*CachedDataRoomRepository)(nil)
