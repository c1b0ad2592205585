// Package repository defines data access interfaces for the data room service.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite for embedded deployments, PostgreSQL for shared
// ones) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
)

// =============================================================================
// Data Room Repository
// =============================================================================

// DataRoomFilter narrows room listings. All set fields are conjoined with the
// mandatory ownership filter.
type DataRoomFilter struct {
	// ListingID filters by external listing link.
	ListingID *string

	// AssetID filters by external asset link.
	AssetID *string

	// Status filters by lifecycle status.
	Status *domain.Status
}

// DataRoomRepository defines the interface for data room access.
//
// Owner-scoped lookups filter by id AND owner in a single query - never
// load-then-compare - so absent and non-owned rooms are indistinguishable.
type DataRoomRepository interface {
	// Create persists a new room.
	Create(ctx context.Context, room *domain.DataRoom) error

	// GetByIDForOwner retrieves a room by id, scoped to its owner.
	// Returns domain.ErrDataRoomNotFound for absent and non-owned rooms alike.
	GetByIDForOwner(ctx context.Context, id uuid.UUID, ownerUserID string) (*domain.DataRoom, error)

	// GetByListingIDForOwner retrieves the owner's room linked to the given
	// external listing. Returns domain.ErrDataRoomNotFound when absent.
	GetByListingIDForOwner(ctx context.Context, listingID, ownerUserID string) (*domain.DataRoom, error)

	// GetByAssetIDForOwner retrieves the owner's room linked to the given
	// external asset. Returns domain.ErrDataRoomNotFound when absent.
	GetByAssetIDForOwner(ctx context.Context, assetID, ownerUserID string) (*domain.DataRoom, error)

	// ListByOwner returns the owner's rooms, newest first.
	ListByOwner(ctx context.Context, ownerUserID string, filter DataRoomFilter) ([]*domain.DataRoom, error)

	// Update persists all mutable fields of an existing room.
	Update(ctx context.Context, room *domain.DataRoom) error

	// Delete removes a room. Documents are removed by the store's referential
	// cascade; the counters disappear atomically with the row.
	Delete(ctx context.Context, id uuid.UUID) error

	// AdjustStats applies a relative adjustment to the room's aggregate
	// counters as a single store-native increment, never read-modify-write.
	AdjustStats(ctx context.Context, id uuid.UUID, docDelta, sizeDelta int64) error

	// ReconcileStats recomputes every room's counters authoritatively from
	// document rows and fixes divergent ones. Idempotent. Returns the number
	// of rooms repaired.
	ReconcileStats(ctx context.Context) (int64, error)
}

// =============================================================================
// Document Repository
// =============================================================================

// DocumentRepository defines the interface for document tree access.
// All single-document operations are scoped to a room id so that cross-room
// id guesses fail as not found.
type DocumentRepository interface {
	// Create persists a new document.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document scoped to its room.
	GetByID(ctx context.Context, roomID, docID uuid.UUID) (*domain.Document, error)

	// ExistsInRoom reports whether a document exists within the given room.
	// Used to validate parent folder references.
	ExistsInRoom(ctx context.Context, roomID, docID uuid.UUID) (bool, error)

	// ListByRoom returns the room's documents, newest first.
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Document, error)

	// DeleteSubtree removes a document and all of its descendants in one
	// atomic operation, scoped to the room. Returns the number of documents
	// removed and the total bytes freed so the caller can decrement the
	// room's aggregates by exactly those amounts.
	// Returns domain.ErrDocumentNotFound if the root document is absent;
	// concurrent deletes of the same document see exactly one success.
	DeleteSubtree(ctx context.Context, roomID, docID uuid.UUID) (removed, freedBytes int64, err error)

	// ListPendingPromotion returns documents still in the Received state
	// (scratch bytes present, no content address), oldest first.
	ListPendingPromotion(ctx context.Context, limit int) ([]*domain.Document, error)

	// MarkPromoted records the permanent content address and URL and clears
	// the scratch path. The transition is one way: a document that already
	// has a content address is left untouched and reported via
	// domain.ErrAlreadyPromoted.
	MarkPromoted(ctx context.Context, docID uuid.UUID, contentAddress, contentURL string) error

	// ListTempPaths returns every scratch path currently referenced by a
	// document row. Used by the scratch-orphan sweep.
	ListTempPaths(ctx context.Context) ([]string, error)
}
