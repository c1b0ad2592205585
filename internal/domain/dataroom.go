// Package domain contains the core business entities for the data room service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier represents the service tier of a data room.
type Tier string

const (
	// TierSimple is the default tier for newly created rooms.
	TierSimple Tier = "SIMPLE"

	// TierStandard adds capacity beyond the simple tier.
	TierStandard Tier = "STANDARD"

	// TierPremium is the highest tier.
	TierPremium Tier = "PREMIUM"
)

// Valid reports whether the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierSimple, TierStandard, TierPremium:
		return true
	}
	return false
}

// Access represents the access level of a data room.
type Access string

const (
	// AccessPublic marks a room as publicly visible.
	AccessPublic Access = "PUBLIC"

	// AccessRestricted limits a room to its owner. This is the default.
	AccessRestricted Access = "RESTRICTED"
)

// Valid reports whether the access level is a known value.
func (a Access) Valid() bool {
	return a == AccessPublic || a == AccessRestricted
}

// Status represents the lifecycle status of a data room.
type Status string

const (
	// StatusIncomplete is the status of every newly created room.
	StatusIncomplete Status = "INCOMPLETE"

	// StatusComplete marks a room whose document set is finalized.
	StatusComplete Status = "COMPLETE"

	// StatusPendingReview marks a room awaiting review.
	StatusPendingReview Status = "PENDING_REVIEW"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusIncomplete, StatusComplete, StatusPendingReview:
		return true
	}
	return false
}

// DataRoom is an owner-scoped container of documents for deal-room file sharing.
//
// DocumentCount and TotalSizeBytes are derived aggregates maintained by relative
// increments alongside every document mutation. At every quiescent point they
// equal the live document count and the sum of live document sizes.
type DataRoom struct {
	// ID is the unique identifier of the room.
	ID uuid.UUID `json:"id"`

	// Name is the display name. Never empty.
	Name string `json:"name"`

	// OwnerUserID is the identity of the owning user. Every read and write of
	// the room and its documents is scoped to this value.
	OwnerUserID string `json:"owner_user_id"`

	// OwnerOrgID is the owning organization, if any.
	OwnerOrgID *string `json:"owner_org_id,omitempty"`

	// AssetID links the room to an external asset, if any.
	AssetID *string `json:"asset_id,omitempty"`

	// ListingID links the room to an external listing, if any.
	ListingID *string `json:"listing_id,omitempty"`

	// Tier is the service tier. Defaults to TierSimple.
	Tier Tier `json:"tier"`

	// Access is the access level. Defaults to AccessRestricted.
	Access Access `json:"access"`

	// Status is the lifecycle status. Rooms are created StatusIncomplete.
	Status Status `json:"status"`

	// DocumentCount is the number of live documents in the room. Derived,
	// non-negative.
	DocumentCount int64 `json:"document_count"`

	// TotalSizeBytes is the sum of live document sizes. Derived, non-negative.
	TotalSizeBytes int64 `json:"total_size_bytes"`

	// CreatedAt is when the room was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the room was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// Documents holds the room's documents when the room is loaded with its
	// contents (newest first). Not persisted on the room itself.
	Documents []*Document `json:"documents,omitempty"`
}

// NewDataRoom creates a room with the forced initial state: status incomplete,
// zero counters, defaulted tier and access.
func NewDataRoom(ownerUserID, name string) *DataRoom {
	now := time.Now().UTC()
	return &DataRoom{
		ID:          uuid.New(),
		Name:        name,
		OwnerUserID: ownerUserID,
		Tier:        TierSimple,
		Access:      AccessRestricted,
		Status:      StatusIncomplete,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
