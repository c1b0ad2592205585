package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
)

// DataRoomService handles data room lifecycle operations.
// Every read and mutation is owner-scoped: rooms the caller does not own are
// indistinguishable from rooms that do not exist.
type DataRoomService struct {
	roomRepo repository.DataRoomRepository
	docRepo  repository.DocumentRepository
	logger   zerolog.Logger
}

// NewDataRoomService creates a new DataRoomService.
func NewDataRoomService(
	roomRepo repository.DataRoomRepository,
	docRepo repository.DocumentRepository,
	logger zerolog.Logger,
) *DataRoomService {
	return &DataRoomService{
		roomRepo: roomRepo,
		docRepo:  docRepo,
		logger:   logger.With().Str("service", "dataroom").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// CreateDataRoomInput contains the data needed to create a data room.
type CreateDataRoomInput struct {
	OwnerUserID string
	OwnerOrgID  *string
	Name        string
	AssetID     *string
	ListingID   *string
	Tier        string // optional, defaults to SIMPLE
	Access      string // optional, defaults to RESTRICTED
}

// CreateDataRoomOutput contains the result of creating a data room.
type CreateDataRoomOutput struct {
	DataRoom *domain.DataRoom
}

// GetDataRoomInput contains the data needed to get a data room.
type GetDataRoomInput struct {
	ID          uuid.UUID
	OwnerUserID string
}

// GetDataRoomOutput contains the result of getting a data room.
type GetDataRoomOutput struct {
	DataRoom *domain.DataRoom
}

// GetDataRoomByRefInput looks a room up by an external listing or asset id.
type GetDataRoomByRefInput struct {
	RefID       string
	OwnerUserID string
}

// GetDataRoomByRefOutput contains the result of a reference lookup.
// DataRoom is nil, not an error, when no room is linked to the reference.
type GetDataRoomByRefOutput struct {
	DataRoom *domain.DataRoom
}

// ListDataRoomsInput contains the data needed to list data rooms.
type ListDataRoomsInput struct {
	OwnerUserID string
	ListingID   *string
	AssetID     *string
	Status      *string
}

// ListDataRoomsOutput contains the result of listing data rooms.
type ListDataRoomsOutput struct {
	DataRooms []*domain.DataRoom
}

// UpdateDataRoomInput contains a partial update for a data room.
// Pointer fields are applied only when non-nil; AssetID and ListingID use
// OptionalString so an explicit null (unlink) is distinguishable from an
// omitted field.
type UpdateDataRoomInput struct {
	ID          uuid.UUID
	OwnerUserID string
	Name        *string
	Tier        *string
	Access      *string
	Status      *string
	AssetID     OptionalString
	ListingID   OptionalString
}

// UpdateDataRoomOutput contains the result of updating a data room.
type UpdateDataRoomOutput struct {
	DataRoom *domain.DataRoom
}

// DeleteDataRoomInput contains the data needed to delete a data room.
type DeleteDataRoomInput struct {
	ID          uuid.UUID
	OwnerUserID string
}

// =============================================================================
// Service Methods
// =============================================================================

// CreateDataRoom creates a new data room for the caller.
// Status is forced to INCOMPLETE and counters to zero regardless of input.
func (s *DataRoomService) CreateDataRoom(ctx context.Context, input CreateDataRoomInput) (*CreateDataRoomOutput, error) {
	if input.Name == "" {
		return nil, NewValidationError("name", "name must not be empty")
	}

	room := domain.NewDataRoom(input.OwnerUserID, input.Name)
	room.OwnerOrgID = input.OwnerOrgID
	room.AssetID = input.AssetID
	room.ListingID = input.ListingID

	if input.Tier != "" {
		tier := domain.Tier(input.Tier)
		if !tier.Valid() {
			return nil, NewValidationError("tier", "unknown tier")
		}
		room.Tier = tier
	}
	if input.Access != "" {
		access := domain.Access(input.Access)
		if !access.Valid() {
			return nil, NewValidationError("access", "unknown access level")
		}
		room.Access = access
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		s.logger.Error().Err(err).Str("owner_user_id", input.OwnerUserID).Msg("failed to create data room")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("data_room_id", room.ID.String()).
		Str("owner_user_id", input.OwnerUserID).
		Str("tier", string(room.Tier)).
		Msg("data room created")

	return &CreateDataRoomOutput{DataRoom: room}, nil
}

// GetDataRoom retrieves a room with its documents, newest first.
func (s *DataRoomService) GetDataRoom(ctx context.Context, input GetDataRoomInput) (*GetDataRoomOutput, error) {
	room, err := s.authorize(ctx, input.ID, input.OwnerUserID)
	if err != nil {
		return nil, err
	}

	if err := s.attachDocuments(ctx, room); err != nil {
		return nil, err
	}

	return &GetDataRoomOutput{DataRoom: room}, nil
}

// GetDataRoomByListing retrieves the caller's room linked to a listing.
// Returns a nil room when no room is linked.
func (s *DataRoomService) GetDataRoomByListing(ctx context.Context, input GetDataRoomByRefInput) (*GetDataRoomByRefOutput, error) {
	room, err := s.roomRepo.GetByListingIDForOwner(ctx, input.RefID, input.OwnerUserID)
	if err != nil {
		if errors.Is(err, domain.ErrDataRoomNotFound) {
			return &GetDataRoomByRefOutput{DataRoom: nil}, nil
		}
		s.logger.Error().Err(err).Str("listing_id", input.RefID).Msg("failed to get data room by listing")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.attachDocuments(ctx, room); err != nil {
		return nil, err
	}

	return &GetDataRoomByRefOutput{DataRoom: room}, nil
}

// GetDataRoomByAsset retrieves the caller's room linked to an asset.
// Returns a nil room when no room is linked.
func (s *DataRoomService) GetDataRoomByAsset(ctx context.Context, input GetDataRoomByRefInput) (*GetDataRoomByRefOutput, error) {
	room, err := s.roomRepo.GetByAssetIDForOwner(ctx, input.RefID, input.OwnerUserID)
	if err != nil {
		if errors.Is(err, domain.ErrDataRoomNotFound) {
			return &GetDataRoomByRefOutput{DataRoom: nil}, nil
		}
		s.logger.Error().Err(err).Str("asset_id", input.RefID).Msg("failed to get data room by asset")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.attachDocuments(ctx, room); err != nil {
		return nil, err
	}

	return &GetDataRoomByRefOutput{DataRoom: room}, nil
}

// ListDataRooms returns the caller's rooms, newest first, with documents.
func (s *DataRoomService) ListDataRooms(ctx context.Context, input ListDataRoomsInput) (*ListDataRoomsOutput, error) {
	filter := repository.DataRoomFilter{
		ListingID: input.ListingID,
		AssetID:   input.AssetID,
	}
	if input.Status != nil {
		status := domain.Status(*input.Status)
		if !status.Valid() {
			return nil, NewValidationError("status", "unknown status")
		}
		filter.Status = &status
	}

	rooms, err := s.roomRepo.ListByOwner(ctx, input.OwnerUserID, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_user_id", input.OwnerUserID).Msg("failed to list data rooms")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	for _, room := range rooms {
		if err := s.attachDocuments(ctx, room); err != nil {
			return nil, err
		}
	}

	return &ListDataRoomsOutput{DataRooms: rooms}, nil
}

// UpdateDataRoom applies a partial update to a room the caller owns.
func (s *DataRoomService) UpdateDataRoom(ctx context.Context, input UpdateDataRoomInput) (*UpdateDataRoomOutput, error) {
	room, err := s.authorize(ctx, input.ID, input.OwnerUserID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, NewValidationError("name", "name must not be empty")
		}
		room.Name = *input.Name
	}
	if input.Tier != nil {
		tier := domain.Tier(*input.Tier)
		if !tier.Valid() {
			return nil, NewValidationError("tier", "unknown tier")
		}
		room.Tier = tier
	}
	if input.Access != nil {
		access := domain.Access(*input.Access)
		if !access.Valid() {
			return nil, NewValidationError("access", "unknown access level")
		}
		room.Access = access
	}
	if input.Status != nil {
		status := domain.Status(*input.Status)
		if !status.Valid() {
			return nil, NewValidationError("status", "unknown status")
		}
		room.Status = status
	}
	if input.AssetID.Set {
		room.AssetID = input.AssetID.Value
	}
	if input.ListingID.Set {
		room.ListingID = input.ListingID.Value
	}
	room.UpdatedAt = time.Now().UTC()

	if err := s.roomRepo.Update(ctx, room); err != nil {
		if errors.Is(err, domain.ErrDataRoomNotFound) {
			return nil, domain.ErrDataRoomNotFound
		}
		s.logger.Error().Err(err).Str("data_room_id", input.ID.String()).Msg("failed to update data room")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("data_room_id", room.ID.String()).
		Msg("data room updated")

	return &UpdateDataRoomOutput{DataRoom: room}, nil
}

// DeleteDataRoom removes a room the caller owns. Documents cascade with the
// room, counters and all, so no incremental stats adjustment happens here.
func (s *DataRoomService) DeleteDataRoom(ctx context.Context, input DeleteDataRoomInput) error {
	if _, err := s.authorize(ctx, input.ID, input.OwnerUserID); err != nil {
		return err
	}

	if err := s.roomRepo.Delete(ctx, input.ID); err != nil {
		if errors.Is(err, domain.ErrDataRoomNotFound) {
			return domain.ErrDataRoomNotFound
		}
		s.logger.Error().Err(err).Str("data_room_id", input.ID.String()).Msg("failed to delete data room")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("data_room_id", input.ID.String()).
		Str("owner_user_id", input.OwnerUserID).
		Msg("data room deleted")

	return nil
}

// authorize loads the room scoped to the caller in a single query.
// Absent and non-owned rooms both come back as ErrDataRoomNotFound.
func (s *DataRoomService) authorize(ctx context.Context, id uuid.UUID, ownerUserID string) (*domain.DataRoom, error) {
	room, err := s.roomRepo.GetByIDForOwner(ctx, id, ownerUserID)
	if err != nil {
		if errors.Is(err, domain.ErrDataRoomNotFound) {
			return nil, domain.ErrDataRoomNotFound
		}
		s.logger.Error().Err(err).Str("data_room_id", id.String()).Msg("failed to load data room")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return room, nil
}

// attachDocuments loads the room's documents, newest first.
func (s *DataRoomService) attachDocuments(ctx context.Context, room *domain.DataRoom) error {
	docs, err := s.docRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("data_room_id", room.ID.String()).Msg("failed to list documents")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	room.Documents = docs
	return nil
}
