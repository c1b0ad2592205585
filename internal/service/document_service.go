package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/metrics"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
	"github.com/nickrsmith/og-platform-sub004/internal/scratch"
)

// DocumentService handles document tree operations within a data room.
// All operations authorize against the room's owner first; cross-room or
// cross-tenant id guesses fail NotFound.
type DocumentService struct {
	roomRepo repository.DataRoomRepository
	docRepo  repository.DocumentRepository
	scratch  *scratch.Store
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	roomRepo repository.DataRoomRepository,
	docRepo repository.DocumentRepository,
	scratchStore *scratch.Store,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *DocumentService {
	return &DocumentService{
		roomRepo: roomRepo,
		docRepo:  docRepo,
		scratch:  scratchStore,
		metrics:  m,
		logger:   logger.With().Str("service", "document").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// UploadDocumentInput contains the data needed to upload a document.
type UploadDocumentInput struct {
	RoomID           uuid.UUID
	OwnerUserID      string
	ParentFolderID   *uuid.UUID
	DisplayName      string // optional, defaults to OriginalFilename
	OriginalFilename string
	MimeType         *string
	Description      *string
	Metadata         map[string]string
	Content          io.Reader
}

// UploadDocumentOutput contains the result of uploading a document.
type UploadDocumentOutput struct {
	Document *domain.Document
}

// GetDocumentInput contains the data needed to get a document.
type GetDocumentInput struct {
	RoomID      uuid.UUID
	DocumentID  uuid.UUID
	OwnerUserID string
}

// GetDocumentOutput contains the result of getting a document.
type GetDocumentOutput struct {
	Document *domain.Document
}

// DeleteDocumentInput contains the data needed to delete a document.
type DeleteDocumentInput struct {
	RoomID      uuid.UUID
	DocumentID  uuid.UUID
	OwnerUserID string
}

// DeleteDocumentOutput reports what a delete removed.
type DeleteDocumentOutput struct {
	RemovedCount int64
	FreedBytes   int64
}

// =============================================================================
// Service Methods
// =============================================================================

// UploadDocument receives a file into scratch storage and records the
// document node, incrementing the room's counters in the same logical
// operation. The returned document is in the Received state; the promotion
// worker moves its bytes to the content store later.
func (s *DocumentService) UploadDocument(ctx context.Context, input UploadDocumentInput) (*UploadDocumentOutput, error) {
	if _, err := s.authorize(ctx, input.RoomID, input.OwnerUserID); err != nil {
		return nil, err
	}

	if input.Content == nil {
		return nil, NewValidationError("file", "upload file is required")
	}

	// The sole structural check: a parent must already exist in this room.
	if input.ParentFolderID != nil {
		exists, err := s.docRepo.ExistsInRoom(ctx, input.RoomID, *input.ParentFolderID)
		if err != nil {
			s.logger.Error().Err(err).Str("data_room_id", input.RoomID.String()).Msg("failed to check parent folder")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if !exists {
			return nil, NewValidationError("folderId", "folder not found")
		}
	}

	tempPath, size, err := s.scratch.Receive(input.Content, input.OriginalFilename)
	if err != nil {
		if errors.Is(err, domain.ErrFileTooLarge) {
			s.recordUpload("rejected", 0)
			return nil, domain.ErrFileTooLarge
		}
		s.logger.Error().Err(err).Msg("failed to receive upload")
		s.recordUpload("failed", 0)
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.OriginalFilename
	}

	doc := domain.NewDocument(input.RoomID, input.ParentFolderID, displayName, input.OriginalFilename, tempPath, size)
	doc.MimeType = input.MimeType
	doc.Description = input.Description
	doc.Metadata = input.Metadata

	if err := s.docRepo.Create(ctx, doc); err != nil {
		// The row never existed, so the scratch file must not linger.
		if rmErr := s.scratch.Remove(tempPath); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("temp_path", tempPath).Msg("failed to clean up scratch file")
		}
		if errors.Is(err, domain.ErrFolderNotFound) {
			return nil, NewValidationError("folderId", "folder not found")
		}
		s.logger.Error().Err(err).Str("data_room_id", input.RoomID.String()).Msg("failed to create document")
		s.recordUpload("failed", 0)
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	// Counter adjustment is a store-native relative increment. A failure
	// here leaves drift for the reconciler rather than failing the upload
	// whose node already exists.
	if err := s.roomRepo.AdjustStats(ctx, input.RoomID, 1, size); err != nil {
		s.logger.Error().Err(err).
			Str("data_room_id", input.RoomID.String()).
			Int64("size", size).
			Msg("failed to adjust room stats after upload")
	}

	s.recordUpload("accepted", size)

	s.logger.Info().
		Str("data_room_id", input.RoomID.String()).
		Str("document_id", doc.ID.String()).
		Int64("size", size).
		Msg("document uploaded")

	return &UploadDocumentOutput{Document: doc}, nil
}

// GetDocument retrieves a document scoped to the caller's room.
func (s *DocumentService) GetDocument(ctx context.Context, input GetDocumentInput) (*GetDocumentOutput, error) {
	if _, err := s.authorize(ctx, input.RoomID, input.OwnerUserID); err != nil {
		return nil, err
	}

	doc, err := s.docRepo.GetByID(ctx, input.RoomID, input.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, domain.ErrDocumentNotFound
		}
		s.logger.Error().Err(err).Str("document_id", input.DocumentID.String()).Msg("failed to get document")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &GetDocumentOutput{Document: doc}, nil
}

// DeleteDocument removes a document and its descendants, decrementing the
// room's counters by exactly the removed count and freed bytes. Two
// concurrent deletes of the same document race: one succeeds, the other
// observes NotFound, and the counters decrement once.
func (s *DocumentService) DeleteDocument(ctx context.Context, input DeleteDocumentInput) (*DeleteDocumentOutput, error) {
	if _, err := s.authorize(ctx, input.RoomID, input.OwnerUserID); err != nil {
		return nil, err
	}

	removed, freed, err := s.docRepo.DeleteSubtree(ctx, input.RoomID, input.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, domain.ErrDocumentNotFound
		}
		s.logger.Error().Err(err).Str("document_id", input.DocumentID.String()).Msg("failed to delete document")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.roomRepo.AdjustStats(ctx, input.RoomID, -removed, -freed); err != nil {
		s.logger.Error().Err(err).
			Str("data_room_id", input.RoomID.String()).
			Int64("removed", removed).
			Int64("freed", freed).
			Msg("failed to adjust room stats after delete")
	}

	s.logger.Info().
		Str("data_room_id", input.RoomID.String()).
		Str("document_id", input.DocumentID.String()).
		Int64("removed", removed).
		Int64("freed", freed).
		Msg("document deleted")

	return &DeleteDocumentOutput{RemovedCount: removed, FreedBytes: freed}, nil
}

// authorize loads the room scoped to the caller.
func (s *DocumentService) authorize(ctx context.Context, roomID uuid.UUID, ownerUserID string) (*domain.DataRoom, error) {
	room, err := s.roomRepo.GetByIDForOwner(ctx, roomID, ownerUserID)
	if err != nil {
		if errors.Is(err, domain.ErrDataRoomNotFound) {
			return nil, domain.ErrDataRoomNotFound
		}
		s.logger.Error().Err(err).Str("data_room_id", roomID.String()).Msg("failed to load data room")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return room, nil
}

// recordUpload updates upload metrics when metrics are enabled.
func (s *DocumentService) recordUpload(outcome string, size int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.UploadsTotal.WithLabelValues(outcome).Inc()
	if size > 0 {
		s.metrics.UploadBytesTotal.Add(float64(size))
	}
}
