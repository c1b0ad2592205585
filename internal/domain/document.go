package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is a file or folder entry in a data room's tree. Any document can
// act as a folder by being referenced as another document's parent; there is
// no explicit folder flag, and folders carry size zero.
//
// Storage state machine: Received(TempStoragePath) -> Promoted(ContentAddress),
// one way, no back-transition. A document lacking a content address still has
// its bytes only in scratch storage.
type Document struct {
	// ID is the unique identifier of the document.
	ID uuid.UUID `json:"id"`

	// DataRoomID is the room containing this document.
	DataRoomID uuid.UUID `json:"data_room_id"`

	// ParentFolderID is the parent document, or nil for room-root entries.
	// If set it references a document in the same room; a parent must exist
	// before being referenced, so cycles cannot form.
	ParentFolderID *uuid.UUID `json:"parent_folder_id,omitempty"`

	// DisplayName is the name shown in the tree.
	DisplayName string `json:"display_name"`

	// OriginalFilename is the client-supplied filename at upload time.
	OriginalFilename string `json:"original_filename"`

	// MimeType is the declared content type, if any.
	MimeType *string `json:"mime_type,omitempty"`

	// SizeBytes is the document size. Zero for folders. Non-negative.
	SizeBytes int64 `json:"size_bytes"`

	// ContentAddress is the permanent content-addressed identifier, set once
	// the document has been promoted out of scratch storage.
	ContentAddress *string `json:"content_address,omitempty"`

	// ContentURL is where the promoted content can be retrieved.
	ContentURL *string `json:"content_url,omitempty"`

	// TempStoragePath is the scratch-storage location of the bytes. Present
	// until promotion, cleared afterwards.
	TempStoragePath *string `json:"-"`

	// Description is an optional free-form description.
	Description *string `json:"description,omitempty"`

	// Metadata contains opaque user-defined metadata.
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is when the document was recorded.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument creates a document in the Received state, referencing its bytes
// in scratch storage.
func NewDocument(roomID uuid.UUID, parentFolderID *uuid.UUID, displayName, originalFilename, tempPath string, sizeBytes int64) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:               uuid.New(),
		DataRoomID:       roomID,
		ParentFolderID:   parentFolderID,
		DisplayName:      displayName,
		OriginalFilename: originalFilename,
		SizeBytes:        sizeBytes,
		TempStoragePath:  &tempPath,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Promoted reports whether the document's bytes have reached permanent
// content-addressed storage.
func (d *Document) Promoted() bool {
	return d.ContentAddress != nil
}
