package handler

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
)

// Optional is a JSON field that distinguishes omitted from explicit null,
// which plain pointers cannot. Set reports the field was present; Valid
// reports it carried a non-null value.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// UnmarshalJSON is only invoked for fields present in the payload, so Set is
// true whenever it runs.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// pointer returns the value as a pointer, nil for an explicit null.
func (o Optional[T]) pointer() *T {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// =============================================================================
// Request DTOs
// =============================================================================

type createDataRoomRequest struct {
	Name      string  `json:"name"`
	ListingID *string `json:"listingId"`
	AssetID   *string `json:"assetId"`
	Tier      string  `json:"tier"`
	Access    string  `json:"access"`
}

type updateDataRoomRequest struct {
	Name      *string          `json:"name"`
	Tier      *string          `json:"tier"`
	Access    *string          `json:"access"`
	Status    *string          `json:"status"`
	AssetID   Optional[string] `json:"assetId"`
	ListingID Optional[string] `json:"listingId"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// Byte-count fields travel as decimal strings: clients with float-typed
// numbers lose precision past 2^53.

type dataRoomResponse struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	OwnerUserID    string             `json:"ownerUserId"`
	OwnerOrgID     *string            `json:"ownerOrgId,omitempty"`
	AssetID        *string            `json:"assetId,omitempty"`
	ListingID      *string            `json:"listingId,omitempty"`
	Tier           string             `json:"tier"`
	Access         string             `json:"access"`
	Status         string             `json:"status"`
	DocumentCount  int64              `json:"documentCount"`
	TotalSizeBytes string             `json:"totalSizeBytes"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	Documents      []documentResponse `json:"documents"`
}

type documentResponse struct {
	ID               string            `json:"id"`
	DataRoomID       string            `json:"dataRoomId"`
	ParentFolderID   *string           `json:"parentFolderId,omitempty"`
	Name             string            `json:"name"`
	OriginalFilename string            `json:"originalFilename"`
	MimeType         *string           `json:"mimeType,omitempty"`
	SizeBytes        string            `json:"sizeBytes"`
	ContentURL       *string           `json:"contentUrl,omitempty"`
	Description      *string           `json:"description,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Promoted         bool              `json:"promoted"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

func toDataRoomResponse(room *domain.DataRoom) dataRoomResponse {
	docs := make([]documentResponse, 0, len(room.Documents))
	for _, doc := range room.Documents {
		docs = append(docs, toDocumentResponse(doc))
	}

	return dataRoomResponse{
		ID:             room.ID.String(),
		Name:           room.Name,
		OwnerUserID:    room.OwnerUserID,
		OwnerOrgID:     room.OwnerOrgID,
		AssetID:        room.AssetID,
		ListingID:      room.ListingID,
		Tier:           string(room.Tier),
		Access:         string(room.Access),
		Status:         string(room.Status),
		DocumentCount:  room.DocumentCount,
		TotalSizeBytes: strconv.FormatInt(room.TotalSizeBytes, 10),
		CreatedAt:      room.CreatedAt,
		UpdatedAt:      room.UpdatedAt,
		Documents:      docs,
	}
}

func toDocumentResponse(doc *domain.Document) documentResponse {
	var parentID *string
	if doc.ParentFolderID != nil {
		s := doc.ParentFolderID.String()
		parentID = &s
	}

	return documentResponse{
		ID:               doc.ID.String(),
		DataRoomID:       doc.DataRoomID.String(),
		ParentFolderID:   parentID,
		Name:             doc.DisplayName,
		OriginalFilename: doc.OriginalFilename,
		MimeType:         doc.MimeType,
		SizeBytes:        strconv.FormatInt(doc.SizeBytes, 10),
		ContentURL:       doc.ContentURL,
		Description:      doc.Description,
		Metadata:         doc.Metadata,
		Promoted:         doc.Promoted(),
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}
