package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/scratch"
	"github.com/nickrsmith/og-platform-sub004/internal/service"
)

// maxUploadRequestBytes caps the whole multipart request body: the file cap
// plus headroom for the multipart framing and text fields.
const maxUploadRequestBytes = scratch.MaxUploadBytes + 1<<20

// DocumentHandler handles document tree requests within a data room.
type DocumentHandler struct {
	docService *service.DocumentService
	logger     zerolog.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(docService *service.DocumentService, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		logger:     logger.With().Str("handler", "document").Logger(),
	}
}

// RegisterRoutes registers document routes.
func (h *DocumentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/data-rooms/{id}/documents", h.handleUpload)
	r.Get("/data-rooms/{id}/documents/{docId}", h.handleGet)
	r.Delete("/data-rooms/{id}/documents/{docId}", h.handleDelete)
}

// uploadFields holds the text fields of an upload request. Clients send them
// before the file part so they are available when the file arrives.
type uploadFields struct {
	name        string
	folderID    *uuid.UUID
	description *string
}

func (h *DocumentHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	roomID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	// The transport-level cap; the scratch store re-checks the file size
	// after the copy.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequestBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    "ValidationError",
			Message: "multipart form data is required",
		})
		return
	}

	fields := uploadFields{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			// No file part in the request.
			writeServiceError(h.logger, w, domain.ErrMissingUploadFile)
			return
		}
		if err != nil {
			h.writeUploadReadError(w, err, "")
			return
		}

		if part.FormName() != "file" {
			if err := h.readField(part, &fields); err != nil {
				part.Close()
				writeError(w, http.StatusBadRequest, errorBody{
					Code:    "ValidationError",
					Message: err.Error(),
					Field:   part.FormName(),
				})
				return
			}
			continue
		}

		// The file part is streamed straight into scratch storage without
		// buffering the body.
		h.receiveFile(w, r, roomID, identity, fields, part)
		return
	}
}

// readField consumes one small text field.
func (h *DocumentHandler) readField(part *multipart.Part, fields *uploadFields) error {
	defer part.Close()

	value, err := io.ReadAll(io.LimitReader(part, 4096))
	if err != nil {
		return errors.New("failed to read form field")
	}

	switch part.FormName() {
	case "name":
		fields.name = strings.TrimSpace(string(value))
	case "folderId":
		id, err := uuid.Parse(strings.TrimSpace(string(value)))
		if err != nil {
			return errors.New("folder not found")
		}
		fields.folderID = &id
	case "description":
		s := string(value)
		fields.description = &s
	}
	return nil
}

func (h *DocumentHandler) receiveFile(
	w http.ResponseWriter,
	r *http.Request,
	roomID uuid.UUID,
	identity Identity,
	fields uploadFields,
	part *multipart.Part,
) {
	defer part.Close()

	filename := part.FileName()
	if filename == "" {
		writeServiceError(h.logger, w, domain.ErrMissingUploadFile)
		return
	}

	var mimeType *string
	if ct := part.Header.Get("Content-Type"); ct != "" {
		mimeType = &ct
	}

	out, err := h.docService.UploadDocument(r.Context(), service.UploadDocumentInput{
		RoomID:           roomID,
		OwnerUserID:      identity.UserID,
		ParentFolderID:   fields.folderID,
		DisplayName:      fields.name,
		OriginalFilename: filename,
		MimeType:         mimeType,
		Description:      fields.description,
		Content:          part,
	})
	if err != nil {
		if errors.Is(err, domain.ErrFileTooLarge) {
			writeTooLarge(w, filename)
			return
		}
		h.writeUploadReadError(w, err, filename)
		return
	}

	writeJSON(w, http.StatusCreated, toDocumentResponse(out.Document))
}

// writeUploadReadError distinguishes the transport cap tripping mid-stream
// from other failures.
func (h *DocumentHandler) writeUploadReadError(w http.ResponseWriter, err error, filename string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeTooLarge(w, filename)
		return
	}
	writeServiceError(h.logger, w, err)
}

func (h *DocumentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	roomID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	docID, ok := parseUUIDParam(w, r, "docId")
	if !ok {
		return
	}

	out, err := h.docService.GetDocument(r.Context(), service.GetDocumentInput{
		RoomID:      roomID,
		DocumentID:  docID,
		OwnerUserID: identity.UserID,
	})
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(out.Document))
}

func (h *DocumentHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	roomID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	docID, ok := parseUUIDParam(w, r, "docId")
	if !ok {
		return
	}

	if _, err := h.docService.DeleteDocument(r.Context(), service.DeleteDocumentInput{
		RoomID:      roomID,
		DocumentID:  docID,
		OwnerUserID: identity.UserID,
	}); err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
