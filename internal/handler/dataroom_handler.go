// Package handler provides the REST surface of the data room service.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/service"
)

// DataRoomHandler handles data room lifecycle requests.
type DataRoomHandler struct {
	roomService *service.DataRoomService
	logger      zerolog.Logger
}

// NewDataRoomHandler creates a new DataRoomHandler.
func NewDataRoomHandler(roomService *service.DataRoomService, logger zerolog.Logger) *DataRoomHandler {
	return &DataRoomHandler{
		roomService: roomService,
		logger:      logger.With().Str("handler", "dataroom").Logger(),
	}
}

// RegisterRoutes registers data room routes.
func (h *DataRoomHandler) RegisterRoutes(r chi.Router) {
	r.Post("/data-rooms", h.handleCreate)
	r.Get("/data-rooms", h.handleList)
	r.Get("/data-rooms/{id}", h.handleGet)
	r.Get("/data-rooms/listing/{listingId}", h.handleGetByListing)
	r.Get("/data-rooms/asset/{assetId}", h.handleGetByAsset)
	r.Patch("/data-rooms/{id}", h.handleUpdate)
	r.Delete("/data-rooms/{id}", h.handleDelete)
}

func (h *DataRoomHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req createDataRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    "ValidationError",
			Message: "invalid request body",
		})
		return
	}

	var orgID *string
	if identity.OrgID != "" {
		orgID = &identity.OrgID
	}

	out, err := h.roomService.CreateDataRoom(r.Context(), service.CreateDataRoomInput{
		OwnerUserID: identity.UserID,
		OwnerOrgID:  orgID,
		Name:        req.Name,
		AssetID:     req.AssetID,
		ListingID:   req.ListingID,
		Tier:        req.Tier,
		Access:      req.Access,
	})
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDataRoomResponse(out.DataRoom))
}

func (h *DataRoomHandler) handleList(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	query := r.URL.Query()
	input := service.ListDataRoomsInput{OwnerUserID: identity.UserID}
	if v := query.Get("listingId"); v != "" {
		input.ListingID = &v
	}
	if v := query.Get("assetId"); v != "" {
		input.AssetID = &v
	}
	if v := query.Get("status"); v != "" {
		input.Status = &v
	}

	out, err := h.roomService.ListDataRooms(r.Context(), input)
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	responses := make([]dataRoomResponse, 0, len(out.DataRooms))
	for _, room := range out.DataRooms {
		responses = append(responses, toDataRoomResponse(room))
	}

	writeJSON(w, http.StatusOK, responses)
}

func (h *DataRoomHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	out, err := h.roomService.GetDataRoom(r.Context(), service.GetDataRoomInput{
		ID:          id,
		OwnerUserID: identity.UserID,
	})
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDataRoomResponse(out.DataRoom))
}

func (h *DataRoomHandler) handleGetByListing(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	out, err := h.roomService.GetDataRoomByListing(r.Context(), service.GetDataRoomByRefInput{
		RefID:       chi.URLParam(r, "listingId"),
		OwnerUserID: identity.UserID,
	})
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	h.writeRefLookup(w, out)
}

func (h *DataRoomHandler) handleGetByAsset(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	out, err := h.roomService.GetDataRoomByAsset(r.Context(), service.GetDataRoomByRefInput{
		RefID:       chi.URLParam(r, "assetId"),
		OwnerUserID: identity.UserID,
	})
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	h.writeRefLookup(w, out)
}

// writeRefLookup writes a reference lookup result: 200 with a JSON null body
// when no room is linked, never 404.
func (h *DataRoomHandler) writeRefLookup(w http.ResponseWriter, out *service.GetDataRoomByRefOutput) {
	if out.DataRoom == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toDataRoomResponse(out.DataRoom))
}

func (h *DataRoomHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var req updateDataRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    "ValidationError",
			Message: "invalid request body",
		})
		return
	}

	out, err := h.roomService.UpdateDataRoom(r.Context(), service.UpdateDataRoomInput{
		ID:          id,
		OwnerUserID: identity.UserID,
		Name:        req.Name,
		Tier:        req.Tier,
		Access:      req.Access,
		Status:      req.Status,
		AssetID:     service.OptionalString{Set: req.AssetID.Set, Value: req.AssetID.pointer()},
		ListingID:   service.OptionalString{Set: req.ListingID.Set, Value: req.ListingID.pointer()},
	})
	if err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDataRoomResponse(out.DataRoom))
}

func (h *DataRoomHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.roomService.DeleteDataRoom(r.Context(), service.DeleteDataRoomInput{
		ID:          id,
		OwnerUserID: identity.UserID,
	}); err != nil {
		writeServiceError(h.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseUUIDParam parses a UUID URL parameter. A malformed id cannot name any
// resource, so it reads as NotFound rather than a validation failure.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusNotFound, errorBody{
			Code:    "NotFound",
			Message: "data room not found",
		})
		return uuid.Nil, false
	}
	return id, true
}
