package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/scratch"
	"github.com/nickrsmith/og-platform-sub004/internal/service"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Field names the invalid input field on validation errors.
	Field string `json:"field,omitempty"`

	// Filename and LimitBytes accompany upload-size rejections.
	Filename   string `json:"filename,omitempty"`
	LimitBytes string `json:"limitBytes,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeServiceError maps domain and service errors to transport statuses.
// Absent and unowned resources share one NotFound shape on purpose.
func writeServiceError(logger zerolog.Logger, w http.ResponseWriter, err error) {
	var vErr *service.ValidationError

	switch {
	case errors.Is(err, domain.ErrDataRoomNotFound):
		writeError(w, http.StatusNotFound, errorBody{
			Code:    "NotFound",
			Message: "data room not found",
		})
	case errors.Is(err, domain.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, errorBody{
			Code:    "NotFound",
			Message: "document not found",
		})
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    "ValidationError",
			Message: vErr.Message,
			Field:   vErr.Field,
		})
	case errors.Is(err, domain.ErrMissingUploadFile):
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    "ValidationError",
			Message: "upload file is required",
			Field:   "file",
		})
	default:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, errorBody{
			Code:    "InternalError",
			Message: "internal server error",
		})
	}
}

// writeTooLarge reports an upload-size rejection with the offending filename
// and the fixed cap.
func writeTooLarge(w http.ResponseWriter, filename string) {
	writeError(w, http.StatusRequestEntityTooLarge, errorBody{
		Code:       "PayloadTooLarge",
		Message:    "file exceeds maximum upload size",
		Filename:   filename,
		LimitBytes: strconv.FormatInt(scratch.MaxUploadBytes, 10),
	})
}
