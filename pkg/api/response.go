package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/inference"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/library"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// Response represents a standard API response wrapper.
//
// All API responses follow this structure for consistency:
//   - Status indicates the overall result ("ok", "error")
//   - Timestamp provides response time for debugging and caching
//   - Data contains the response payload (optional)
//   - Error contains error details when Status indicates failure (optional)
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeData writes a successful wrapped response.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// writeError writes a failed wrapped response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     msg,
	})
}

// writeDomainError maps domain errors onto HTTP status codes. Unknown
// errors become 500 and are logged.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrMediaNotFound),
		errors.Is(err, models.ErrJobNotFound),
		errors.Is(err, models.ErrArtifactNotFound),
		errors.Is(err, models.ErrModelNotFound),
		errors.Is(err, models.ErrSettingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrAlreadyQueued),
		errors.Is(err, models.ErrAlreadyProcessed),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrModelNotDownloaded),
		errors.Is(err, models.ErrDuplicateMedia):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inference.ErrUnreachable),
		errors.Is(err, library.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, inference.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		var remote *inference.RemoteError
		if errors.As(err, &remote) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		var apiErr *library.APIError
		if errors.As(err, &apiErr) {
			if apiErr.IsNotFound() {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		logger.Error("Unhandled error on API surface", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
