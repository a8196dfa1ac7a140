package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gottino/rmirror-cloud/internal/logger"
)

// ErrorDetail is the error envelope every failing endpoint returns.
type ErrorDetail struct {
	Detail string `json:"detail"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode API response", "error", err)
	}
}

// WriteJSONOK writes a 200 response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteError writes the error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, ErrorDetail{Detail: detail})
}

func BadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, detail)
}

func Unauthorized(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusUnauthorized, detail)
}

func Forbidden(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusForbidden, detail)
}

func NotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, detail)
}

func Conflict(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusConflict, detail)
}

func InternalServerError(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusInternalServerError, detail)
}

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}
