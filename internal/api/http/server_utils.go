package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"roomdrop/internal/domain"
	"roomdrop/internal/usecase"
)

// deviceIDHeader carries the caller's device identity. Identity is always
// explicit; the core has no notion of an ambient session.
const deviceIDHeader = "X-Device-ID"

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeCoreError maps the coordination error taxonomy onto HTTP statuses.
func writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "room, device or transfer not found")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", "operation not valid in the record's current state")
	case errors.Is(err, domain.ErrNotSameRoom):
		writeError(w, http.StatusForbidden, "not_same_room", "devices are not members of the same room")
	case errors.Is(err, domain.ErrGenerationExhausted):
		writeError(w, http.StatusServiceUnavailable, "generation_exhausted", "no free room code available")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", "record already exists")
	case errors.Is(err, usecase.ErrArchive):
		writeError(w, http.StatusInternalServerError, "archive_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// requireDevice extracts the calling device's identity from the request.
func requireDevice(w http.ResponseWriter, r *http.Request) (domain.DeviceID, bool) {
	id := strings.TrimSpace(r.Header.Get(deviceIDHeader))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing "+deviceIDHeader+" header")
		return "", false
	}
	return domain.DeviceID(id), true
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return false
	}
	return true
}
