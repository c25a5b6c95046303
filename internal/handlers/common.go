package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 64 << 10

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "BAD_REQUEST"})
		return false
	}
	return true
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{models.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{models.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{models.ErrPairNotFound, http.StatusNotFound, "PAIR_NOT_FOUND"},
	{models.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{models.ErrPhotoNotFound, http.StatusNotFound, "PHOTO_NOT_FOUND"},
	{models.ErrGameNotFound, http.StatusNotFound, "GAME_NOT_FOUND"},

	{models.ErrInvalidChoice, http.StatusBadRequest, "INVALID_CHOICE"},
	{models.ErrWrongKind, http.StatusBadRequest, "WRONG_KIND"},
	{models.ErrInvalidPurpose, http.StatusBadRequest, "INVALID_PURPOSE"},
	{models.ErrInvalidSignature, http.StatusBadRequest, "INVALID_SIGNATURE"},
	{models.ErrSelfPair, http.StatusBadRequest, "SELF_PAIR"},
	{models.ErrInvalidCode, http.StatusBadRequest, "INVALID_CODE"},
	{models.ErrInvalidGame, http.StatusBadRequest, "INVALID_GAME"},

	{models.ErrContentLocked, http.StatusForbidden, "CONTENT_LOCKED"},
	{models.ErrNotShareable, http.StatusForbidden, "NOT_SHAREABLE"},
	{models.ErrNotPremium, http.StatusForbidden, "PREMIUM_REQUIRED"},
	{models.ErrNotPairMember, http.StatusForbidden, "NOT_PAIR_MEMBER"},

	{models.ErrNotReady, http.StatusConflict, "NOT_READY"},
	{models.ErrTooEarly, http.StatusConflict, "TOO_EARLY"},
	{models.ErrAlreadyPaired, http.StatusConflict, "ALREADY_PAIRED"},
	{models.ErrAlreadyUnlocked, http.StatusConflict, "ALREADY_UNLOCKED"},
}

// respondServiceError maps a service error to its status. Unknown errors are logged and hidden.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		resp := ErrorResponse{Error: m.err.Error(), Code: m.code}
		var locked *services.LockedError
		if errors.As(err, &locked) {
			resp.Error = locked.Error()
			resp.Details = locked.Decision
		}
		respondJSON(w, m.status, resp)
		return
	}

	log.Error().Err(err).Msg(fallback)
	respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: fallback, Code: "INTERNAL"})
}
