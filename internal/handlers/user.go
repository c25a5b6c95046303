package handlers

import (
	"net/http"

	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
	pairService *services.PairService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, pairService *services.PairService) *UserHandler {
	return &UserHandler{
		userService: userService,
		pairService: pairService,
	}
}

// MeResponse describes the caller and what they may see
type MeResponse struct {
	User      *models.User      `json:"user"`
	Role      models.ViewerRole `json:"role"`
	PairID    string            `json:"pair_id,omitempty"`
	PartnerID string            `json:"partner_id,omitempty"`
}

// PushTokenRequest registers a device token; an empty token unregisters
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.userService.CreateUser(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create user")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Str("code", user.Code).
		Msg("User created")

	respondJSON(w, http.StatusOK, user)
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		respondServiceError(w, err, "Failed to load user")
		return
	}

	resp := MeResponse{User: user, Role: middleware.GetRole(ctx)}
	if pair, err := h.pairService.GetPairByUserID(ctx, userID); err == nil {
		resp.PairID = pair.ID
		resp.PartnerID = pair.PartnerOf(userID)
	}
	respondJSON(w, http.StatusOK, resp)
}

// UpdatePushToken handles PUT /api/v1/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.userService.UpdatePushToken(ctx, userID, req.PushToken); err != nil {
		respondServiceError(w, err, "Failed to update push token")
		return
	}

	log.Info().
		Str("user_id", userID).
		Bool("registered", req.PushToken != "").
		Msg("Push token updated")

	w.WriteHeader(http.StatusNoContent)
}
