package handlers

import (
	"net/http"
	"strings"

	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PairHandler handles pair-related HTTP requests
type PairHandler struct {
	pairService *services.PairService
	wsHub       *services.WSHub
}

// NewPairHandler creates a new pair handler
func NewPairHandler(pairService *services.PairService, wsHub *services.WSHub) *PairHandler {
	return &PairHandler{
		pairService: pairService,
		wsHub:       wsHub,
	}
}

// notifyMembers pushes to whichever members of pair are connected
func (h *PairHandler) notifyMembers(pair *models.Pair, event string, send func(userID string) error) {
	for _, id := range []string{pair.UserAID, pair.UserBID} {
		if !h.wsHub.IsOnline(id) {
			continue
		}
		if err := send(id); err != nil {
			log.Error().Err(err).Str("user_id", id).Str("event", event).Msg("Failed to notify pair member")
		}
	}
}

// CreatePairRequest represents the request body for creating a pair
type CreatePairRequest struct {
	PartnerCode string `json:"partner_code"`
}

// CreatePair handles POST /api/v1/pairs
func (h *PairHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CreatePairRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.PartnerCode = strings.TrimSpace(req.PartnerCode)
	if req.PartnerCode == "" {
		respondError(w, "partner_code is required", http.StatusBadRequest)
		return
	}

	pair, err := h.pairService.CreatePair(ctx, userID, req.PartnerCode)
	if err != nil {
		log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("partner_code", req.PartnerCode).
			Msg("Failed to create pair")
		respondServiceError(w, err, "Failed to create pair")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("pair_id", pair.ID).
		Msg("Pair created")

	h.notifyMembers(pair, "pair_created", func(id string) error {
		return h.wsHub.NotifyPairCreated(id, pair.ID, pair.UserAID, pair.UserBID, pair.CreatedAt)
	})

	respondJSON(w, http.StatusOK, pair)
}

// DeletePair handles DELETE /api/v1/pairs/{pair_id}
func (h *PairHandler) DeletePair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	pairID := chi.URLParam(r, "pair_id")

	if pairID == "" {
		respondError(w, "pair_id is required", http.StatusBadRequest)
		return
	}

	pair, err := h.pairService.DeletePair(ctx, pairID, userID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("pair_id", pairID).
			Msg("Failed to delete pair")
		respondServiceError(w, err, "Failed to delete pair")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("pair_id", pairID).
		Msg("Pair deleted")

	// both members were just downgraded, connected apps refetch /me on this
	h.notifyMembers(pair, "pair_deleted", h.wsHub.NotifyPairDeleted)

	w.WriteHeader(http.StatusNoContent)
}
