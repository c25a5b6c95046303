package handlers

import (
	"net/http"

	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MemoryGameHandler serves day two memory games. Like sessions, the game id is the capability.
type MemoryGameHandler struct {
	memoryService *services.MemoryGameService
}

// NewMemoryGameHandler creates a new memory game handler
func NewMemoryGameHandler(memoryService *services.MemoryGameService) *MemoryGameHandler {
	return &MemoryGameHandler{memoryService: memoryService}
}

// UploadImage handles POST /api/v1/memory-games/upload
func (h *MemoryGameHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	resp, err := h.memoryService.UploadURL(ctx, middleware.GetViewer(ctx), req.ContentType)
	if err != nil {
		respondServiceError(w, err, "Failed to generate upload URL")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// CreateGame handles POST /api/v1/memory-games
func (h *MemoryGameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.CreateMemoryGameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.memoryService.Create(ctx, middleware.GetViewer(ctx), req)
	if err != nil {
		log.Debug().Err(err).Int("memories", len(req.Memories)).Msg("Memory game not created")
		respondServiceError(w, err, "Failed to create memory game")
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// GetGame handles GET /api/v1/memory-games/{id}
func (h *MemoryGameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.memoryService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "Failed to load memory game")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, game)
}

// Guess handles POST /api/v1/memory-games/{id}/guess
func (h *MemoryGameHandler) Guess(w http.ResponseWriter, r *http.Request) {
	var req services.MemoryGuessRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	res, err := h.memoryService.Guess(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, err, "Failed to record guess")
		return
	}

	log.Debug().
		Str("game_id", id).
		Str("step", string(req.Step)).
		Bool("applied", res.Applied).
		Bool("correct", res.Correct).
		Msg("Memory guess")

	respondJSON(w, http.StatusOK, res)
}
