package handlers

import (
	"net/http"
	"strconv"

	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PhotoHandler handles couple memory images
type PhotoHandler struct {
	photoService *services.PhotoService
	pairService  *services.PairService
	wsHub        *services.WSHub
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService, pairService *services.PairService, wsHub *services.WSHub) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
		pairService:  pairService,
		wsHub:        wsHub,
	}
}

// GetPhotos handles GET /api/v1/photos
func (h *PhotoHandler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := middleware.GetViewer(ctx)

	limit := 50
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			limit = parsedLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsedOffset
		}
	}

	photos, total, err := h.photoService.GetPhotosByPair(ctx, viewer, limit, offset)
	if err != nil {
		respondServiceError(w, err, "Failed to get photos")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"photos": photos,
		"total":  total,
	})
}

// UploadPhoto handles POST /api/v1/photos/upload
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	response, err := h.photoService.GetPreSignedURL(ctx, userID, req.ContentType)
	if err != nil {
		log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("content_type", req.ContentType).
			Msg("Failed to generate pre-signed URL")
		respondServiceError(w, err, "Failed to generate upload URL")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("photo_id", response.PhotoID).
		Str("filename", req.Filename).
		Msg("Pre-signed URL generated")

	if partnerID := h.pairService.PartnerID(ctx, userID); partnerID != "" && h.wsHub.IsOnline(partnerID) {
		if err := h.wsHub.NotifyPhotoAdded(partnerID, response.PhotoID, response.S3URL); err != nil {
			log.Error().Err(err).Str("partner_id", partnerID).Msg("Failed to notify partner about photo")
		}
	}

	respondJSON(w, http.StatusOK, response)
}
