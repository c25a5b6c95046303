package handlers

import (
	"net/http"

	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SessionHandler serves the shared two-party sessions. The session id is the capability,
// so everything except creation is public.
type SessionHandler struct {
	sessionService *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// RespondRequest carries the responder's choice
type RespondRequest struct {
	Choice string `json:"choice"`
}

// SnapRequest carries one participant's tap time in unix milliseconds
type SnapRequest struct {
	Participant models.Participant `json:"participant"`
	ClientTime  int64              `json:"clientTime"`
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := middleware.GetViewer(ctx)

	var req services.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.sessionService.Create(ctx, viewer, req)
	if err != nil {
		log.Debug().Err(err).Str("kind", string(req.Kind)).Str("role", string(viewer.Role)).Msg("Session not created")
		respondServiceError(w, err, "Failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "Failed to load session")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, sess)
}

// Respond handles PUT /api/v1/sessions/{id}
func (h *SessionHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.transition(w, r, "respond", func(id string) (*services.TransitionResult, error) {
		return h.sessionService.Respond(r.Context(), id, req.Choice)
	})
}

// Start handles POST /api/v1/sessions/{id}/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start", func(id string) (*services.TransitionResult, error) {
		return h.sessionService.Start(r.Context(), id)
	})
}

// Snap handles POST /api/v1/sessions/{id}/snap
func (h *SessionHandler) Snap(w http.ResponseWriter, r *http.Request) {
	var req SnapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.transition(w, r, "snap", func(id string) (*services.TransitionResult, error) {
		return h.sessionService.Snap(r.Context(), id, req.Participant, req.ClientTime)
	})
}

// Reveal handles POST /api/v1/sessions/{id}/reveal
func (h *SessionHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reveal", func(id string) (*services.TransitionResult, error) {
		return h.sessionService.Reveal(r.Context(), id)
	})
}

// transition runs one write. A no-op write still answers 200 with the stored record.
func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(id string) (*services.TransitionResult, error)) {
	id := chi.URLParam(r, "id")
	res, err := fn(id)
	if err != nil {
		respondServiceError(w, err, "Failed to update session")
		return
	}

	log.Debug().
		Str("session_id", id).
		Str("op", op).
		Bool("applied", res.Applied).
		Str("status", string(res.Session.Status)).
		Msg("Session transition")

	respondJSON(w, http.StatusOK, res)
}
