package handlers

import (
	"net/http"
	"strconv"

	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// CalendarHandler exposes the unlock calendar as the caller sees it
type CalendarHandler struct {
	calendarService *services.CalendarService
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(calendarService *services.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService}
}

// ListDays handles GET /api/v1/calendar
func (h *CalendarHandler) ListDays(w http.ResponseWriter, r *http.Request) {
	role := middleware.GetRole(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"role": role,
		"days": h.calendarService.Entries(role),
	})
}

// GetDay handles GET /api/v1/calendar/{day}
func (h *CalendarHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		respondError(w, "day must be a number", http.StatusBadRequest)
		return
	}

	entry, ok := h.calendarService.Entry(middleware.GetRole(r.Context()), n)
	if !ok {
		respondError(w, "day not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
