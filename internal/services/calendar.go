package services

import (
	"time"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/unlock"

	"github.com/jonboulle/clockwork"
)

// CalendarEntry is a content day as one viewer sees it right now
type CalendarEntry struct {
	Day              int       `json:"day"`
	Title            string    `json:"title"`
	Subtitle         string    `json:"subtitle,omitempty"`
	UnlockAt         time.Time `json:"unlockAt"`
	Visible          bool      `json:"visible"`
	RemainingSeconds int64     `json:"remainingSeconds,omitempty"`
	Display          string    `json:"timeRemaining,omitempty"`
	RequiresPremium  bool      `json:"requiresPremium,omitempty"`
}

// CalendarService evaluates the unlock calendar against the service clock
type CalendarService struct {
	calendar *unlock.Calendar
	clock    clockwork.Clock
}

// NewCalendarService creates a calendar service
func NewCalendarService(calendar *unlock.Calendar, clock clockwork.Clock) *CalendarService {
	return &CalendarService{calendar: calendar, clock: clock}
}

func entry(day models.ContentDay, dec unlock.Decision) CalendarEntry {
	return CalendarEntry{
		Day:              day.Day,
		Title:            day.Title,
		Subtitle:         day.Subtitle,
		UnlockAt:         day.UnlockAt,
		Visible:          dec.Visible,
		RemainingSeconds: dec.RemainingSecs,
		Display:          dec.Display,
		RequiresPremium:  dec.RequiresPremium,
	}
}

// Entries evaluates every day for role
func (s *CalendarService) Entries(role models.ViewerRole) []CalendarEntry {
	now := s.clock.Now()
	days := s.calendar.Days()
	out := make([]CalendarEntry, 0, len(days))
	for _, d := range days {
		out = append(out, entry(d, unlock.Evaluate(role, d, now)))
	}
	return out
}

// Entry evaluates a single day
func (s *CalendarService) Entry(role models.ViewerRole, n int) (CalendarEntry, bool) {
	d, ok := s.calendar.Day(n)
	if !ok {
		return CalendarEntry{}, false
	}
	return entry(d, unlock.Evaluate(role, d, s.clock.Now())), true
}
