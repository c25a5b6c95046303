package sessions

import (
	"time"

	"love-sync-backend/internal/models"
)

// Phase is what a client should be showing right now
type Phase string

const (
	PhaseJoin      Phase = "join"
	PhaseWaiting   Phase = "waiting"
	PhaseReady     Phase = "ready"
	PhaseCountdown Phase = "countdown"
	PhaseSnap      Phase = "snap"
	PhaseDone      Phase = "done"
)

// PhaseOf derives the local phase from the latest fetched record and the client's own clock.
// It never trusts a phase written by the other participant.
func PhaseOf(s *models.Session, joined bool, now time.Time) Phase {
	if s == nil || !joined {
		return PhaseJoin
	}
	if s.Outcome != nil {
		return PhaseDone
	}
	if !s.HasResponder() {
		return PhaseWaiting
	}
	if s.Kind != models.KindChocolate {
		return PhaseWaiting
	}
	if s.CountdownAt == nil {
		return PhaseReady
	}
	if now.Before(*s.CountdownAt) {
		return PhaseCountdown
	}
	return PhaseSnap
}

// CountdownRemaining returns how long until the shared instant, or zero once it has passed
func CountdownRemaining(s *models.Session, now time.Time) time.Duration {
	if s == nil || s.CountdownAt == nil {
		return 0
	}
	if d := s.CountdownAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
