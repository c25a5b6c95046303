// Package sessions holds the two-party session state machine.
//
// Every transition is a pure mutation of a *models.Session given the current time. Transitions
// report whether they changed anything; a repeated or conflicting write is a no-op, never an
// overwrite. Callers are expected to run transitions inside a store's serialized update.
package sessions

import (
	"strconv"
	"time"

	"love-sync-backend/internal/models"
)

// New builds a fresh session with the initiator's choice already set
func New(id string, kind models.SessionKind, initiatorChoice string, details map[string]string, now time.Time) (*models.Session, error) {
	if !ValidKind(kind) {
		return nil, models.ErrWrongKind
	}
	choice, err := normalizeInitiator(kind, initiatorChoice)
	if err != nil {
		return nil, err
	}

	s := &models.Session{
		ID:              id,
		Kind:            kind,
		InitiatorChoice: choice,
		Details:         details,
		Unlocked:        kind != models.KindProposal,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.Status = DeriveStatus(s)
	return s, nil
}

// ConfirmPayment makes a proposal shareable. Confirming twice is a no-op.
func ConfirmPayment(s *models.Session, paymentRef string, now time.Time) (bool, error) {
	if s.Kind != models.KindProposal {
		return false, models.ErrWrongKind
	}
	if s.Unlocked {
		return false, nil
	}
	s.Unlocked = true
	s.PaymentRef = &paymentRef
	touch(s, now)
	return true, nil
}

// Respond sets the responder's choice exactly once
func Respond(s *models.Session, choice string, now time.Time) (bool, error) {
	normalized, err := normalizeResponder(s.Kind, choice)
	if err != nil {
		return false, err
	}
	if s.Kind == models.KindProposal && !s.Unlocked {
		return false, models.ErrNotShareable
	}
	if s.HasResponder() || s.Outcome != nil {
		return false, nil
	}
	s.ResponderChoice = &normalized
	touch(s, now)
	return true, nil
}

// Start stamps the shared countdown instant. Only the first call has an effect.
func Start(s *models.Session, now time.Time, lead time.Duration) (bool, error) {
	if s.Kind != models.KindChocolate {
		return false, models.ErrWrongKind
	}
	if !s.HasResponder() {
		return false, models.ErrNotReady
	}
	if s.CountdownAt != nil || s.Outcome != nil {
		return false, nil
	}
	at := now.Add(lead)
	s.CountdownAt = &at
	touch(s, now)
	return true, nil
}

// MaxClockDrift bounds how far a snap's client timestamp may sit from the server clock
const MaxClockDrift = time.Minute

// Snap records one participant's client-observed timestamp in unix milliseconds.
// skew is how far ahead of the countdown instant a snap is still accepted, to absorb clock drift.
// A timestamp further than MaxClockDrift from now is rejected as ErrInvalidChoice.
func Snap(s *models.Session, p models.Participant, clientMillis int64, now time.Time, skew time.Duration) (bool, error) {
	if s.Kind != models.KindChocolate {
		return false, models.ErrWrongKind
	}
	if p != models.ParticipantA && p != models.ParticipantB {
		return false, models.ErrInvalidChoice
	}
	if clientMillis <= 0 {
		return false, models.ErrInvalidChoice
	}
	if s.Outcome != nil {
		return false, nil
	}
	if s.CountdownAt == nil {
		return false, models.ErrNotReady
	}
	if now.Before(s.CountdownAt.Add(-skew)) {
		return false, models.ErrTooEarly
	}
	if drift := clientMillis - now.UnixMilli(); drift > MaxClockDrift.Milliseconds() || drift < -MaxClockDrift.Milliseconds() {
		return false, models.ErrInvalidChoice
	}

	slot := &s.SnapA
	if p == models.ParticipantB {
		slot = &s.SnapB
	}
	if *slot != nil {
		return false, nil
	}
	v := clientMillis
	*slot = &v
	touch(s, now)
	return true, nil
}

// Expire resolves a chocolate session whose snap window closed with a snap missing
func Expire(s *models.Session, now time.Time, window time.Duration) bool {
	if s.Kind != models.KindChocolate || s.Outcome != nil || s.CountdownAt == nil {
		return false
	}
	if now.Before(s.CountdownAt.Add(window)) {
		return false
	}
	zero := 0
	s.Outcome = &models.Outcome{Score: &zero, TimedOut: true}
	touch(s, now)
	return true
}

// Reveal marks a letter as opened. Only the first reveal is recorded.
func Reveal(s *models.Session, now time.Time) (bool, error) {
	if s.Kind != models.KindLetter {
		return false, models.ErrWrongKind
	}
	if s.RevealedAt != nil {
		return false, nil
	}
	at := now
	s.RevealedAt = &at
	touch(s, now)
	return true, nil
}

// Resolve derives the outcome from the stored choices, or nil if they are incomplete.
// It reads nothing but the session, so repeated calls agree.
func Resolve(s *models.Session) *models.Outcome {
	switch s.Kind {
	case models.KindRose:
		if !s.HasResponder() {
			return nil
		}
		a, okA := roseFromChoice(s.InitiatorChoice)
		b, okB := roseFromChoice(*s.ResponderChoice)
		if !okA || !okB {
			return nil
		}
		return &models.Outcome{Pairing: &models.RosePairing{Initiator: a, Responder: b}}

	case models.KindProposal:
		if !s.Unlocked || !s.HasResponder() {
			return nil
		}
		return &models.Outcome{Answer: *s.ResponderChoice}

	case models.KindLetter:
		if !s.HasResponder() {
			return nil
		}
		return &models.Outcome{Reaction: *s.ResponderChoice}

	case models.KindChocolate:
		if s.SnapA == nil || s.SnapB == nil {
			return nil
		}
		delta := *s.SnapA - *s.SnapB
		if delta < 0 {
			delta = -delta
		}
		score := ScoreMillis(delta)
		return &models.Outcome{Score: &score, DeltaMillis: &delta}
	}
	return nil
}

// DeriveStatus computes the explicit state tag from the record
func DeriveStatus(s *models.Session) models.SessionStatus {
	switch {
	case s.Outcome != nil:
		return models.StatusResolved
	case s.Kind == models.KindProposal && !s.Unlocked:
		return models.StatusPendingPayment
	case !s.HasResponder():
		return models.StatusAwaitingResponder
	case s.Kind == models.KindChocolate && s.CountdownAt != nil:
		return models.StatusCountdown
	}
	return models.StatusResponded
}

func touch(s *models.Session, now time.Time) {
	if s.Outcome == nil {
		s.Outcome = Resolve(s)
	}
	s.Status = DeriveStatus(s)
	s.Version++
	s.UpdatedAt = now
}

func roseFromChoice(choice string) (models.Rose, bool) {
	id, err := strconv.Atoi(choice)
	if err != nil {
		return models.Rose{}, false
	}
	return RoseByID(id)
}
