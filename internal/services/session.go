package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"love-sync-backend/internal/events"
	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/notify"
	"love-sync-backend/internal/repository"
	"love-sync-backend/internal/sessions"
	"love-sync-backend/internal/unlock"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
)

const maxDetailLength = 80

// detailKeys are the only free-form fields a session may carry
var detailKeys = map[string]bool{
	"fromName":  true,
	"toName":    true,
	"theme":     true,
	"ringStyle": true,
}

// Viewer is who is calling, as far as the gate is concerned
type Viewer struct {
	UserID string
	Role   models.ViewerRole
}

// SessionConfig holds the timing knobs for shared sessions
type SessionConfig struct {
	CountdownLead time.Duration
	SnapWindow    time.Duration
	SnapSkew      time.Duration
	ShareBaseURL  string
}

// CreateSessionRequest is the initiator's half of a session
type CreateSessionRequest struct {
	Kind    models.SessionKind `json:"kind"`
	Choice  string             `json:"choice"`
	Details map[string]string  `json:"details,omitempty"`
}

// CreateSessionResponse carries the new session and, once shareable, its link
type CreateSessionResponse struct {
	Session   *models.Session `json:"session"`
	ShareLink string          `json:"shareLink,omitempty"`
}

// TransitionResult reports whether a write changed the record, alongside the stored record
type TransitionResult struct {
	Applied bool            `json:"applied"`
	Session *models.Session `json:"session"`
}

// LockedError is returned when the calendar day behind a session kind is not visible to the viewer
type LockedError struct {
	Decision unlock.Decision
}

func (e *LockedError) Error() string {
	if e.Decision.RequiresPremium {
		return fmt.Sprintf("day %d requires premium", e.Decision.Day)
	}
	return fmt.Sprintf("day %d unlocks in %s", e.Decision.Day, e.Decision.Display)
}

func (e *LockedError) Unwrap() error { return models.ErrContentLocked }

// SessionService runs shared sessions on top of the pure state machine
type SessionService struct {
	store    repository.SessionStore
	users    repository.UserStore
	calendar *unlock.Calendar
	bus      events.Bus
	notifier notify.Notifier
	metrics  metrics.Recorder
	clock    clockwork.Clock
	policy   *bluemonday.Policy
	cfg      SessionConfig
}

// NewSessionService creates a session service
func NewSessionService(
	store repository.SessionStore,
	users repository.UserStore,
	calendar *unlock.Calendar,
	bus events.Bus,
	notifier notify.Notifier,
	recorder metrics.Recorder,
	clock clockwork.Clock,
	cfg SessionConfig,
) *SessionService {
	return &SessionService{
		store:    store,
		users:    users,
		calendar: calendar,
		bus:      bus,
		notifier: notifier,
		metrics:  recorder,
		clock:    clock,
		policy:   bluemonday.StrictPolicy(),
		cfg:      cfg,
	}
}

// plainText strips markup and returns trimmed text
func plainText(policy *bluemonday.Policy, text string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(text)))
}

func (s *SessionService) sanitize(text string) string {
	return plainText(s.policy, text)
}

func (s *SessionService) sanitizeDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		if !detailKeys[k] {
			continue
		}
		v = s.sanitize(v)
		if r := []rune(v); len(r) > maxDetailLength {
			v = string(r[:maxDetailLength])
		}
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// ShareLink returns the absolute link a responder opens
func (s *SessionService) ShareLink(sess *models.Session) string {
	return strings.TrimRight(s.cfg.ShareBaseURL, "/") + sessions.SharePath(sess.Kind, sess.ID)
}

// Gate evaluates the calendar day a session kind belongs to
func (s *SessionService) Gate(viewer Viewer, kind models.SessionKind) (unlock.Decision, bool) {
	return gateDay(s.calendar, sessions.DayFor(kind), viewer, s.clock.Now())
}

// gateDay evaluates one calendar day for viewer. Days missing from the calendar are open.
func gateDay(calendar *unlock.Calendar, n int, viewer Viewer, now time.Time) (unlock.Decision, bool) {
	day, ok := calendar.Day(n)
	if !ok {
		return unlock.Decision{Visible: true}, false
	}
	return unlock.Evaluate(viewer.Role, day, now), true
}

// Create starts a session for the initiator
func (s *SessionService) Create(ctx context.Context, viewer Viewer, req CreateSessionRequest) (*CreateSessionResponse, error) {
	if !sessions.ValidKind(req.Kind) {
		return nil, models.ErrWrongKind
	}
	if dec, ok := s.Gate(viewer, req.Kind); ok && !dec.Visible {
		return nil, &LockedError{Decision: dec}
	}

	choice := req.Choice
	if req.Kind != models.KindRose {
		choice = s.sanitize(choice)
	}

	sess, err := sessions.New(uuid.New().String(), req.Kind, choice, s.sanitizeDetails(req.Details), s.clock.Now())
	if err != nil {
		return nil, err
	}
	if viewer.UserID != "" {
		owner := viewer.UserID
		sess.OwnerID = &owner
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.metrics.SessionCreated(string(sess.Kind))

	log.Info().
		Str("session_id", sess.ID).
		Str("kind", string(sess.Kind)).
		Str("status", string(sess.Status)).
		Msg("Session created")

	resp := &CreateSessionResponse{Session: sess}
	if sess.Unlocked {
		resp.ShareLink = s.ShareLink(sess)
	}
	return resp, nil
}

// Get returns the session, settling an expired snap window first
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.expirable(sess) {
		return sess, nil
	}

	res, err := s.apply(ctx, id, "expire", func(*models.Session, time.Time) (bool, error) {
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Session, nil
}

func (s *SessionService) expirable(sess *models.Session) bool {
	return sess.Kind == models.KindChocolate &&
		sess.Outcome == nil &&
		sess.CountdownAt != nil &&
		!s.clock.Now().Before(sess.CountdownAt.Add(s.cfg.SnapWindow))
}

// Respond records the responder's choice once
func (s *SessionService) Respond(ctx context.Context, id, choice string) (*TransitionResult, error) {
	return s.apply(ctx, id, "respond", func(sess *models.Session, now time.Time) (bool, error) {
		c := choice
		if sess.Kind == models.KindChocolate {
			c = s.sanitize(c)
		}
		return sessions.Respond(sess, c, now)
	})
}

// Start stamps the shared countdown for a chocolate session
func (s *SessionService) Start(ctx context.Context, id string) (*TransitionResult, error) {
	return s.apply(ctx, id, "start", func(sess *models.Session, now time.Time) (bool, error) {
		return sessions.Start(sess, now, s.cfg.CountdownLead)
	})
}

// Snap records one participant's tap
func (s *SessionService) Snap(ctx context.Context, id string, p models.Participant, clientMillis int64) (*TransitionResult, error) {
	return s.apply(ctx, id, "snap", func(sess *models.Session, now time.Time) (bool, error) {
		return sessions.Snap(sess, p, clientMillis, now, s.cfg.SnapSkew)
	})
}

// Reveal marks a letter as opened
func (s *SessionService) Reveal(ctx context.Context, id string) (*TransitionResult, error) {
	return s.apply(ctx, id, "reveal", func(sess *models.Session, now time.Time) (bool, error) {
		return sessions.Reveal(sess, now)
	})
}

// ConfirmPayment unlocks a paid proposal
func (s *SessionService) ConfirmPayment(ctx context.Context, id, paymentRef string) (*TransitionResult, error) {
	return s.apply(ctx, id, "confirm_payment", func(sess *models.Session, now time.Time) (bool, error) {
		return sessions.ConfirmPayment(sess, paymentRef, now)
	})
}

// apply runs fn inside the store's serialized update. Lazy expiry is settled before fn sees the record.
func (s *SessionService) apply(ctx context.Context, id, op string, fn func(*models.Session, time.Time) (bool, error)) (*TransitionResult, error) {
	now := s.clock.Now()
	wasResolved := false

	updated, applied, err := s.store.Update(ctx, id, func(sess *models.Session) (bool, error) {
		wasResolved = sess.Outcome != nil
		expired := sessions.Expire(sess, now, s.cfg.SnapWindow)
		changed, err := fn(sess, now)
		if err != nil {
			return false, err
		}
		return expired || changed, nil
	})
	if err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			log.Debug().Err(err).Str("session_id", id).Str("op", op).Msg("Session transition rejected")
		}
		return nil, err
	}

	s.metrics.SessionTransition(string(updated.Kind), op, applied)
	if applied {
		s.publish(ctx, updated, now)
		if !wasResolved && updated.Outcome != nil {
			s.onResolved(updated, now)
		}
	}
	return &TransitionResult{Applied: applied, Session: updated}, nil
}

func (s *SessionService) publish(ctx context.Context, sess *models.Session, now time.Time) {
	ev := events.SessionChanged{
		SessionID: sess.ID,
		Kind:      sess.Kind,
		Status:    sess.Status,
		Version:   sess.Version,
		Session:   sess.Clone(),
		At:        now,
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to publish session event")
	}
}

func (s *SessionService) onResolved(sess *models.Session, now time.Time) {
	s.metrics.SessionResolved(string(sess.Kind), now.Sub(sess.CreatedAt))

	log.Info().
		Str("session_id", sess.ID).
		Str("kind", string(sess.Kind)).
		Int64("version", sess.Version).
		Msg("Session resolved")

	if sess.OwnerID == nil {
		return
	}
	ownerID := *sess.OwnerID
	msg := resolvedMessage(sess)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		owner, err := s.users.GetByID(ctx, ownerID)
		if err != nil || owner.PushToken == nil {
			return
		}
		err = s.notifier.Notify(ctx, *owner.PushToken, msg)
		s.metrics.PushSent("session_resolved", err == nil)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to notify session owner")
		}
	}()
}

func resolvedMessage(sess *models.Session) notify.Message {
	msg := notify.Message{
		Title: "Your partner answered 💌",
		Data:  map[string]string{"session_id": sess.ID, "kind": string(sess.Kind)},
	}
	switch sess.Kind {
	case models.KindRose:
		msg.Body = "They picked a rose for you. See how your roses pair up."
	case models.KindProposal:
		msg.Body = "Your proposal has an answer."
	case models.KindChocolate:
		if sess.Outcome.TimedOut {
			msg.Body = "Your chocolate sync timed out. Try again?"
		} else {
			msg.Body = fmt.Sprintf("You scored %d%% in sync. %s", *sess.Outcome.Score, sessions.Band(*sess.Outcome.Score))
		}
	case models.KindLetter:
		msg.Body = fmt.Sprintf("They reacted %s to your letter.", sess.Outcome.Reaction)
	}
	return msg
}
