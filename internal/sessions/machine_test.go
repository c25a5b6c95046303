package sessions

import (
	"errors"
	"testing"
	"time"

	"love-sync-backend/internal/models"
)

var t0 = time.Date(2026, 2, 9, 20, 0, 0, 0, time.UTC)

func mustNew(t *testing.T, kind models.SessionKind, choice string) *models.Session {
	t.Helper()
	s, err := New("s-1", kind, choice, nil, t0)
	if err != nil {
		t.Fatalf("New(%s, %q) error = %v", kind, choice, err)
	}
	return s
}

func TestNewValidatesInitiatorChoice(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.SessionKind
		choice  string
		wantErr error
		status  models.SessionStatus
	}{
		{"rose ok", models.KindRose, "3", nil, models.StatusAwaitingResponder},
		{"rose out of range", models.KindRose, "6", models.ErrInvalidChoice, ""},
		{"rose not a number", models.KindRose, "red", models.ErrInvalidChoice, ""},
		{"proposal starts locked", models.KindProposal, "Will you?", nil, models.StatusPendingPayment},
		{"proposal empty", models.KindProposal, "   ", models.ErrInvalidChoice, ""},
		{"chocolate name", models.KindChocolate, "Maya", nil, models.StatusAwaitingResponder},
		{"chocolate empty name", models.KindChocolate, "", models.ErrInvalidChoice, ""},
		{"letter", models.KindLetter, "dear you", nil, models.StatusAwaitingResponder},
		{"unknown kind", models.SessionKind("hug"), "x", models.ErrWrongKind, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New("id", tt.kind, tt.choice, nil, t0)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if s.Status != tt.status {
				t.Errorf("status = %s, want %s", s.Status, tt.status)
			}
			if s.Version != 1 {
				t.Errorf("version = %d, want 1", s.Version)
			}
		})
	}
}

func TestRoseResolvesWithBothRoses(t *testing.T) {
	s := mustNew(t, models.KindRose, "3")

	applied, err := Respond(s, "1", t0.Add(time.Minute))
	if err != nil || !applied {
		t.Fatalf("Respond = %v, %v", applied, err)
	}
	if s.Status != models.StatusResolved {
		t.Fatalf("status = %s, want RESOLVED", s.Status)
	}
	p := s.Outcome.Pairing
	if p == nil || p.Initiator.Name != "Pure Serenity" || p.Responder.Name != "Crimson Desire" {
		t.Errorf("pairing = %+v", p)
	}
}

func TestRespondIsWriteOnce(t *testing.T) {
	s := mustNew(t, models.KindRose, "2")

	if applied, _ := Respond(s, "4", t0); !applied {
		t.Fatal("first respond not applied")
	}
	version := s.Version

	for _, choice := range []string{"4", "5"} {
		applied, err := Respond(s, choice, t0.Add(time.Second))
		if err != nil {
			t.Fatalf("repeat respond error = %v", err)
		}
		if applied {
			t.Errorf("repeat respond %q applied", choice)
		}
	}
	if *s.ResponderChoice != "4" {
		t.Errorf("responder = %s, want 4", *s.ResponderChoice)
	}
	if s.Version != version {
		t.Errorf("version moved from %d to %d on a no-op", version, s.Version)
	}
}

func TestRespondRejectsInvalidChoice(t *testing.T) {
	s := mustNew(t, models.KindRose, "2")
	if _, err := Respond(s, "0", t0); !errors.Is(err, models.ErrInvalidChoice) {
		t.Fatalf("error = %v, want ErrInvalidChoice", err)
	}
	if s.HasResponder() {
		t.Fatal("invalid choice was stored")
	}
}

func TestProposalNeedsPayment(t *testing.T) {
	s := mustNew(t, models.KindProposal, "Be my valentine?")

	if _, err := Respond(s, "yes", t0); !errors.Is(err, models.ErrNotShareable) {
		t.Fatalf("respond before payment error = %v, want ErrNotShareable", err)
	}

	applied, err := ConfirmPayment(s, "pay_1", t0)
	if err != nil || !applied {
		t.Fatalf("ConfirmPayment = %v, %v", applied, err)
	}
	if s.Status != models.StatusAwaitingResponder {
		t.Fatalf("status = %s", s.Status)
	}
	if applied, _ := ConfirmPayment(s, "pay_2", t0); applied {
		t.Error("second confirm applied")
	}
	if *s.PaymentRef != "pay_1" {
		t.Errorf("payment ref = %s", *s.PaymentRef)
	}

	if applied, err := Respond(s, "yes", t0); err != nil || !applied {
		t.Fatalf("Respond = %v, %v", applied, err)
	}
	if applied, _ := Respond(s, "YES", t0.Add(time.Second)); applied {
		t.Error("double submit applied twice")
	}
	if s.Outcome == nil || s.Outcome.Answer != AnswerYes {
		t.Errorf("outcome = %+v", s.Outcome)
	}
}

func TestChocolateFlow(t *testing.T) {
	s := mustNew(t, models.KindChocolate, "Maya")

	if _, err := Start(s, t0, 3*time.Second); !errors.Is(err, models.ErrNotReady) {
		t.Fatalf("start without responder error = %v", err)
	}
	if _, err := Respond(s, "Arjun", t0); err != nil {
		t.Fatal(err)
	}
	if s.Status != models.StatusResponded {
		t.Fatalf("status = %s, want RESPONDED", s.Status)
	}

	applied, err := Start(s, t0, 3*time.Second)
	if err != nil || !applied {
		t.Fatalf("Start = %v, %v", applied, err)
	}
	countdown := *s.CountdownAt
	if applied, _ := Start(s, t0.Add(time.Second), 3*time.Second); applied {
		t.Error("second start applied")
	}
	if !s.CountdownAt.Equal(countdown) {
		t.Error("countdown instant changed")
	}
	if s.Status != models.StatusCountdown {
		t.Fatalf("status = %s, want COUNTDOWN", s.Status)
	}

	if _, err := Snap(s, models.ParticipantA, 1, t0.Add(time.Second), 200*time.Millisecond); !errors.Is(err, models.ErrTooEarly) {
		t.Fatalf("early snap error = %v", err)
	}

	at := countdown.Add(time.Second)
	base := at.UnixMilli()
	if applied, err := Snap(s, models.ParticipantA, base, at, 0); err != nil || !applied {
		t.Fatalf("snap A = %v, %v", applied, err)
	}
	if applied, _ := Snap(s, models.ParticipantA, base+999, at, 0); applied {
		t.Error("second snap from A applied")
	}
	if s.Outcome != nil {
		t.Fatal("resolved with one snap")
	}
	if applied, err := Snap(s, models.ParticipantB, base+50, at, 0); err != nil || !applied {
		t.Fatalf("snap B = %v, %v", applied, err)
	}

	if s.Status != models.StatusResolved {
		t.Fatalf("status = %s", s.Status)
	}
	if *s.Outcome.DeltaMillis != 50 {
		t.Errorf("delta = %d, want 50", *s.Outcome.DeltaMillis)
	}
	if *s.Outcome.Score < 90 {
		t.Errorf("score = %d, want >= 90", *s.Outcome.Score)
	}
}

func TestSnapWithinSkewIsAccepted(t *testing.T) {
	s := mustNew(t, models.KindChocolate, "Maya")
	Respond(s, "Arjun", t0)
	Start(s, t0, 3*time.Second)

	early := s.CountdownAt.Add(-100 * time.Millisecond)
	if applied, err := Snap(s, models.ParticipantB, early.UnixMilli(), early, 250*time.Millisecond); err != nil || !applied {
		t.Fatalf("Snap = %v, %v", applied, err)
	}
}

func TestExpireResolvesAsTimedOut(t *testing.T) {
	s := mustNew(t, models.KindChocolate, "Maya")
	Respond(s, "Arjun", t0)
	Start(s, t0, 3*time.Second)
	at := s.CountdownAt.Add(500 * time.Millisecond)
	Snap(s, models.ParticipantA, at.UnixMilli(), at, 0)

	if Expire(s, s.CountdownAt.Add(5*time.Second), 10*time.Second) {
		t.Fatal("expired inside the window")
	}
	if !Expire(s, s.CountdownAt.Add(10*time.Second), 10*time.Second) {
		t.Fatal("did not expire after the window")
	}
	if !s.Outcome.TimedOut || *s.Outcome.Score != 0 {
		t.Errorf("outcome = %+v", s.Outcome)
	}

	late := s.CountdownAt.Add(11 * time.Second)
	if applied, err := Snap(s, models.ParticipantB, late.UnixMilli(), late, 0); err != nil || applied {
		t.Errorf("late snap = %v, %v, want no-op", applied, err)
	}
	if Expire(s, late, 10*time.Second) {
		t.Error("expired twice")
	}
}

func TestLetterRevealAndReaction(t *testing.T) {
	s := mustNew(t, models.KindLetter, "I have loved you since the first hello.")

	if applied, _ := Reveal(s, t0); !applied {
		t.Fatal("reveal not applied")
	}
	first := *s.RevealedAt
	if applied, _ := Reveal(s, t0.Add(time.Hour)); applied {
		t.Error("second reveal applied")
	}
	if !s.RevealedAt.Equal(first) {
		t.Error("reveal time moved")
	}

	if _, err := Respond(s, "👍", t0); !errors.Is(err, models.ErrInvalidChoice) {
		t.Fatalf("unknown reaction error = %v", err)
	}
	if applied, _ := Respond(s, "🥹", t0); !applied {
		t.Fatal("reaction not applied")
	}
	if s.Outcome.Reaction != "🥹" {
		t.Errorf("reaction = %q", s.Outcome.Reaction)
	}
}

func TestWrongKindOperations(t *testing.T) {
	rose := mustNew(t, models.KindRose, "1")
	if _, err := Start(rose, t0, time.Second); !errors.Is(err, models.ErrWrongKind) {
		t.Errorf("Start on rose = %v", err)
	}
	if _, err := Snap(rose, models.ParticipantA, 1, t0, 0); !errors.Is(err, models.ErrWrongKind) {
		t.Errorf("Snap on rose = %v", err)
	}
	if _, err := Reveal(rose, t0); !errors.Is(err, models.ErrWrongKind) {
		t.Errorf("Reveal on rose = %v", err)
	}
	if _, err := ConfirmPayment(rose, "p", t0); !errors.Is(err, models.ErrWrongKind) {
		t.Errorf("ConfirmPayment on rose = %v", err)
	}
}

func TestResolveIsPure(t *testing.T) {
	s := mustNew(t, models.KindChocolate, "Maya")
	Respond(s, "Arjun", t0)
	Start(s, t0, 0)
	Snap(s, models.ParticipantA, t0.UnixMilli(), t0, 0)
	Snap(s, models.ParticipantB, t0.UnixMilli()+180, t0, 0)

	first := Resolve(s)
	second := Resolve(s.Clone())
	if *first.Score != *second.Score || *first.DeltaMillis != *second.DeltaMillis {
		t.Errorf("Resolve disagreed: %+v vs %+v", first, second)
	}
	if *first.Score != *s.Outcome.Score {
		t.Errorf("stored score %d, recomputed %d", *s.Outcome.Score, *first.Score)
	}
}

func TestPhaseOf(t *testing.T) {
	s := mustNew(t, models.KindChocolate, "Maya")
	if got := PhaseOf(s, false, t0); got != PhaseJoin {
		t.Errorf("not joined = %s", got)
	}
	if got := PhaseOf(s, true, t0); got != PhaseWaiting {
		t.Errorf("no responder = %s", got)
	}
	Respond(s, "Arjun", t0)
	if got := PhaseOf(s, true, t0); got != PhaseReady {
		t.Errorf("both present = %s", got)
	}
	Start(s, t0, 3*time.Second)
	if got := PhaseOf(s, true, t0.Add(time.Second)); got != PhaseCountdown {
		t.Errorf("before countdown = %s", got)
	}
	if got := CountdownRemaining(s, t0.Add(time.Second)); got != 2*time.Second {
		t.Errorf("remaining = %s", got)
	}
	if got := PhaseOf(s, true, t0.Add(3*time.Second)); got != PhaseSnap {
		t.Errorf("at countdown = %s", got)
	}
	tap := t0.Add(3 * time.Second)
	Snap(s, models.ParticipantA, tap.UnixMilli(), tap, 0)
	Snap(s, models.ParticipantB, tap.UnixMilli(), tap, 0)
	if got := PhaseOf(s, true, t0.Add(4*time.Second)); got != PhaseDone {
		t.Errorf("resolved = %s", got)
	}
}

func TestSnapRejectsImplausibleClientTime(t *testing.T) {
	s := mustNew(t, models.KindChocolate, "Maya")
	Respond(s, "Arjun", t0)
	Start(s, t0, 0)

	now := t0.Add(time.Second)
	for _, millis := range []int64{
		1,
		now.Add(-2 * MaxClockDrift).UnixMilli(),
		now.Add(2 * MaxClockDrift).UnixMilli(),
		18446744073711,
	} {
		if _, err := Snap(s, models.ParticipantB, millis, now, 0); !errors.Is(err, models.ErrInvalidChoice) {
			t.Errorf("Snap(%d) error = %v, want ErrInvalidChoice", millis, err)
		}
	}
	if s.SnapB != nil {
		t.Fatal("rejected snap was stored")
	}
}

func TestResolveFarApartSnapsScoreZero(t *testing.T) {
	s := mustNew(t, models.KindChocolate, "Maya")
	Respond(s, "Arjun", t0)
	Start(s, t0, 0)

	// records written before timestamps were bounded
	a, b := int64(1), int64(18446744073711)
	s.SnapA, s.SnapB = &a, &b
	out := Resolve(s)
	if out == nil || *out.Score != 0 {
		t.Fatalf("outcome = %+v, want score 0", out)
	}
}
