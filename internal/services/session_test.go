package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"love-sync-backend/internal/models"
)

func TestCreateLockedDay(t *testing.T) {
	env := newTestEnv(t, time.Date(2026, time.February, 8, 12, 0, 0, 0, ist))
	ctx := context.Background()

	_, err := env.sessionService.Create(ctx, Viewer{Role: models.RoleGuest}, CreateSessionRequest{
		Kind:   models.KindChocolate,
		Choice: "Asha",
	})
	if !errors.Is(err, models.ErrContentLocked) {
		t.Fatalf("err = %v, want ErrContentLocked", err)
	}
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("err %T is not a *LockedError", err)
	}
	if locked.Decision.Display != "12h" {
		t.Errorf("display = %q, want 12h", locked.Decision.Display)
	}

	a, _, _ := env.createCouple(t, true)
	if _, err := env.sessionService.Create(ctx, Viewer{UserID: a.ID, Role: models.RolePremiumCouple}, CreateSessionRequest{
		Kind:   models.KindChocolate,
		Choice: "Asha",
	}); err != nil {
		t.Fatalf("premium couple should bypass the calendar: %v", err)
	}
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	_, err := env.sessionService.Create(context.Background(), Viewer{Role: models.RoleGuest}, CreateSessionRequest{Kind: "teddy", Choice: "x"})
	if !errors.Is(err, models.ErrWrongKind) {
		t.Fatalf("err = %v, want ErrWrongKind", err)
	}
}

func TestCreateSanitizesDetails(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	resp, err := env.sessionService.Create(context.Background(), Viewer{Role: models.RoleGuest}, CreateSessionRequest{
		Kind:   models.KindProposal,
		Choice: "<i>Will you</i> marry me?",
		Details: map[string]string{
			"fromName":  "<b>Asha</b>",
			"ringStyle": strings.Repeat("x", 120),
			"evil":      "dropped",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	s := resp.Session
	if s.InitiatorChoice != "Will you marry me?" {
		t.Errorf("initiator choice = %q", s.InitiatorChoice)
	}
	if s.Details["fromName"] != "Asha" {
		t.Errorf("fromName = %q", s.Details["fromName"])
	}
	if n := len(s.Details["ringStyle"]); n != maxDetailLength {
		t.Errorf("ringStyle length = %d, want %d", n, maxDetailLength)
	}
	if _, ok := s.Details["evil"]; ok {
		t.Error("unknown detail key was kept")
	}
	if resp.ShareLink != "" {
		t.Errorf("unpaid proposal should have no share link, got %q", resp.ShareLink)
	}
	if s.Status != models.StatusPendingPayment {
		t.Errorf("status = %s", s.Status)
	}
}

func TestRoseFlow(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	resp, err := env.sessionService.Create(ctx, Viewer{Role: models.RoleGuest}, CreateSessionRequest{Kind: models.KindRose, Choice: "3"})
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Session.ID
	if want := "https://love.example/games/day1/rose-picker/invite/" + id; resp.ShareLink != want {
		t.Errorf("share link = %q, want %q", resp.ShareLink, want)
	}

	res, err := env.sessionService.Respond(ctx, id, "1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Applied || res.Session.Status != models.StatusResolved {
		t.Fatalf("respond: applied=%v status=%s", res.Applied, res.Session.Status)
	}
	pairing := res.Session.Outcome.Pairing
	if pairing.Initiator.Name != "Pure Serenity" || pairing.Responder.Name != "Crimson Desire" {
		t.Errorf("pairing = %s / %s", pairing.Initiator.Name, pairing.Responder.Name)
	}

	again, err := env.sessionService.Respond(ctx, id, "2")
	if err != nil {
		t.Fatal(err)
	}
	if again.Applied {
		t.Error("second respond should be a no-op")
	}
	if *again.Session.ResponderChoice != "1" {
		t.Errorf("responder choice overwritten: %q", *again.Session.ResponderChoice)
	}

	evs := env.recorded.all()
	if len(evs) != 1 {
		t.Fatalf("published %d events, want 1", len(evs))
	}
	if evs[0].SessionID != id || evs[0].Status != models.StatusResolved {
		t.Errorf("event = %+v", evs[0])
	}
}

func TestGetUnknownSession(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	_, err := env.sessionService.Get(context.Background(), "does-not-exist")
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestChocolateFlowNotifiesOwner(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	owner := env.createUser(t)
	if err := env.userService.UpdatePushToken(ctx, owner.ID, "device-abc"); err != nil {
		t.Fatal(err)
	}

	resp, err := env.sessionService.Create(ctx, Viewer{UserID: owner.ID, Role: models.RoleAuthenticated}, CreateSessionRequest{
		Kind:   models.KindChocolate,
		Choice: "Asha",
	})
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Session.ID

	if _, err := env.sessionService.Start(ctx, id); !errors.Is(err, models.ErrNotReady) {
		t.Fatalf("start before join: err = %v, want ErrNotReady", err)
	}
	if _, err := env.sessionService.Respond(ctx, id, "Ravi"); err != nil {
		t.Fatal(err)
	}

	started, err := env.sessionService.Start(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	countdownAt := *started.Session.CountdownAt
	if !countdownAt.Equal(afterChocolateDay.Add(3 * time.Second)) {
		t.Errorf("countdownAt = %v", countdownAt)
	}

	env.clock.Advance(time.Second)
	restarted, err := env.sessionService.Start(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if restarted.Applied || !restarted.Session.CountdownAt.Equal(countdownAt) {
		t.Error("second start must not move the countdown")
	}

	if _, err := env.sessionService.Snap(ctx, id, models.ParticipantA, env.clock.Now().UnixMilli()); !errors.Is(err, models.ErrTooEarly) {
		t.Fatalf("early snap: err = %v, want ErrTooEarly", err)
	}

	env.clock.Advance(2 * time.Second)
	tap := env.clock.Now().UnixMilli()
	if _, err := env.sessionService.Snap(ctx, id, models.ParticipantA, tap); err != nil {
		t.Fatal(err)
	}
	res, err := env.sessionService.Snap(ctx, id, models.ParticipantB, tap+50)
	if err != nil {
		t.Fatal(err)
	}
	if res.Session.Status != models.StatusResolved {
		t.Fatalf("status = %s", res.Session.Status)
	}
	if got := *res.Session.Outcome.Score; got != 92 {
		t.Errorf("score = %d, want 92", got)
	}

	push := env.notifier.wait(t)
	if push.token != "device-abc" {
		t.Errorf("pushed to %q", push.token)
	}
	if !strings.Contains(push.msg.Body, "92%") {
		t.Errorf("push body = %q", push.msg.Body)
	}

	evs := env.recorded.all()
	if len(evs) != 4 {
		t.Fatalf("published %d events, want 4", len(evs))
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Version <= evs[i-1].Version {
			t.Errorf("event versions not increasing: %d then %d", evs[i-1].Version, evs[i].Version)
		}
	}
}

func TestConcurrentStartStampsOneCountdown(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	resp, err := env.sessionService.Create(ctx, Viewer{Role: models.RoleGuest}, CreateSessionRequest{Kind: models.KindChocolate, Choice: "Maya"})
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Session.ID
	if _, err := env.sessionService.Respond(ctx, id, "Arjun"); err != nil {
		t.Fatal(err)
	}

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
		stamps  = make(map[time.Time]bool)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.sessionService.Start(ctx, id)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Applied {
				applied++
			}
			stamps[res.Session.CountdownAt.UTC()] = true
		}()
		env.clock.Advance(time.Millisecond)
	}
	wg.Wait()

	if applied != 1 {
		t.Errorf("%d starts applied, want 1", applied)
	}
	if len(stamps) != 1 {
		t.Errorf("callers saw %d countdown instants, want 1", len(stamps))
	}
	stored, err := env.sessionService.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if stored.CountdownAt == nil || !stamps[stored.CountdownAt.UTC()] {
		t.Errorf("stored countdownAt = %v, not the one callers saw", stored.CountdownAt)
	}
}

func TestChocolateTimesOutOnRead(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	resp, err := env.sessionService.Create(ctx, Viewer{Role: models.RoleGuest}, CreateSessionRequest{Kind: models.KindChocolate, Choice: "Asha"})
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Session.ID
	if _, err := env.sessionService.Respond(ctx, id, "Ravi"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.sessionService.Start(ctx, id); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(4 * time.Second)
	tap := env.clock.Now().UnixMilli()
	if _, err := env.sessionService.Snap(ctx, id, models.ParticipantA, tap); err != nil {
		t.Fatal(err)
	}

	env.clock.Advance(10 * time.Second)
	got, err := env.sessionService.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Outcome == nil || !got.Outcome.TimedOut || *got.Outcome.Score != 0 {
		t.Fatalf("outcome = %+v, want timed out with score 0", got.Outcome)
	}

	late, err := env.sessionService.Snap(ctx, id, models.ParticipantB, tap+100)
	if err != nil {
		t.Fatal(err)
	}
	if late.Applied || late.Session.SnapB != nil {
		t.Error("snap after timeout must be ignored")
	}
}

func TestLetterFlow(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	resp, err := env.sessionService.Create(ctx, Viewer{Role: models.RoleGuest}, CreateSessionRequest{
		Kind:   models.KindLetter,
		Choice: "Every day with you is my favourite day.",
	})
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Session.ID
	if !strings.HasSuffix(resp.ShareLink, "/games/day1/rose-letter/"+id) {
		t.Errorf("share link = %q", resp.ShareLink)
	}

	rev, err := env.sessionService.Reveal(ctx, id)
	if err != nil || !rev.Applied {
		t.Fatalf("reveal: applied=%v err=%v", rev != nil && rev.Applied, err)
	}
	res, err := env.sessionService.Respond(ctx, id, "🥰")
	if err != nil {
		t.Fatal(err)
	}
	if res.Session.Outcome.Reaction != "🥰" {
		t.Errorf("reaction = %q", res.Session.Outcome.Reaction)
	}

	if _, err := env.sessionService.Start(ctx, id); !errors.Is(err, models.ErrWrongKind) {
		t.Errorf("start on letter: err = %v, want ErrWrongKind", err)
	}
}

func TestProposalRespondBeforePayment(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()

	resp, err := env.sessionService.Create(ctx, Viewer{Role: models.RoleGuest}, CreateSessionRequest{Kind: models.KindProposal, Choice: "Marry me?"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.sessionService.Respond(ctx, resp.Session.ID, "YES"); !errors.Is(err, models.ErrNotShareable) {
		t.Fatalf("err = %v, want ErrNotShareable", err)
	}
}
