package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/repository"
)

func newMemoryGames(t *testing.T, env *testEnv) *MemoryGameService {
	t.Helper()
	photos := NewPhotoService(repository.NewMemoryPhotoStore(), env.pairs, &fakePresigner{}, S3Config{
		Region: "ap-south-1",
		Bucket: "love-memories",
	}, env.clock)
	return NewMemoryGameService(repository.NewMemoryGameStore(), env.users, photos, testCalendar(), env.notifier, metrics.Nop{}, env.clock, "https://love.example/")
}

func uploadedMemories(t *testing.T, games *MemoryGameService) []models.MemoryItem {
	t.Helper()
	items := []models.MemoryItem{
		{Step: models.StepPlace, Story: "Our <b>first</b> date", Question: "Where did we meet?", Answer: "Marina Beach"},
		{Step: models.StepMovie, Story: "It rained all night", Answer: "3 Idiots"},
		{Step: models.StepGift, Story: "Your birthday", Answer: "Teddy Bear"},
	}
	for i := range items {
		up, err := games.UploadURL(context.Background(), Viewer{Role: models.RoleGuest}, "image/jpeg")
		if err != nil {
			t.Fatal(err)
		}
		items[i].ImageURL = up.S3URL
	}
	return items
}

func TestMemoryGameFlow(t *testing.T) {
	env := newTestEnv(t, afterChocolateDay)
	ctx := context.Background()
	games := newMemoryGames(t, env)

	owner := env.createUser(t)
	if err := env.userService.UpdatePushToken(ctx, owner.ID, "device-abc"); err != nil {
		t.Fatal(err)
	}

	created, err := games.Create(ctx, Viewer{UserID: owner.ID, Role: models.RoleAuthenticated}, CreateMemoryGameRequest{
		CreatorName: "Rupa",
		PartnerName: "Rahul",
		Memories:    uploadedMemories(t, games),
	})
	if err != nil {
		t.Fatal(err)
	}
	id := created.Game.ID
	if created.ShareLink != "https://love.example/games/day2/memory/"+id {
		t.Errorf("share link = %q", created.ShareLink)
	}
	if created.Game.Steps[1].Question != "What movie did we watch together?" {
		t.Errorf("movie question = %q", created.Game.Steps[1].Question)
	}
	for _, step := range created.Game.Steps {
		if step.Answer != "" || step.Story != "" {
			t.Errorf("unguessed step leaks %+v", step)
		}
	}

	res, err := games.Guess(ctx, id, MemoryGuessRequest{Step: models.StepPlace, Guess: " marina  BEACH"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Applied || !res.Correct || res.Answer != "Marina Beach" || res.Story != "Our first date" {
		t.Errorf("place guess = %+v", res)
	}

	again, err := games.Guess(ctx, id, MemoryGuessRequest{Step: models.StepPlace, Guess: "Goa"})
	if err != nil {
		t.Fatal(err)
	}
	if again.Applied || !again.Correct {
		t.Errorf("repeat guess = %+v", again)
	}

	if _, err := games.Guess(ctx, id, MemoryGuessRequest{Step: models.StepMovie, Guess: "Titanic"}); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(time.Minute)
	last, err := games.Guess(ctx, id, MemoryGuessRequest{Step: models.StepGift, Guess: "teddy bear"})
	if err != nil {
		t.Fatal(err)
	}
	if !last.Game.Finished || last.Game.Score != 2 || last.Game.Verdict != "You remember us pretty well 💞" {
		t.Errorf("final view = %+v", last.Game)
	}

	push := env.notifier.wait(t)
	if push.token != "device-abc" || !strings.Contains(push.msg.Body, "Rahul remembered 2 of 3") {
		t.Errorf("push = %+v", push)
	}
}

func TestMemoryGameCreateRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("before propose day", func(t *testing.T) {
		env := newTestEnv(t, time.Date(2026, time.February, 7, 23, 0, 0, 0, ist))
		games := newMemoryGames(t, env)
		_, err := games.UploadURL(ctx, Viewer{Role: models.RoleGuest}, "image/png")
		var locked *LockedError
		if !errors.As(err, &locked) || locked.Decision.Day != 2 {
			t.Errorf("error = %v, want day 2 locked", err)
		}
	})

	t.Run("foreign image", func(t *testing.T) {
		env := newTestEnv(t, afterChocolateDay)
		games := newMemoryGames(t, env)
		items := uploadedMemories(t, games)
		items[2].ImageURL = "https://elsewhere.example/cat.jpg"
		_, err := games.Create(ctx, Viewer{Role: models.RoleGuest}, CreateMemoryGameRequest{
			CreatorName: "Rupa", PartnerName: "Rahul", Memories: items,
		})
		if !errors.Is(err, models.ErrInvalidGame) {
			t.Errorf("error = %v, want ErrInvalidGame", err)
		}
	})

	t.Run("unknown game", func(t *testing.T) {
		env := newTestEnv(t, afterChocolateDay)
		games := newMemoryGames(t, env)
		if _, err := games.Get(ctx, "not-a-uuid"); !errors.Is(err, models.ErrGameNotFound) {
			t.Errorf("Get error = %v", err)
		}
		if _, err := games.Guess(ctx, "0b8c3f5e-8c43-4a51-9a8e-3f7f3c1f2d11", MemoryGuessRequest{Step: models.StepGift, Guess: "x"}); !errors.Is(err, models.ErrGameNotFound) {
			t.Errorf("Guess error = %v", err)
		}
	})
}
