package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"love-sync-backend/internal/memorygame"
	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/notify"
	"love-sync-backend/internal/repository"
	"love-sync-backend/internal/unlock"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
)

const memoryGameKind = "memory"

// CreateMemoryGameRequest is the creator's three memories
type CreateMemoryGameRequest struct {
	CreatorName string              `json:"creatorName"`
	PartnerName string              `json:"partnerName"`
	Memories    []models.MemoryItem `json:"memories"`
}

// CreateMemoryGameResponse carries the public view of the new game and the link to send
type CreateMemoryGameResponse struct {
	Game      memorygame.View `json:"game"`
	ShareLink string          `json:"shareLink"`
}

// MemoryGuessRequest is one guess from the partner
type MemoryGuessRequest struct {
	Step  models.MemoryStep `json:"step"`
	Guess string            `json:"guess"`
}

// MemoryGuessResult reveals the answer for the guessed step. Applied is false when the
// step had already been guessed; the stored guess is reported either way.
type MemoryGuessResult struct {
	Applied bool            `json:"applied"`
	Correct bool            `json:"correct"`
	Answer  string          `json:"answer"`
	Story   string          `json:"story"`
	Game    memorygame.View `json:"game"`
}

// MemoryGameService runs day two memory games
type MemoryGameService struct {
	store        repository.GameStore
	users        repository.UserStore
	photos       *PhotoService
	calendar     *unlock.Calendar
	notifier     notify.Notifier
	metrics      metrics.Recorder
	clock        clockwork.Clock
	policy       *bluemonday.Policy
	shareBaseURL string
}

// NewMemoryGameService creates a new memory game service
func NewMemoryGameService(
	store repository.GameStore,
	users repository.UserStore,
	photos *PhotoService,
	calendar *unlock.Calendar,
	notifier notify.Notifier,
	recorder metrics.Recorder,
	clock clockwork.Clock,
	shareBaseURL string,
) *MemoryGameService {
	return &MemoryGameService{
		store:        store,
		users:        users,
		photos:       photos,
		calendar:     calendar,
		notifier:     notifier,
		metrics:      recorder,
		clock:        clock,
		policy:       bluemonday.StrictPolicy(),
		shareBaseURL: shareBaseURL,
	}
}

// UploadURL signs an image upload for a game that is about to be created
func (s *MemoryGameService) UploadURL(ctx context.Context, viewer Viewer, contentType string) (*UploadResponse, error) {
	if dec, ok := gateDay(s.calendar, memorygame.Day, viewer, s.clock.Now()); ok && !dec.Visible {
		return nil, &LockedError{Decision: dec}
	}
	return s.photos.MemoryUploadURL(ctx, contentType)
}

// Create stores a new game. Every image must have come from UploadURL.
func (s *MemoryGameService) Create(ctx context.Context, viewer Viewer, req CreateMemoryGameRequest) (*CreateMemoryGameResponse, error) {
	now := s.clock.Now()
	if dec, ok := gateDay(s.calendar, memorygame.Day, viewer, now); ok && !dec.Visible {
		return nil, &LockedError{Decision: dec}
	}

	items := make([]models.MemoryItem, 0, len(req.Memories))
	for _, m := range req.Memories {
		if !s.photos.IsMemoryImage(m.ImageURL) {
			return nil, fmt.Errorf("image %q was not uploaded for a memory game: %w", m.ImageURL, models.ErrInvalidGame)
		}
		items = append(items, models.MemoryItem{
			Step:     m.Step,
			ImageURL: m.ImageURL,
			Story:    plainText(s.policy, m.Story),
			Question: plainText(s.policy, m.Question),
			Answer:   plainText(s.policy, m.Answer),
		})
	}

	game, err := memorygame.New(uuid.New().String(),
		plainText(s.policy, req.CreatorName), plainText(s.policy, req.PartnerName), items, now)
	if err != nil {
		return nil, err
	}
	if viewer.UserID != "" {
		owner := viewer.UserID
		game.OwnerID = &owner
	}

	if err := s.store.Create(ctx, game); err != nil {
		return nil, err
	}
	s.metrics.SessionCreated(memoryGameKind)

	log.Info().Str("game_id", game.ID).Bool("guest", game.OwnerID == nil).Msg("Memory game created")

	return &CreateMemoryGameResponse{
		Game:      memorygame.NewView(game),
		ShareLink: strings.TrimRight(s.shareBaseURL, "/") + "/games/day2/memory/" + game.ID,
	}, nil
}

// Get returns the public view of a game
func (s *MemoryGameService) Get(ctx context.Context, id string) (*memorygame.View, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrGameNotFound
	}
	game, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := memorygame.NewView(game)
	return &v, nil
}

// Guess records the partner's answer for one step and reveals the real one
func (s *MemoryGameService) Guess(ctx context.Context, id string, req MemoryGuessRequest) (*MemoryGuessResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrGameNotFound
	}
	now := s.clock.Now()
	guess := plainText(s.policy, req.Guess)

	game, applied, err := s.store.Update(ctx, id, func(g *models.MemoryGame) (bool, error) {
		return memorygame.Guess(g, req.Step, guess, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SessionTransition(memoryGameKind, "guess", applied)

	res := &MemoryGuessResult{Applied: applied, Game: memorygame.NewView(game)}
	for _, it := range game.Items {
		if it.Step == req.Step {
			res.Answer = it.Answer
			res.Story = it.Story
		}
	}
	res.Correct = game.Guesses[req.Step].Correct

	if applied && memorygame.Finished(game) {
		s.onFinished(game, now)
	}
	return res, nil
}

func (s *MemoryGameService) onFinished(game *models.MemoryGame, now time.Time) {
	s.metrics.SessionResolved(memoryGameKind, now.Sub(game.CreatedAt))
	score := memorygame.Score(game)

	log.Info().Str("game_id", game.ID).Int("score", score).Msg("Memory game finished")

	if game.OwnerID == nil {
		return
	}
	ownerID := *game.OwnerID
	msg := notify.Message{
		Title: "Your memories were guessed 📸",
		Body:  fmt.Sprintf("%s remembered %d of %d. %s", game.PartnerName, score, len(memorygame.Steps), memorygame.Verdict(score)),
		Data:  map[string]string{"game_id": game.ID, "kind": memoryGameKind},
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		owner, err := s.users.GetByID(ctx, ownerID)
		if err != nil || owner.PushToken == nil {
			return
		}
		err = s.notifier.Notify(ctx, *owner.PushToken, msg)
		s.metrics.PushSent("memory_finished", err == nil)
		if err != nil {
			log.Warn().Err(err).Str("game_id", game.ID).Msg("Failed to notify memory game owner")
		}
	}()
}
