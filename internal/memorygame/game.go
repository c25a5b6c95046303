// Package memorygame is the day two memory guessing game. One partner pins three memories
// (a place, a movie and a gift) to photos and the other guesses the answer behind each one.
// Everything here is pure; storage and clocks belong to the caller.
package memorygame

import (
	"strings"
	"time"
	"unicode/utf8"

	"love-sync-backend/internal/models"
)

// Day is the calendar day that must be unlocked to create a game
const Day = 2

const (
	MaxNameLength     = 40
	MaxQuestionLength = 120
	MaxAnswerLength   = 80
	MaxStoryLength    = 600
)

// Steps is the fixed order memories are played in
var Steps = []models.MemoryStep{models.StepPlace, models.StepMovie, models.StepGift}

var defaultQuestions = map[models.MemoryStep]string{
	models.StepPlace: "Where was this special place?",
	models.StepMovie: "What movie did we watch together?",
	models.StepGift:  "What special gift was this?",
}

// ValidStep reports whether step is one of the three memories
func ValidStep(step models.MemoryStep) bool {
	_, ok := defaultQuestions[step]
	return ok
}

// Normalize folds case and collapses whitespace so "  Marina   beach" matches "marina beach"
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// New validates a creator's memories and returns a game with them in play order.
// Each step must appear exactly once with a photo, story and answer; an empty question
// falls back to the step's default.
func New(id, creatorName, partnerName string, items []models.MemoryItem, now time.Time) (*models.MemoryGame, error) {
	creatorName = strings.TrimSpace(creatorName)
	partnerName = strings.TrimSpace(partnerName)
	if creatorName == "" || partnerName == "" ||
		utf8.RuneCountInString(creatorName) > MaxNameLength || utf8.RuneCountInString(partnerName) > MaxNameLength {
		return nil, models.ErrInvalidGame
	}
	if len(items) != len(Steps) {
		return nil, models.ErrInvalidGame
	}

	byStep := make(map[models.MemoryStep]models.MemoryItem, len(items))
	for _, it := range items {
		if !ValidStep(it.Step) {
			return nil, models.ErrInvalidGame
		}
		if _, dup := byStep[it.Step]; dup {
			return nil, models.ErrInvalidGame
		}
		it.Question = strings.TrimSpace(it.Question)
		if it.Question == "" {
			it.Question = defaultQuestions[it.Step]
		}
		it.Answer = strings.TrimSpace(it.Answer)
		it.Story = strings.TrimSpace(it.Story)
		if it.ImageURL == "" || Normalize(it.Answer) == "" || it.Story == "" {
			return nil, models.ErrInvalidGame
		}
		if utf8.RuneCountInString(it.Question) > MaxQuestionLength ||
			utf8.RuneCountInString(it.Answer) > MaxAnswerLength ||
			utf8.RuneCountInString(it.Story) > MaxStoryLength {
			return nil, models.ErrInvalidGame
		}
		byStep[it.Step] = it
	}

	ordered := make([]models.MemoryItem, 0, len(Steps))
	for _, step := range Steps {
		ordered = append(ordered, byStep[step])
	}

	return &models.MemoryGame{
		ID:          id,
		CreatorName: creatorName,
		PartnerName: partnerName,
		Items:       ordered,
		Guesses:     make(map[models.MemoryStep]models.MemoryGuess),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func item(g *models.MemoryGame, step models.MemoryStep) (models.MemoryItem, bool) {
	for _, it := range g.Items {
		if it.Step == step {
			return it, true
		}
	}
	return models.MemoryItem{}, false
}

// Guess records the partner's answer for one step. A step is write-once: guessing it again
// leaves the stored guess alone and reports false.
func Guess(g *models.MemoryGame, step models.MemoryStep, guess string, now time.Time) (bool, error) {
	it, ok := item(g, step)
	if !ok {
		return false, models.ErrInvalidChoice
	}
	guess = strings.TrimSpace(guess)
	if Normalize(guess) == "" || utf8.RuneCountInString(guess) > MaxAnswerLength {
		return false, models.ErrInvalidChoice
	}
	if _, done := g.Guesses[step]; done {
		return false, nil
	}

	if g.Guesses == nil {
		g.Guesses = make(map[models.MemoryStep]models.MemoryGuess)
	}
	g.Guesses[step] = models.MemoryGuess{
		Guess:   guess,
		Correct: Normalize(guess) == Normalize(it.Answer),
		At:      now,
	}
	g.Version++
	g.UpdatedAt = now
	return true, nil
}

// Score counts correct guesses
func Score(g *models.MemoryGame) int {
	n := 0
	for _, gs := range g.Guesses {
		if gs.Correct {
			n++
		}
	}
	return n
}

// Finished reports whether every step has a guess
func Finished(g *models.MemoryGame) bool {
	for _, step := range Steps {
		if _, ok := g.Guesses[step]; !ok {
			return false
		}
	}
	return true
}

// Verdict is the closing line for a final score
func Verdict(score int) string {
	switch score {
	case 3:
		return "You remember everything 🥹❤️"
	case 2:
		return "You remember us pretty well 💞"
	case 1:
		return "Some memories faded… but love didn't 🤍"
	}
	return "We need to make more memories together 🌙"
}
