package sessions

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"love-sync-backend/internal/models"
)

const (
	MaxNameLength     = 40
	MaxProposalLength = 2000
	MaxLetterWords    = 500
)

// Roses is the fixed rose catalog, indexed from 1
var Roses = []models.Rose{
	{ID: 1, Name: "Crimson Desire", Color: "#e63946", Message: "My love for you is deep, passionate, and grows stronger every day."},
	{ID: 2, Name: "Blush Grace", Color: "#ff85a1", Message: "You bring a gentleness and beauty to my life that I treasure above all."},
	{ID: 3, Name: "Pure Serenity", Color: "#f8f9fa", Message: "In you, I have found a peace and purity that feels like home."},
	{ID: 4, Name: "Golden Joy", Color: "#ffb703", Message: "You are the sunlight in my darkest days and my favorite reason to smile."},
	{ID: 5, Name: "Royal Mystery", Color: "#7209b7", Message: "Every day with you is a new chapter of enchantment I never want to end."},
}

// Reactions are the replies a letter recipient can send back
var Reactions = []string{"❤️", "🥹", "😭", "🥰"}

// Proposal answers
const (
	AnswerYes = "YES"
	AnswerNo  = "NO"
)

// RoseByID looks up a rose from the catalog
func RoseByID(id int) (models.Rose, bool) {
	if id < 1 || id > len(Roses) {
		return models.Rose{}, false
	}
	return Roses[id-1], true
}

// DayFor maps a session kind to the calendar day that must be unlocked to create it
func DayFor(kind models.SessionKind) int {
	switch kind {
	case models.KindRose, models.KindLetter:
		return 1
	case models.KindProposal:
		return 2
	case models.KindChocolate:
		return 3
	}
	return 0
}

// SharePath is the client route a responder opens for a session
func SharePath(kind models.SessionKind, id string) string {
	switch kind {
	case models.KindRose:
		return "/games/day1/rose-picker/invite/" + id
	case models.KindLetter:
		return "/games/day1/rose-letter/" + id
	case models.KindProposal:
		return "/games/day2/propose/" + id
	case models.KindChocolate:
		return "/games/day3/chocolate-sync/" + id
	}
	return ""
}

// ValidKind reports whether kind is one of the supported games
func ValidKind(kind models.SessionKind) bool {
	return DayFor(kind) != 0
}

func normalizeRose(choice string) (string, error) {
	id, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil {
		return "", models.ErrInvalidChoice
	}
	if _, ok := RoseByID(id); !ok {
		return "", models.ErrInvalidChoice
	}
	return strconv.Itoa(id), nil
}

func normalizeName(choice string) (string, error) {
	name := strings.TrimSpace(choice)
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxNameLength {
		return "", models.ErrInvalidChoice
	}
	return name, nil
}

func normalizeInitiator(kind models.SessionKind, choice string) (string, error) {
	switch kind {
	case models.KindRose:
		return normalizeRose(choice)
	case models.KindChocolate:
		return normalizeName(choice)
	case models.KindProposal:
		msg := strings.TrimSpace(choice)
		if msg == "" || utf8.RuneCountInString(msg) > MaxProposalLength {
			return "", models.ErrInvalidChoice
		}
		return msg, nil
	case models.KindLetter:
		text := strings.TrimSpace(choice)
		words := len(strings.Fields(text))
		if words == 0 || words > MaxLetterWords {
			return "", models.ErrInvalidChoice
		}
		return text, nil
	}
	return "", models.ErrWrongKind
}

func normalizeResponder(kind models.SessionKind, choice string) (string, error) {
	switch kind {
	case models.KindRose:
		return normalizeRose(choice)
	case models.KindChocolate:
		return normalizeName(choice)
	case models.KindProposal:
		answer := strings.ToUpper(strings.TrimSpace(choice))
		if answer != AnswerYes && answer != AnswerNo {
			return "", models.ErrInvalidChoice
		}
		return answer, nil
	case models.KindLetter:
		reaction := strings.TrimSpace(choice)
		for _, r := range Reactions {
			if r == reaction {
				return reaction, nil
			}
		}
		return "", models.ErrInvalidChoice
	}
	return "", models.ErrWrongKind
}
