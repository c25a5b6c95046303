package memorygame

import "love-sync-backend/internal/models"

// StepView is what a player sees of one memory. Story and answer appear only once the step is guessed.
type StepView struct {
	Step     models.MemoryStep `json:"step"`
	ImageURL string            `json:"imageUrl"`
	Question string            `json:"question"`
	Guessed  bool              `json:"guessed"`
	Guess    string            `json:"guess,omitempty"`
	Correct  *bool             `json:"correct,omitempty"`
	Answer   string            `json:"answer,omitempty"`
	Story    string            `json:"story,omitempty"`
}

// View is the public shape of a game
type View struct {
	ID          string     `json:"id"`
	CreatorName string     `json:"creatorName"`
	PartnerName string     `json:"partnerName"`
	Steps       []StepView `json:"steps"`
	Score       int        `json:"score"`
	Total       int        `json:"total"`
	Finished    bool       `json:"finished"`
	Verdict     string     `json:"verdict,omitempty"`
	Version     int64      `json:"version"`
}

// NewView builds the public shape of g with unguessed answers left out
func NewView(g *models.MemoryGame) View {
	v := View{
		ID:          g.ID,
		CreatorName: g.CreatorName,
		PartnerName: g.PartnerName,
		Steps:       make([]StepView, 0, len(g.Items)),
		Score:       Score(g),
		Total:       len(Steps),
		Finished:    Finished(g),
		Version:     g.Version,
	}
	for _, it := range g.Items {
		sv := StepView{Step: it.Step, ImageURL: it.ImageURL, Question: it.Question}
		if gs, ok := g.Guesses[it.Step]; ok {
			correct := gs.Correct
			sv.Guessed = true
			sv.Guess = gs.Guess
			sv.Correct = &correct
			sv.Answer = it.Answer
			sv.Story = it.Story
		}
		v.Steps = append(v.Steps, sv)
	}
	if v.Finished {
		v.Verdict = Verdict(v.Score)
	}
	return v
}
