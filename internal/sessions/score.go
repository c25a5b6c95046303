package sessions

import (
	"math"
	"time"
)

const (
	// perfectSyncWindow is the snap difference still counted as perfectly in sync
	perfectSyncWindow = 20 * time.Millisecond
	// scoreDecay is the e-folding distance of the score curve beyond the perfect window
	scoreDecay = 400 * time.Millisecond

	// maxDeltaMillis is the largest millisecond gap a time.Duration can hold
	maxDeltaMillis = math.MaxInt64 / int64(time.Millisecond)
)

// Score maps the absolute difference between two snaps to a 0..100 compatibility percentage.
// It is non-increasing in delta.
func Score(delta time.Duration) int {
	if delta < 0 {
		delta = -delta
		if delta < 0 {
			return 0
		}
	}
	if delta <= perfectSyncWindow {
		return 100
	}
	excess := float64(delta-perfectSyncWindow) / float64(scoreDecay)
	score := int(math.Floor(100 * math.Exp(-excess)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ScoreMillis scores a gap given in milliseconds. Gaps too wide for a time.Duration score 0.
func ScoreMillis(deltaMillis int64) int {
	if deltaMillis < 0 {
		deltaMillis = -deltaMillis
	}
	if deltaMillis < 0 || deltaMillis > maxDeltaMillis {
		return 0
	}
	return Score(time.Duration(deltaMillis) * time.Millisecond)
}

// Band is the human label for a score, matching the result screen copy
func Band(score int) string {
	switch {
	case score >= 100:
		return "We literally act at the same moment."
	case score >= 90:
		return "You two just click naturally."
	case score >= 70:
		return "Your timing is adorable."
	case score >= 40:
		return "Still learning each other 😄"
	}
	return "Opposites attract 💞"
}
