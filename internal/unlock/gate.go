// Package unlock decides when calendar-gated content becomes visible to a viewer.
package unlock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"love-sync-backend/internal/models"
)

// DefaultAnnounceWindow is how long after an unlock instant a "just unlocked" signal may still fire
const DefaultAnnounceWindow = 5 * time.Minute

// Decision is the visibility of one day for one viewer at one instant
type Decision struct {
	Day             int           `json:"day"`
	Visible         bool          `json:"visible"`
	Remaining       time.Duration `json:"-"`
	RemainingSecs   int64         `json:"remainingSeconds,omitempty"`
	Display         string        `json:"display,omitempty"`
	RequiresPremium bool          `json:"requiresPremium,omitempty"`
}

// Evaluate is a pure function of its inputs; callers supply now and re-invoke it on a timer.
func Evaluate(role models.ViewerRole, day models.ContentDay, now time.Time) Decision {
	d := Decision{Day: day.Day}

	if role == models.RolePremiumCouple {
		d.Visible = true
		return d
	}

	if day.PremiumOnly {
		d.RequiresPremium = true
		return d
	}

	remaining := day.UnlockAt.Sub(now)
	if remaining <= 0 {
		d.Visible = true
		return d
	}

	d.Remaining = remaining
	d.RemainingSecs = int64((remaining + time.Second - 1) / time.Second)
	d.Display = FormatRemaining(remaining)
	return d
}

// FormatRemaining renders the largest two non-zero units among days, hours and minutes.
// Partial minutes round up so a locked day never reads "0m".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return ""
	}

	mins := int64((d + time.Minute - 1) / time.Minute)
	units := []struct {
		value  int64
		suffix string
	}{
		{mins / (24 * 60), "d"},
		{(mins / 60) % 24, "h"},
		{mins % 60, "m"},
	}

	parts := make([]string, 0, 2)
	for _, u := range units {
		if u.value == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", u.value, u.suffix))
		if len(parts) == 2 {
			break
		}
	}
	return strings.Join(parts, " ")
}

// Calendar is the static, ordered list of content days
type Calendar struct {
	days []models.ContentDay
}

// NewCalendar copies and orders days by index
func NewCalendar(days []models.ContentDay) *Calendar {
	sorted := make([]models.ContentDay, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Day < sorted[j].Day })
	return &Calendar{days: sorted}
}

// Days returns the calendar entries in order
func (c *Calendar) Days() []models.ContentDay {
	out := make([]models.ContentDay, len(c.days))
	copy(out, c.days)
	return out
}

// Day looks up a day by its 1-based index
func (c *Calendar) Day(n int) (models.ContentDay, bool) {
	for _, d := range c.days {
		if d.Day == n {
			return d, true
		}
	}
	return models.ContentDay{}, false
}

// EvaluateAll evaluates every day for role at now
func (c *Calendar) EvaluateAll(role models.ViewerRole, now time.Time) []Decision {
	out := make([]Decision, 0, len(c.days))
	for _, d := range c.days {
		out = append(out, Evaluate(role, d, now))
	}
	return out
}

// Detector turns successive decisions into one-shot "just unlocked" signals.
// A signal fires at most once per day, and only inside the announce window after the unlock instant.
type Detector struct {
	window time.Duration

	mu    sync.Mutex
	seen  map[int]bool
	fired map[int]bool
}

// NewDetector creates a detector; a non-positive window uses DefaultAnnounceWindow
func NewDetector(window time.Duration) *Detector {
	if window <= 0 {
		window = DefaultAnnounceWindow
	}
	return &Detector{
		window: window,
		seen:   make(map[int]bool),
		fired:  make(map[int]bool),
	}
}

// Observe records the decision for day and reports whether it is a fresh unlock
func (d *Detector) Observe(day models.ContentDay, dec Decision, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, known := d.seen[day.Day]
	d.seen[day.Day] = dec.Visible

	if !dec.Visible || d.fired[day.Day] {
		return false
	}
	if known && prev {
		return false
	}
	if now.Before(day.UnlockAt) || !now.Before(day.UnlockAt.Add(d.window)) {
		return false
	}

	d.fired[day.Day] = true
	return true
}
