package models

import "fmt"

// Bounds for a single scheduled entry, in seconds. Entries below the floor
// are too short to get into position for; entries above the cap grind.
const (
	MinEntrySeconds = 20
	MaxEntrySeconds = 120
)

// SessionRequest configures a generation run. DurationSeconds must be
// positive. A nil or empty Equipment list means every equipment type is
// available.
type SessionRequest struct {
	DurationSeconds int      `json:"duration_seconds"`
	Equipment       []string `json:"equipment,omitempty"`
}

// ScheduledExercise is one timed slot in a session plan.
type ScheduledExercise struct {
	Exercise        Exercise `json:"exercise"`
	DurationSeconds int      `json:"duration_seconds"`
}

// SessionPlan is an ordered sequence of timed slots. TotalSeconds is always
// the sum of the entry durations. Plans are treated as immutable once
// built; transformations (like skipping an entry mid-session) produce a new
// plan.
type SessionPlan struct {
	Entries      []ScheduledExercise `json:"entries"`
	TotalSeconds int                 `json:"total_seconds"`
}

// Clone returns a deep copy of the plan.
func (p *SessionPlan) Clone() *SessionPlan {
	if p == nil {
		return nil
	}
	entries := make([]ScheduledExercise, len(p.Entries))
	copy(entries, p.Entries)
	return &SessionPlan{Entries: entries, TotalSeconds: p.TotalSeconds}
}

// SumEntrySeconds recomputes the duration sum over the entries.
func (p *SessionPlan) SumEntrySeconds() int {
	var total int
	for _, e := range p.Entries {
		total += e.DurationSeconds
	}
	return total
}

// FormatClock renders a second count as zero-padded MM:SS for display.
// Negative values clamp to 00:00; minutes may exceed two digits for very
// long sessions.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
