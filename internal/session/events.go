package session

import (
	"encoding/json"

	"github.com/claude/sweatbell/internal/models"
)

// Phase is the lifecycle state of a timed session.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseRunning
	PhasePaused
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the phase as its string name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// EventType classifies controller notifications.
type EventType string

const (
	// EventTick fires once per elapsed second inside an entry.
	EventTick EventType = "tick"
	// EventPhaseChange fires on start, pause, resume, and restart.
	EventPhaseChange EventType = "phase_change"
	// EventExerciseChange fires when the session moves to another entry,
	// including after a skip rebuilds the plan.
	EventExerciseChange EventType = "exercise_change"
	// EventCompleted fires exactly once when the final entry finishes.
	EventCompleted EventType = "completed"
)

// Event is one controller notification carrying the state snapshot taken
// right after the transition it announces.
type Event struct {
	Type  EventType `json:"type"`
	State State     `json:"state"`
}

// State is an immutable snapshot of a controller. Entry is the current
// (for Completed: final) plan entry.
type State struct {
	Phase            Phase                     `json:"phase"`
	EntryIndex       int                       `json:"entry_index"`
	Entry            *models.ScheduledExercise `json:"entry,omitempty"`
	RemainingSeconds int                       `json:"remaining_seconds"`
	RemainingClock   string                    `json:"remaining_clock"`
	ElapsedSeconds   int                       `json:"elapsed_seconds"`
	ProgressPercent  int                       `json:"progress_percent"`
	PlanSeconds      int                       `json:"plan_seconds"`
	EntryCount       int                       `json:"entry_count"`
	Skipped          int                       `json:"skipped"`
}
