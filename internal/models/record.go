package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutRecord is one finished (or abandoned) timed session, as stored in
// workout history. PlanSeconds is the plan total at the end of the session;
// ElapsedSeconds is how many seconds actually ticked. Entries snapshots the
// plan as it stood at the end, after any skip surgery.
type WorkoutRecord struct {
	ID             uuid.UUID           `json:"id"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
	PlanSeconds    int                 `json:"plan_seconds"`
	ElapsedSeconds int                 `json:"elapsed_seconds"`
	EntryCount     int                 `json:"entry_count"`
	Skipped        int                 `json:"skipped"`
	Completed      bool                `json:"completed"`
	Entries        []ScheduledExercise `json:"entries,omitempty"`
}
