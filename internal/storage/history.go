package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claude/sweatbell/internal/models"
	"github.com/claude/sweatbell/internal/session"
)

// Compile-time check: *DB can receive finished sessions from the manager.
var _ session.HistoryRecorder = (*DB)(nil)

// RecordWorkout inserts one workout history row. Re-recording the same
// session ID is a no-op.
func (db *DB) RecordWorkout(ctx context.Context, rec models.WorkoutRecord) error {
	entriesJSON, err := json.Marshal(rec.Entries)
	if err != nil {
		return fmt.Errorf("encoding plan entries: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO workout_history (id, started_at, finished_at, plan_seconds,
			elapsed_seconds, entry_count, skipped, completed, entries)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT DO NOTHING
	`, rec.ID, rec.StartedAt, rec.FinishedAt, rec.PlanSeconds,
		rec.ElapsedSeconds, rec.EntryCount, rec.Skipped, rec.Completed, entriesJSON)
	if err != nil {
		return fmt.Errorf("inserting workout: %w", err)
	}
	return nil
}

// QueryWorkoutHistory returns the most recent workouts, newest first.
// A non-positive limit defaults to 20; the ceiling is 500.
func (db *DB) QueryWorkoutHistory(ctx context.Context, limit int) ([]models.WorkoutRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, started_at, finished_at, plan_seconds, elapsed_seconds,
			entry_count, skipped, completed, entries
		FROM workout_history
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying workout history: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutRecord
	for rows.Next() {
		var rec models.WorkoutRecord
		var entriesJSON []byte
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.PlanSeconds,
			&rec.ElapsedSeconds, &rec.EntryCount, &rec.Skipped, &rec.Completed, &entriesJSON); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		if len(entriesJSON) > 0 {
			if err := json.Unmarshal(entriesJSON, &rec.Entries); err != nil {
				return nil, fmt.Errorf("decoding plan entries: %w", err)
			}
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// WorkoutStats holds aggregate statistics over recorded workout history.
type WorkoutStats struct {
	TotalWorkouts     int64          `json:"total_workouts"`
	CompletedWorkouts int64          `json:"completed_workouts"`
	TotalSeconds      int64          `json:"total_seconds"`
	TotalSkips        int64          `json:"total_skips"`
	FirstWorkout      *time.Time     `json:"first_workout"`
	LastWorkout       *time.Time     `json:"last_workout"`
	TopExercises      []ExerciseStat `json:"top_exercises"`
}

// ExerciseStat summarizes how often one exercise appeared in recorded
// plans and how much time it was scheduled for.
type ExerciseStat struct {
	Name             string `json:"name"`
	Appearances      int64  `json:"appearances"`
	ScheduledSeconds int64  `json:"scheduled_seconds"`
}

// GetWorkoutStats returns aggregate statistics for the workout history.
func (db *DB) GetWorkoutStats(ctx context.Context) (*WorkoutStats, error) {
	stats := &WorkoutStats{}

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE completed),
			COALESCE(SUM(elapsed_seconds), 0),
			COALESCE(SUM(skipped), 0),
			MIN(started_at), MAX(started_at)
		FROM workout_history
	`).Scan(&stats.TotalWorkouts, &stats.CompletedWorkouts, &stats.TotalSeconds,
		&stats.TotalSkips, &stats.FirstWorkout, &stats.LastWorkout)
	if err != nil {
		return nil, fmt.Errorf("aggregating workouts: %w", err)
	}

	// Most scheduled exercises across all recorded plans
	rows, err := db.Pool.Query(ctx, `
		SELECT entry->'exercise'->>'name' AS name,
			COUNT(*),
			COALESCE(SUM((entry->>'duration_seconds')::bigint), 0)
		FROM workout_history, jsonb_array_elements(entries) AS entry
		GROUP BY name
		ORDER BY COUNT(*) DESC, name ASC
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("querying top exercises: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseStat
		if err := rows.Scan(&s.Name, &s.Appearances, &s.ScheduledSeconds); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		stats.TopExercises = append(stats.TopExercises, s)
	}
	return stats, rows.Err()
}
