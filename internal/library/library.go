// Package library defines the exercise library contract shared by the
// Postgres store and the in-memory store, plus the built-in starter
// library.
package library

import (
	"context"
	"errors"
	"sync"

	"github.com/claude/sweatbell/internal/models"
)

// ErrNotFound reports an exercise name with no library entry.
var ErrNotFound = errors.New("exercise not found")

// Store is the persistence contract for the exercise library. Both
// *storage.DB (Postgres) and *Memory satisfy it. ListExercises returns
// name-sorted exercises; ReplaceExercises swaps the whole library
// atomically. All implementations validate incoming records and reject
// invalid ones with models.ErrInvalidExerciseData.
type Store interface {
	ListExercises(ctx context.Context) ([]models.Exercise, error)
	ReplaceExercises(ctx context.Context, exercises []models.Exercise) error
	UpsertExercise(ctx context.Context, e models.Exercise) error
	DeleteExercise(ctx context.Context, name string) error
	// AdjustExerciseDifficulty shifts an exercise's difficulty by delta,
	// clamped to the valid range, and returns the stored value.
	AdjustExerciseDifficulty(ctx context.Context, name string, delta float64) (float64, error)
	CountExercises(ctx context.Context) (int64, error)
}

// Memory is a mutex-guarded in-memory Store. It backs database-less server
// mode and the timer CLI, and doubles as the test double everywhere else.
type Memory struct {
	mu        sync.Mutex
	exercises map[string]models.Exercise
}

var _ Store = (*Memory)(nil)

// NewMemory builds an in-memory store seeded with the given exercises.
// Invalid seeds are silently dropped; seed from trusted data.
func NewMemory(seed []models.Exercise) *Memory {
	m := &Memory{exercises: make(map[string]models.Exercise, len(seed))}
	for _, e := range seed {
		if models.ValidateExercise(e) == nil {
			m.exercises[e.Name] = e
		}
	}
	return m
}

// ListExercises returns the library sorted by name.
func (m *Memory) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Exercise, 0, len(m.exercises))
	for _, e := range m.exercises {
		out = append(out, e)
	}
	models.SortExercisesByName(out)
	return out, nil
}

// ReplaceExercises swaps the entire library for the given set.
func (m *Memory) ReplaceExercises(ctx context.Context, exercises []models.Exercise) error {
	if err := models.ValidateLibrary(exercises); err != nil {
		return err
	}
	next := make(map[string]models.Exercise, len(exercises))
	for _, e := range exercises {
		next[e.Name] = e
	}
	m.mu.Lock()
	m.exercises = next
	m.mu.Unlock()
	return nil
}

// UpsertExercise inserts or overwrites a single exercise.
func (m *Memory) UpsertExercise(ctx context.Context, e models.Exercise) error {
	if err := models.ValidateExercise(e); err != nil {
		return err
	}
	m.mu.Lock()
	m.exercises[e.Name] = e
	m.mu.Unlock()
	return nil
}

// DeleteExercise removes an exercise by name.
func (m *Memory) DeleteExercise(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exercises[name]; !ok {
		return ErrNotFound
	}
	delete(m.exercises, name)
	return nil
}

// AdjustExerciseDifficulty shifts the stored difficulty by delta, clamped
// to the allowed range, and returns the new value.
func (m *Memory) AdjustExerciseDifficulty(ctx context.Context, name string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exercises[name]
	if !ok {
		return 0, ErrNotFound
	}
	e.Difficulty = clampDifficulty(e.Difficulty + delta)
	m.exercises[name] = e
	return e.Difficulty, nil
}

// CountExercises reports the number of exercises in the library.
func (m *Memory) CountExercises(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.exercises)), nil
}

func clampDifficulty(v float64) float64 {
	if v < models.MinDifficulty {
		return models.MinDifficulty
	}
	if v > models.MaxDifficulty {
		return models.MaxDifficulty
	}
	return v
}
