package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/claude/sweatbell/internal/library"
	"github.com/claude/sweatbell/internal/models"
)

// Compile-time check: *DB is a library.Store.
var _ library.Store = (*DB)(nil)

// ListExercises returns the full exercise library sorted by name.
func (db *DB) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT name, difficulty, equipment FROM exercises ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		var e models.Exercise
		if err := rows.Scan(&e.Name, &e.Difficulty, &e.Equipment); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// ReplaceExercises swaps the entire library for the given set atomically.
// The incoming set is validated as a whole first; a bad record rejects the
// whole replacement and the stored library is untouched.
func (db *DB) ReplaceExercises(ctx context.Context, exercises []models.Exercise) error {
	if err := models.ValidateLibrary(exercises); err != nil {
		return err
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM exercises`); err != nil {
		return fmt.Errorf("clearing exercises: %w", err)
	}
	if len(exercises) > 0 {
		query := `INSERT INTO exercises (name, difficulty, equipment) VALUES `
		args := make([]any, 0, len(exercises)*3)
		valueStrings := make([]string, 0, len(exercises))
		for i, e := range exercises {
			base := i * 3
			valueStrings = append(valueStrings, fmt.Sprintf("($%d,$%d,$%d)", base+1, base+2, base+3))
			args = append(args, e.Name, e.Difficulty, equipmentColumn(e))
		}
		if _, err := tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
			return fmt.Errorf("inserting exercises: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing replace: %w", err)
	}
	return nil
}

// UpsertExercise inserts or overwrites a single exercise by name.
func (db *DB) UpsertExercise(ctx context.Context, e models.Exercise) error {
	if err := models.ValidateExercise(e); err != nil {
		return err
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO exercises (name, difficulty, equipment)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
			SET difficulty = EXCLUDED.difficulty, equipment = EXCLUDED.equipment
	`, e.Name, e.Difficulty, equipmentColumn(e))
	if err != nil {
		return fmt.Errorf("upserting exercise: %w", err)
	}
	return nil
}

// DeleteExercise removes an exercise by name.
func (db *DB) DeleteExercise(ctx context.Context, name string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM exercises WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting exercise: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return library.ErrNotFound
	}
	return nil
}

// AdjustExerciseDifficulty shifts an exercise's difficulty by delta,
// clamped to the valid range, and returns the stored value.
func (db *DB) AdjustExerciseDifficulty(ctx context.Context, name string, delta float64) (float64, error) {
	var difficulty float64
	err := db.Pool.QueryRow(ctx, `
		UPDATE exercises
		SET difficulty = LEAST($3, GREATEST($2, difficulty + $1))
		WHERE name = $4
		RETURNING difficulty
	`, delta, models.MinDifficulty, models.MaxDifficulty, name).Scan(&difficulty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, library.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("adjusting difficulty: %w", err)
	}
	return difficulty, nil
}

// CountExercises reports the number of exercises in the library.
func (db *DB) CountExercises(ctx context.Context) (int64, error) {
	var n int64
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM exercises`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting exercises: %w", err)
	}
	return n, nil
}

// SeedExercises inserts the given exercises, skipping names that already
// exist. Used for first-run population and merge-mode imports; idempotent.
// Returns the number of rows actually inserted.
func (db *DB) SeedExercises(ctx context.Context, exercises []models.Exercise) (int64, error) {
	if err := models.ValidateLibrary(exercises); err != nil {
		return 0, err
	}
	var inserted int64
	for _, e := range exercises {
		tag, err := db.Pool.Exec(ctx, `
			INSERT INTO exercises (name, difficulty, equipment)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING
		`, e.Name, e.Difficulty, equipmentColumn(e))
		if err != nil {
			return inserted, fmt.Errorf("seeding exercise %q: %w", e.Name, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// equipmentColumn normalizes nil equipment to an empty array so the
// NOT NULL column round-trips cleanly.
func equipmentColumn(e models.Exercise) []string {
	if e.Equipment == nil {
		return []string{}
	}
	return e.Equipment
}
