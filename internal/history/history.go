// Package history keeps a local log of finished timer sessions in a
// SQLite database, so workouts run from the CLI survive without a server.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/claude/sweatbell/internal/models"
)

// DB is the local workout log. The timer CLI is its only client, so it
// makes no concurrency promises.
type DB struct {
	db *sql.DB
}

// DefaultDir returns the standard history location, ~/.sweatbell.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, ".sweatbell"), nil
}

// Open opens (or creates) the history database at dir/history.db.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS workouts (
		id              TEXT PRIMARY KEY,
		started_at      TEXT NOT NULL,
		finished_at     TEXT NOT NULL,
		plan_seconds    INTEGER NOT NULL,
		elapsed_seconds INTEGER NOT NULL,
		entry_count     INTEGER NOT NULL,
		skipped         INTEGER NOT NULL,
		completed       INTEGER NOT NULL,
		entries         TEXT NOT NULL DEFAULT '[]'
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating workouts table: %w", err)
	}

	return &DB{db: db}, nil
}

// Record appends one finished session to the log.
func (d *DB) Record(rec models.WorkoutRecord) error {
	entries, err := json.Marshal(rec.Entries)
	if err != nil {
		return fmt.Errorf("encoding entries: %w", err)
	}

	_, err = d.db.Exec(
		`INSERT OR REPLACE INTO workouts
			(id, started_at, finished_at, plan_seconds, elapsed_seconds, entry_count, skipped, completed, entries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(),
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339),
		rec.PlanSeconds,
		rec.ElapsedSeconds,
		rec.EntryCount,
		rec.Skipped,
		rec.Completed,
		string(entries),
	)
	if err != nil {
		return fmt.Errorf("inserting workout: %w", err)
	}
	return nil
}

// Recent returns up to limit workouts, newest first.
func (d *DB) Recent(limit int) ([]models.WorkoutRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.db.Query(
		`SELECT id, started_at, finished_at, plan_seconds, elapsed_seconds,
			entry_count, skipped, completed, entries
		FROM workouts ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var records []models.WorkoutRecord
	for rows.Next() {
		var rec models.WorkoutRecord
		var id, startedAt, finishedAt, entries string
		if err := rows.Scan(&id, &startedAt, &finishedAt, &rec.PlanSeconds,
			&rec.ElapsedSeconds, &rec.EntryCount, &rec.Skipped, &rec.Completed, &entries); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing workout id %q: %w", id, err)
		}
		rec.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		rec.FinishedAt, err = time.Parse(time.RFC3339, finishedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		if err := json.Unmarshal([]byte(entries), &rec.Entries); err != nil {
			return nil, fmt.Errorf("decoding entries: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}
