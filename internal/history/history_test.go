package history

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/sweatbell/internal/models"
)

func testRecord(started time.Time, completed bool) models.WorkoutRecord {
	return models.WorkoutRecord{
		ID:             uuid.New(),
		StartedAt:      started,
		FinishedAt:     started.Add(7 * time.Minute),
		PlanSeconds:    420,
		ElapsedSeconds: 420,
		EntryCount:     2,
		Skipped:        1,
		Completed:      completed,
		Entries: []models.ScheduledExercise{
			{Exercise: models.Exercise{Name: "Crunches", Difficulty: 0.7}, DurationSeconds: 120},
			{Exercise: models.Exercise{Name: "Squats", Difficulty: 1.0}, DurationSeconds: 300},
		},
	}
}

// TestHistoryRoundTrip verifies a record survives the trip through the
// database with its plan entries intact, and that Recent orders newest
// first.
func TestHistoryRoundTrip(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	older := testRecord(time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC), true)
	newer := testRecord(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC), false)
	for _, rec := range []models.WorkoutRecord{older, newer} {
		if err := db.Record(rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := db.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != newer.ID {
		t.Errorf("first record = %v, want the newer one %v", records[0].ID, newer.ID)
	}
	if records[0].Completed {
		t.Error("newer record came back completed, want abandoned")
	}

	got := records[0]
	if got.PlanSeconds != 420 || got.Skipped != 1 || got.EntryCount != 2 {
		t.Errorf("record = %+v, want the stored values back", got)
	}
	if !got.StartedAt.Equal(newer.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, newer.StartedAt)
	}
	if len(got.Entries) != 2 || got.Entries[1].Exercise.Name != "Squats" {
		t.Errorf("entries = %+v, want the stored plan", got.Entries)
	}
}

// TestHistoryRecentLimit verifies the limit caps the result and a
// non-positive limit falls back to the default.
func TestHistoryRecentLimit(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	base := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	for i := range 3 {
		if err := db.Record(testRecord(base.AddDate(0, 0, i), true)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := db.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}

	records, err = db.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("default limit: got %d records, want 3", len(records))
	}
}

// TestHistoryReopen verifies the log persists across Open/Close cycles.
func TestHistoryReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := testRecord(time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC), true)
	if err := db.Record(rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer db.Close()

	records, err := db.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 || records[0].ID != rec.ID {
		t.Errorf("after reopen: got %+v, want the stored record", records)
	}
}
