package models

import (
	"errors"
	"testing"
)

// TestParseLibraryFile verifies the version-1 document decodes into
// validated exercises.
func TestParseLibraryFile(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"exercises": [
			{"name": "Push-ups", "difficulty": 1.3, "equipment": []},
			{"name": "Wall Sit", "difficulty": 1.1, "equipment": ["Wall"]}
		]
	}`)

	exercises, err := ParseLibraryFile(data)
	if err != nil {
		t.Fatalf("ParseLibraryFile() error: %v", err)
	}
	if len(exercises) != 2 {
		t.Fatalf("got %d exercises, want 2", len(exercises))
	}
	if exercises[0].Name != "Push-ups" || exercises[0].Difficulty != 1.3 {
		t.Errorf("first exercise = %+v, want Push-ups/1.3", exercises[0])
	}
	if len(exercises[1].Equipment) != 1 || exercises[1].Equipment[0] != "Wall" {
		t.Errorf("Wall Sit equipment = %v, want [Wall]", exercises[1].Equipment)
	}
}

// TestParseLibraryFileRejections verifies that broken JSON, wrong field
// types, unknown versions, and invalid records are all classified as
// ErrInvalidExerciseData rather than passing partially.
func TestParseLibraryFileRejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `exercises: nope`},
		{"wrong difficulty type", `{"version":1,"exercises":[{"name":"A","difficulty":"hard","equipment":[]}]}`},
		{"unknown version", `{"version":2,"exercises":[]}`},
		{"missing version", `{"exercises":[]}`},
		{"out of range difficulty", `{"version":1,"exercises":[{"name":"A","difficulty":9,"equipment":[]}]}`},
		{"empty name", `{"version":1,"exercises":[{"name":"","difficulty":1,"equipment":[]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLibraryFile([]byte(tt.data)); !errors.Is(err, ErrInvalidExerciseData) {
				t.Errorf("ParseLibraryFile() = %v, want ErrInvalidExerciseData", err)
			}
		})
	}
}

// TestLibraryFileRoundTrip encodes a library and parses it back, checking
// the result is name-sorted and value-identical.
func TestLibraryFileRoundTrip(t *testing.T) {
	original := []Exercise{
		{Name: "Squats", Difficulty: 1.0, Equipment: []string{"None"}},
		{Name: "Burpees", Difficulty: 1.8},
		{Name: "Wall Sit", Difficulty: 1.1, Equipment: []string{"Wall"}},
	}

	data, err := EncodeLibraryFile(original)
	if err != nil {
		t.Fatalf("EncodeLibraryFile() error: %v", err)
	}
	parsed, err := ParseLibraryFile(data)
	if err != nil {
		t.Fatalf("ParseLibraryFile() error: %v", err)
	}

	wantOrder := []string{"Burpees", "Squats", "Wall Sit"}
	if len(parsed) != len(wantOrder) {
		t.Fatalf("got %d exercises, want %d", len(parsed), len(wantOrder))
	}
	for i, name := range wantOrder {
		if parsed[i].Name != name {
			t.Errorf("exercise %d = %q, want %q", i, parsed[i].Name, name)
		}
	}
	if parsed[2].Equipment[0] != "Wall" {
		t.Errorf("Wall Sit equipment lost in round trip: %v", parsed[2].Equipment)
	}
}
