// Package models defines the exercise library and session plan types shared
// by the generator, the session controller, storage, and the HTTP API.
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidExerciseData marks exercise records that fail validation:
// empty names, difficulties outside the allowed range, malformed equipment.
var ErrInvalidExerciseData = errors.New("invalid exercise data")

// Difficulty bounds. Values outside this range are rejected everywhere.
const (
	MinDifficulty = 0.5
	MaxDifficulty = 2.0
)

// EquipmentNone is the reserved equipment marker for bodyweight exercises.
// An equipment list that is empty or contains only this marker means the
// exercise needs nothing.
const EquipmentNone = "None"

// Exercise is one library entry. Name is the identity; difficulty scales
// how much session time the exercise receives relative to its peers.
type Exercise struct {
	Name       string   `json:"name"`
	Difficulty float64  `json:"difficulty"`
	Equipment  []string `json:"equipment"`
}

// NeedsEquipment reports whether the exercise requires any real equipment.
func (e Exercise) NeedsEquipment() bool {
	for _, item := range e.Equipment {
		if item != EquipmentNone {
			return true
		}
	}
	return false
}

// MatchesEquipment reports whether the exercise can be performed given the
// available equipment. A nil or empty filter means all equipment is
// available. Exercises that need no equipment always match; otherwise every
// required item must appear in the filter.
func (e Exercise) MatchesEquipment(filter []string) bool {
	if !e.NeedsEquipment() || len(filter) == 0 {
		return true
	}
	available := make(map[string]bool, len(filter))
	for _, item := range filter {
		available[item] = true
	}
	for _, item := range e.Equipment {
		if item == EquipmentNone {
			continue
		}
		if !available[item] {
			return false
		}
	}
	return true
}

// ValidateExercise checks a single exercise record. All failures wrap
// ErrInvalidExerciseData so callers can classify them with errors.Is.
func ValidateExercise(e Exercise) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: exercise name is empty", ErrInvalidExerciseData)
	}
	// The negated form also rejects NaN.
	if !(e.Difficulty >= MinDifficulty && e.Difficulty <= MaxDifficulty) {
		return fmt.Errorf("%w: difficulty %v for %q outside [%v, %v]",
			ErrInvalidExerciseData, e.Difficulty, e.Name, MinDifficulty, MaxDifficulty)
	}
	for _, item := range e.Equipment {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%w: empty equipment entry for %q", ErrInvalidExerciseData, e.Name)
		}
	}
	return nil
}

// ValidateLibrary checks every record and rejects duplicate names.
// Validation is all-or-nothing: the first failure is returned and nothing
// is considered accepted.
func ValidateLibrary(exercises []Exercise) error {
	seen := make(map[string]bool, len(exercises))
	for _, e := range exercises {
		if err := ValidateExercise(e); err != nil {
			return err
		}
		if seen[e.Name] {
			return fmt.Errorf("%w: duplicate exercise name %q", ErrInvalidExerciseData, e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// SortExercisesByName orders a library alphabetically in place. Listings and
// exports use this as the canonical order.
func SortExercisesByName(exercises []Exercise) {
	sort.Slice(exercises, func(i, j int) bool {
		return exercises[i].Name < exercises[j].Name
	})
}
