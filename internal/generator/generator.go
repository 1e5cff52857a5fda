// Package generator builds workout session plans from an exercise library.
// Generation is pure and deterministic: the same request against the same
// library always yields the same plan, with no randomness and no clock.
package generator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/claude/sweatbell/internal/models"
)

// Sentinel errors, matched with errors.Is by the HTTP and CLI layers.
var (
	// ErrInvalidConfiguration rejects unusable session requests (non-positive
	// durations, or sub-minimum durations under the reject policy).
	ErrInvalidConfiguration = errors.New("invalid session configuration")

	// ErrEmptyLibrary means no exercise survived the equipment filter.
	ErrEmptyLibrary = errors.New("no eligible exercises")
)

// ShortSessionPolicy decides what happens when the requested duration is
// shorter than a single minimum-length entry.
type ShortSessionPolicy string

const (
	// ShortSessionExtend produces one minimum-length entry; the plan total
	// then exceeds the request. This is the default.
	ShortSessionExtend ShortSessionPolicy = "extend"
	// ShortSessionReject refuses such requests with ErrInvalidConfiguration.
	ShortSessionReject ShortSessionPolicy = "reject"
)

// Generator produces session plans. The zero value extends short sessions.
type Generator struct {
	ShortSession ShortSessionPolicy
}

const timeEpsilon = 1e-9

// Generate builds a plan for the request from the given library. The input
// library is not modified. Validation is all-or-nothing: any invalid record
// fails the whole run before selection starts.
//
// The plan conserves the requested duration exactly (sum of entry durations
// equals the request), with one documented exception: requests shorter than
// the per-entry minimum under the extend policy produce a single
// minimum-length entry.
func (g *Generator) Generate(req models.SessionRequest, exercises []models.Exercise) (*models.SessionPlan, error) {
	if req.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: duration %d must be positive", ErrInvalidConfiguration, req.DurationSeconds)
	}
	if g.ShortSession == ShortSessionReject && req.DurationSeconds < models.MinEntrySeconds {
		return nil, fmt.Errorf("%w: duration %ds is below the %ds minimum entry length",
			ErrInvalidConfiguration, req.DurationSeconds, models.MinEntrySeconds)
	}
	if err := models.ValidateLibrary(exercises); err != nil {
		return nil, err
	}

	eligible := Eligible(exercises, req.Equipment)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: nothing in the library satisfies the equipment filter", ErrEmptyLibrary)
	}

	ordered := make([]models.Exercise, len(eligible))
	copy(ordered, eligible)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Difficulty < ordered[j].Difficulty
	})

	entries := allocate(selectInstances(ordered, req.DurationSeconds), req.DurationSeconds)
	ReconcileTotal(entries, req.DurationSeconds)
	shape(entries)

	plan := &models.SessionPlan{Entries: entries}
	plan.TotalSeconds = plan.SumEntrySeconds()
	return plan, nil
}

// Eligible returns the exercises performable with the given equipment
// filter, preserving input order. An empty filter allows everything.
func Eligible(exercises []models.Exercise, filter []string) []models.Exercise {
	var out []models.Exercise
	for _, e := range exercises {
		if e.MatchesEquipment(filter) {
			out = append(out, e)
		}
	}
	return out
}

// selectInstances walks the difficulty-ordered exercises round-robin,
// appending one instance per exercise per pass, and stops as soon as the
// clamped proportional allocation of the selection covers the requested
// duration. An exercise whose proportional share would blow past the
// per-entry cap therefore recurs on later passes instead of producing an
// oversized entry, and no exercise repeats before the whole rotation has
// appeared.
func selectInstances(ordered []models.Exercise, total int) []models.Exercise {
	var selected []models.Exercise
	for {
		for _, e := range ordered {
			selected = append(selected, e)
			if clampedSum(selected, total) >= float64(total)-timeEpsilon {
				return selected
			}
		}
	}
}

// clampedSum computes the time the selection would occupy after
// proportional allocation with per-entry clamping. Grows by at least the
// entry minimum per instance, so selection always terminates.
func clampedSum(selected []models.Exercise, total int) float64 {
	var weight float64
	for _, e := range selected {
		weight += e.Difficulty
	}
	var sum float64
	for _, e := range selected {
		sum += clampSeconds(float64(total) * e.Difficulty / weight)
	}
	return sum
}

func clampSeconds(v float64) float64 {
	if v < models.MinEntrySeconds {
		return models.MinEntrySeconds
	}
	if v > models.MaxEntrySeconds {
		return models.MaxEntrySeconds
	}
	return v
}

// allocate assigns each selected instance a whole-second duration
// proportional to its difficulty share, clamped to the entry bounds.
func allocate(selected []models.Exercise, total int) []models.ScheduledExercise {
	var weight float64
	for _, e := range selected {
		weight += e.Difficulty
	}
	entries := make([]models.ScheduledExercise, len(selected))
	for i, e := range selected {
		raw := float64(total) * e.Difficulty / weight
		entries[i] = models.ScheduledExercise{
			Exercise:        e,
			DurationSeconds: int(math.Round(clampSeconds(raw))),
		}
	}
	return entries
}

// ReconcileTotal nudges entry durations one second at a time until their
// sum matches target, visiting entries lowest difficulty first and wrapping
// as needed. No entry ever leaves the [MinEntrySeconds, MaxEntrySeconds]
// bounds; if every entry is pinned at the relevant bound the residue stays.
// Shared with mid-session redistribution after a skip.
func ReconcileTotal(entries []models.ScheduledExercise, target int) {
	delta := target
	for _, e := range entries {
		delta -= e.DurationSeconds
	}
	if delta == 0 || len(entries) == 0 {
		return
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entries[order[a]].Exercise.Difficulty < entries[order[b]].Exercise.Difficulty
	})

	for delta != 0 {
		moved := false
		for _, idx := range order {
			if delta == 0 {
				break
			}
			switch d := entries[idx].DurationSeconds; {
			case delta > 0 && d < models.MaxEntrySeconds:
				entries[idx].DurationSeconds = d + 1
				delta--
				moved = true
			case delta < 0 && d > models.MinEntrySeconds:
				entries[idx].DurationSeconds = d - 1
				delta++
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}

// shape gives the plan its warm-up/cool-down profile: selection order
// already leads with the lowest-difficulty entry, so shaping decides the
// closing slot. The next-lowest entry is preferred there, falling back to
// the highest; a candidate is discarded if moving it would put two
// instances of the same exercise side by side or let an exercise repeat
// before the rest of the rotation has appeared. Plans with fewer than three
// entries, or with uniform difficulty, keep their selection order.
func shape(entries []models.ScheduledExercise) {
	n := len(entries)
	if n < 3 || uniformDifficulty(entries) {
		return
	}

	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return entries[idxs[a]].Exercise.Difficulty < entries[idxs[b]].Exercise.Difficulty
	})

	for _, lastIdx := range []int{idxs[1], idxs[n-1]} {
		candidate := moveToEnd(entries, lastIdx)
		if shapeValid(candidate) {
			copy(entries, candidate)
			return
		}
	}
}

// moveToEnd returns a copy of entries with entries[idx] relocated to the
// final slot, everything else keeping its relative order.
func moveToEnd(entries []models.ScheduledExercise, idx int) []models.ScheduledExercise {
	out := make([]models.ScheduledExercise, 0, len(entries))
	for i, e := range entries {
		if i == idx {
			continue
		}
		out = append(out, e)
	}
	return append(out, entries[idx])
}

// shapeValid checks the ordering invariants on a candidate arrangement:
// no same exercise in adjacent slots (waived when the selection holds only
// one distinct exercise), and no exercise repeating before every distinct
// exercise in the selection has appeared once.
func shapeValid(entries []models.ScheduledExercise) bool {
	distinct := make(map[string]bool, len(entries))
	for _, e := range entries {
		distinct[e.Exercise.Name] = true
	}

	if len(distinct) > 1 {
		for i := 1; i < len(entries); i++ {
			if entries[i].Exercise.Name == entries[i-1].Exercise.Name {
				return false
			}
		}
	}

	seen := make(map[string]bool, len(distinct))
	for _, e := range entries {
		if seen[e.Exercise.Name] && len(seen) < len(distinct) {
			return false
		}
		seen[e.Exercise.Name] = true
	}
	return true
}

func uniformDifficulty(entries []models.ScheduledExercise) bool {
	for _, e := range entries[1:] {
		if e.Exercise.Difficulty != entries[0].Exercise.Difficulty {
			return false
		}
	}
	return true
}
