// Package session implements the workout timer state machine and the
// registry of live sessions behind the HTTP API.
package session

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/claude/sweatbell/internal/generator"
	"github.com/claude/sweatbell/internal/models"
)

// DifficultyStore is the slice of the library store the controller needs
// for difficulty write-through.
type DifficultyStore interface {
	AdjustExerciseDifficulty(ctx context.Context, name string, delta float64) (float64, error)
}

// Controller drives one workout session through its phases. All methods
// are safe for concurrent use. Time comes from an external clock calling
// Tick once per second; the controller never sleeps or schedules on its
// own, which keeps it fully deterministic under test.
//
// Operations that are invalid for the current phase are silent no-ops, so
// racing a button press against the clock never corrupts the session.
type Controller struct {
	mu sync.Mutex

	plan     *models.SessionPlan
	original *models.SessionPlan
	eligible []models.Exercise

	phase     Phase
	index     int
	remaining int
	elapsed   int
	skipped   int

	store DifficultyStore
	log   *slog.Logger

	listeners    map[int]func(Event)
	nextListener int
}

// Options configures optional controller collaborators.
type Options struct {
	// Store receives difficulty adjustments; nil disables write-through.
	Store DifficultyStore
	// Eligible is the equipment-filtered library snapshot used to pick a
	// replacement exercise when a skip has nowhere to put the leftover
	// time.
	Eligible []models.Exercise
	Log      *slog.Logger
}

// NewController builds a controller over a generated plan in the
// NotStarted phase. The plan is cloned; the caller's copy stays untouched.
func NewController(plan *models.SessionPlan, opts Options) *Controller {
	c := &Controller{
		plan:      plan.Clone(),
		original:  plan.Clone(),
		eligible:  opts.Eligible,
		store:     opts.Store,
		log:       opts.Log,
		listeners: make(map[int]func(Event)),
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if len(c.plan.Entries) > 0 {
		c.remaining = c.plan.Entries[0].DurationSeconds
	}
	return c
}

// Subscribe registers a listener for controller events and returns its
// removal function. Listeners run synchronously on the goroutine that
// triggered the transition, in transition order; they must return quickly
// and must not call back into the controller.
func (c *Controller) Subscribe(fn func(Event)) (remove func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Start begins a fresh session or resumes a paused one.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseNotStarted && c.phase != PhasePaused {
		return
	}
	if len(c.plan.Entries) == 0 {
		return
	}
	c.phase = PhaseRunning
	c.emitLocked(EventPhaseChange)
}

// Pause freezes a running session. Remaining and elapsed time hold still
// until Start resumes it.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseRunning {
		return
	}
	c.phase = PhasePaused
	c.emitLocked(EventPhaseChange)
}

// Restart re-arms the current plan from the top, back in NotStarted. Valid
// from any phase; it does not start the clock. Plan surgery from earlier
// skips is kept, so a restarted session replays the plan as it now stands.
func (c *Controller) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseNotStarted
	c.index = 0
	c.elapsed = 0
	c.remaining = 0
	if len(c.plan.Entries) > 0 {
		c.remaining = c.plan.Entries[0].DurationSeconds
	}
	c.emitLocked(EventPhaseChange)
}

// Tick advances a running session by one second. Ticks in any other phase
// are dropped, so a ticker racing a pause is harmless.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseRunning {
		return
	}

	c.elapsed++
	c.remaining--
	if c.remaining > 0 {
		c.emitLocked(EventTick)
		return
	}

	if c.index+1 < len(c.plan.Entries) {
		c.index++
		c.remaining = c.plan.Entries[c.index].DurationSeconds
		c.emitLocked(EventExerciseChange)
		return
	}

	c.remaining = 0
	c.phase = PhaseCompleted
	c.emitLocked(EventCompleted)
}

// SkipCurrent abandons the rest of the current entry. Its remaining
// seconds spread over the future entries proportionally to their
// durations; when there is no future, or bounds leave part of the time
// unplaced, a replacement exercise is appended to carry it. The skipped
// entry leaves the plan; the pre-skip plan stays available via
// OriginalPlan. Valid while Running or Paused.
func (c *Controller) SkipCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseRunning && c.phase != PhasePaused {
		return
	}
	if c.index >= len(c.plan.Entries) {
		return
	}

	leftover := c.remaining
	current := c.plan.Entries[c.index].Exercise
	future := c.plan.Entries[c.index+1:]

	var tail []models.ScheduledExercise
	if len(future) > 0 {
		target := leftover
		for _, e := range future {
			target += e.DurationSeconds
		}
		tail = make([]models.ScheduledExercise, len(future))
		copy(tail, future)
		scaleDurations(tail, target)
		generator.ReconcileTotal(tail, target)
		if placed := sumDurations(tail); placed < target {
			// every future entry is pinned at the cap
			tail = append(tail, c.replacementLocked(current, target-placed))
		}
	} else {
		tail = []models.ScheduledExercise{c.replacementLocked(current, leftover)}
	}

	entries := make([]models.ScheduledExercise, 0, c.index+len(tail))
	entries = append(entries, c.plan.Entries[:c.index]...)
	entries = append(entries, tail...)
	c.plan = &models.SessionPlan{Entries: entries}
	c.plan.TotalSeconds = c.plan.SumEntrySeconds()

	c.skipped++
	c.remaining = c.plan.Entries[c.index].DurationSeconds
	c.emitLocked(EventExerciseChange)
}

// AdjustDifficulty nudges the current exercise's stored difficulty by
// delta, clamped to the valid range by the store. The running plan is
// untouched: the change reaches future generations through the library.
// Persistence is fire-and-forget; failures are logged and never disturb
// the session. Valid while Running or Paused.
func (c *Controller) AdjustDifficulty(delta float64) {
	c.mu.Lock()
	if (c.phase != PhaseRunning && c.phase != PhasePaused) || c.index >= len(c.plan.Entries) {
		c.mu.Unlock()
		return
	}
	name := c.plan.Entries[c.index].Exercise.Name
	store, log := c.store, c.log
	c.mu.Unlock()

	if store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stored, err := store.AdjustExerciseDifficulty(ctx, name, delta)
		if err != nil {
			log.Warn("difficulty adjustment failed", "exercise", name, "delta", delta, "error", err)
			return
		}
		log.Info("difficulty adjusted", "exercise", name, "delta", delta, "difficulty", stored)
	}()
}

// Progress returns whole-percent completion of the current plan, clamped
// to [0, 100]. A skip can shrink the plan below time already spent; the
// clamp keeps the value sane.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

// State returns a consistent snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Plan returns a copy of the plan currently driving the session.
func (c *Controller) Plan() *models.SessionPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.Clone()
}

// OriginalPlan returns a copy of the plan as generated, before any skips.
func (c *Controller) OriginalPlan() *models.SessionPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.original.Clone()
}

func (c *Controller) progressLocked() int {
	total := c.plan.TotalSeconds
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(c.elapsed) / float64(total)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (c *Controller) snapshotLocked() State {
	st := State{
		Phase:            c.phase,
		EntryIndex:       c.index,
		RemainingSeconds: c.remaining,
		RemainingClock:   models.FormatClock(c.remaining),
		ElapsedSeconds:   c.elapsed,
		ProgressPercent:  c.progressLocked(),
		PlanSeconds:      c.plan.TotalSeconds,
		EntryCount:       len(c.plan.Entries),
		Skipped:          c.skipped,
	}
	if c.index < len(c.plan.Entries) {
		entry := c.plan.Entries[c.index]
		st.Entry = &entry
	}
	return st
}

func (c *Controller) emitLocked(t EventType) {
	ev := Event{Type: t, State: c.snapshotLocked()}
	for _, fn := range c.listeners {
		fn(ev)
	}
}

// replacementLocked picks the easiest eligible exercise other than the one
// being skipped, with the given duration clamped to entry bounds. A
// single-exercise library brings the same exercise back.
func (c *Controller) replacementLocked(skipping models.Exercise, seconds int) models.ScheduledExercise {
	pick := skipping
	found := false
	for _, e := range c.eligible {
		if e.Name == skipping.Name {
			continue
		}
		if !found || e.Difficulty < pick.Difficulty {
			pick = e
			found = true
		}
	}
	if seconds < models.MinEntrySeconds {
		seconds = models.MinEntrySeconds
	}
	if seconds > models.MaxEntrySeconds {
		seconds = models.MaxEntrySeconds
	}
	return models.ScheduledExercise{Exercise: pick, DurationSeconds: seconds}
}

// scaleDurations rescales entry durations proportionally toward target,
// clamping to entry bounds. ReconcileTotal settles the rounding remainder.
func scaleDurations(entries []models.ScheduledExercise, target int) {
	var sum float64
	for _, e := range entries {
		sum += float64(e.DurationSeconds)
	}
	if sum == 0 {
		return
	}
	factor := float64(target) / sum
	for i := range entries {
		scaled := float64(entries[i].DurationSeconds) * factor
		if scaled < models.MinEntrySeconds {
			scaled = models.MinEntrySeconds
		}
		if scaled > models.MaxEntrySeconds {
			scaled = models.MaxEntrySeconds
		}
		entries[i].DurationSeconds = int(math.Round(scaled))
	}
}

func sumDurations(entries []models.ScheduledExercise) int {
	var sum int
	for _, e := range entries {
		sum += e.DurationSeconds
	}
	return sum
}
