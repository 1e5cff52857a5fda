// Package coach runs a generated workout plan as an interactive countdown
// in the terminal, driving a session controller off a wall-clock ticker
// and line-mode stdin commands.
package coach

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/sweatbell/internal/library"
	"github.com/claude/sweatbell/internal/models"
	"github.com/claude/sweatbell/internal/session"
)

// difficultyStep is how much one +/- keypress moves the current
// exercise's difficulty.
const difficultyStep = 0.1

// Coach owns one interactive run: it ticks the controller once per
// interval, applies stdin commands, and repaints a status line.
type Coach struct {
	ctrl *session.Controller
	in   io.Reader
	out  io.Writer
	log  *slog.Logger

	// TickInterval is the wall clock driving the session; 0 means one
	// second. Only tests change it.
	TickInterval time.Duration

	lastIndex int
}

// New builds a Coach over a controller. Input is read line by line, so
// commands are a letter followed by Enter.
func New(ctrl *session.Controller, in io.Reader, out io.Writer, log *slog.Logger) *Coach {
	return &Coach{ctrl: ctrl, in: in, out: out, log: log, lastIndex: -1}
}

// ResolveLibrary picks the exercise library for a run: the server when one
// is configured, then a library file, then the embedded defaults. Each
// fallback logs a warning rather than aborting the workout.
func ResolveLibrary(serverURL, filePath string, log *slog.Logger) []models.Exercise {
	if serverURL != "" {
		exercises, err := NewClient(serverURL).FetchLibrary()
		if err == nil {
			return exercises
		}
		log.Warn("server library unavailable, falling back", "server", serverURL, "error", err)
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			log.Warn("library file unreadable, falling back", "path", filePath, "error", err)
		} else {
			exercises, err := models.ParseLibraryFile(data)
			if err == nil {
				return exercises
			}
			log.Warn("library file invalid, falling back", "path", filePath, "error", err)
		}
	}
	return library.Defaults()
}

// PrintPlan writes the plan as a numbered list with durations.
func PrintPlan(w io.Writer, plan *models.SessionPlan) {
	fmt.Fprintf(w, "Workout plan, %s total:\n", models.FormatClock(plan.TotalSeconds))
	for i, e := range plan.Entries {
		fmt.Fprintf(w, "  %2d. %-24s %s\n", i+1, e.Exercise.Name, models.FormatClock(e.DurationSeconds))
	}
}

// Run starts the session and blocks until it completes, the user quits,
// or the context is canceled. It returns the record of what happened.
func (c *Coach) Run(ctx context.Context) models.WorkoutRecord {
	interval := c.TickInterval
	if interval <= 0 {
		interval = time.Second
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	startedAt := time.Now()
	c.ctrl.Start()
	c.render(c.ctrl.State())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := false
	for !quit {
		select {
		case <-ctx.Done():
			quit = true
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep ticking
				lines = nil
				continue
			}
			quit = c.handleCommand(line)
		case <-ticker.C:
			c.ctrl.Tick()
		}

		st := c.ctrl.State()
		c.render(st)
		if st.Phase == session.PhaseCompleted {
			break
		}
	}

	st := c.ctrl.State()
	plan := c.ctrl.Plan()
	rec := models.WorkoutRecord{
		ID:             uuid.New(),
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
		PlanSeconds:    plan.TotalSeconds,
		ElapsedSeconds: st.ElapsedSeconds,
		EntryCount:     len(plan.Entries),
		Skipped:        st.Skipped,
		Completed:      st.Phase == session.PhaseCompleted,
		Entries:        plan.Entries,
	}
	c.printSummary(rec)
	return rec
}

// handleCommand applies one stdin command and reports whether to quit.
func (c *Coach) handleCommand(cmd string) bool {
	switch cmd {
	case "p":
		c.ctrl.Pause()
	case "r":
		c.ctrl.Start()
	case "s":
		c.ctrl.SkipCurrent()
	case "+":
		c.ctrl.AdjustDifficulty(difficultyStep)
	case "-":
		c.ctrl.AdjustDifficulty(-difficultyStep)
	case "q":
		return true
	case "":
	default:
		fmt.Fprintf(c.out, "\ncommands: p pause, r resume, s skip, + harder, - easier, q quit\n")
	}
	return false
}

// render announces entry changes on their own line and repaints the
// carriage-returned status line.
func (c *Coach) render(st session.State) {
	if st.Entry != nil && st.EntryIndex != c.lastIndex {
		if c.lastIndex >= 0 {
			fmt.Fprintln(c.out)
		}
		fmt.Fprintf(c.out, "%s for %s\n", st.Entry.Exercise.Name, models.FormatClock(st.Entry.DurationSeconds))
		c.lastIndex = st.EntryIndex
	}

	name := ""
	if st.Entry != nil {
		name = st.Entry.Exercise.Name
	}
	marker := ""
	if st.Phase == session.PhasePaused {
		marker = " [paused]"
	}
	pos := st.EntryIndex + 1
	if pos > st.EntryCount {
		pos = st.EntryCount
	}
	fmt.Fprintf(c.out, "\r[%d/%d] %-24s %s left  %3d%%%s ",
		pos, st.EntryCount, name, st.RemainingClock, st.ProgressPercent, marker)
}

func (c *Coach) printSummary(rec models.WorkoutRecord) {
	fmt.Fprint(c.out, "\n\n")
	if rec.Completed {
		fmt.Fprintln(c.out, "Workout complete!")
	} else {
		fmt.Fprintln(c.out, "Workout ended early.")
	}
	fmt.Fprintf(c.out, "  time:      %s of %s planned\n",
		models.FormatClock(rec.ElapsedSeconds), models.FormatClock(rec.PlanSeconds))
	fmt.Fprintf(c.out, "  exercises: %d", rec.EntryCount)
	if rec.Skipped > 0 {
		fmt.Fprintf(c.out, " (%d skipped)", rec.Skipped)
	}
	fmt.Fprintln(c.out)
}
