package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/sweatbell/internal/generator"
	"github.com/claude/sweatbell/internal/library"
	"github.com/claude/sweatbell/internal/models"
)

var (
	// ErrSessionNotFound reports an unknown live session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions reports the active-session cap.
	ErrTooManySessions = errors.New("active session limit reached")
)

// HistoryRecorder receives finished and abandoned sessions. A nil recorder
// disables history. Implementations must be safe for concurrent use.
type HistoryRecorder interface {
	RecordWorkout(ctx context.Context, rec models.WorkoutRecord) error
}

// Live is one registered session together with its bookkeeping. The
// embedded Controller is the mutation surface; everything else is managed
// by the Manager.
type Live struct {
	ID         uuid.UUID
	Controller *Controller
	CreatedAt  time.Time

	cancel context.CancelFunc

	mu           sync.Mutex
	startedAt    time.Time
	lastActivity time.Time
}

func (l *Live) touch(now time.Time) {
	l.mu.Lock()
	l.lastActivity = now
	l.mu.Unlock()
}

// LastActivity reports when the session last emitted an event. Running
// sessions refresh every second.
func (l *Live) LastActivity() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastActivity
}

// StartedAt reports when the session first entered Running, or the zero
// time if it never started.
func (l *Live) StartedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startedAt
}

// ManagerConfig bundles Manager collaborators and limits.
type ManagerConfig struct {
	Library   library.Store
	Generator *generator.Generator
	// Recorder persists finished sessions; nil disables history.
	Recorder HistoryRecorder
	Log      *slog.Logger
	// MaxActive caps registered sessions; 0 means the default of 16.
	MaxActive int
	// IdleTimeout reaps sessions with no events for this long; 0 means the
	// default of two hours.
	IdleTimeout time.Duration
	// TickInterval is the clock driving every session; 0 means one second.
	// Anything else only makes sense for accelerated runs and tests.
	TickInterval time.Duration
}

// Manager owns the set of live sessions: it generates their plans, drives
// each with a one-second ticker, reaps idle ones, and hands finished
// sessions to the history recorder.
type Manager struct {
	lib          library.Store
	gen          *generator.Generator
	recorder     HistoryRecorder
	log          *slog.Logger
	maxActive    int
	idleTimeout  time.Duration
	tickInterval time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*Live

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

const reapInterval = time.Minute

// NewManager builds a Manager and starts its reaper.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = 16
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Hour
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		lib:          cfg.Library,
		gen:          cfg.Generator,
		recorder:     cfg.Recorder,
		log:          cfg.Log,
		maxActive:    cfg.MaxActive,
		idleTimeout:  cfg.IdleTimeout,
		tickInterval: cfg.TickInterval,
		sessions:     make(map[uuid.UUID]*Live),
		baseCtx:      ctx,
		baseCancel:   cancel,
	}
	go m.reapLoop()
	return m
}

// Create loads the library, generates a plan for the request, and
// registers a live session driving it. The session starts in NotStarted
// unless autostart is set.
func (m *Manager) Create(ctx context.Context, req models.SessionRequest, autostart bool) (*Live, error) {
	exercises, err := m.lib.ListExercises(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading library: %w", err)
	}
	plan, err := m.gen.Generate(req, exercises)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	ctrl := NewController(plan, Options{
		Store:    m.lib,
		Eligible: generator.Eligible(exercises, req.Equipment),
		Log:      m.log.With("session_id", id),
	})

	liveCtx, cancel := context.WithCancel(m.baseCtx)
	now := time.Now()
	live := &Live{
		ID:           id,
		Controller:   ctrl,
		CreatedAt:    now,
		cancel:       cancel,
		lastActivity: now,
	}

	ctrl.Subscribe(func(ev Event) {
		at := time.Now()
		live.touch(at)
		switch {
		case ev.Type == EventPhaseChange && ev.State.Phase == PhaseRunning:
			live.mu.Lock()
			if live.startedAt.IsZero() {
				live.startedAt = at
			}
			live.mu.Unlock()
		case ev.Type == EventCompleted:
			go m.record(live, ev.State, true)
		}
	})

	m.mu.Lock()
	if len(m.sessions) >= m.maxActive {
		m.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, m.maxActive)
	}
	m.sessions[id] = live
	m.mu.Unlock()

	go m.drive(liveCtx, ctrl)
	m.log.Info("session created", "session_id", id,
		"plan_seconds", plan.TotalSeconds, "entries", len(plan.Entries), "autostart", autostart)

	if autostart {
		ctrl.Start()
	}
	return live, nil
}

// drive ticks the controller on the configured interval until the session
// context ends. Ticks against paused or completed sessions are no-ops, so
// the ticker simply keeps running for the session's whole registered life.
func (m *Manager) drive(ctx context.Context, ctrl *Controller) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctrl.Tick()
		}
	}
}

// Get returns a registered session by ID.
func (m *Manager) Get(id uuid.UUID) (*Live, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	live, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

// List returns all registered sessions, oldest first.
func (m *Manager) List() []*Live {
	m.mu.Lock()
	out := make([]*Live, 0, len(m.sessions))
	for _, live := range m.sessions {
		out = append(out, live)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Delete unregisters a session and stops its ticker. A session torn down
// mid-workout is recorded as abandoned.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	live, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	live.cancel()
	m.recordAbandoned(live)
	return nil
}

// Shutdown stops every ticker and the reaper. Sessions are not recorded;
// shutdown is not a workout outcome.
func (m *Manager) Shutdown() {
	m.baseCancel()
	m.mu.Lock()
	m.sessions = make(map[uuid.UUID]*Live)
	m.mu.Unlock()
}

func (m *Manager) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.baseCtx.Done():
			return
		case <-ticker.C:
			m.reap(time.Now())
		}
	}
}

// reap drops sessions with no events for longer than the idle timeout.
// Running sessions tick every second and are never idle; this catches
// completed sessions nobody deleted and sessions parked in NotStarted or
// Paused.
func (m *Manager) reap(now time.Time) {
	m.mu.Lock()
	var idle []*Live
	for id, live := range m.sessions {
		if now.Sub(live.LastActivity()) > m.idleTimeout {
			idle = append(idle, live)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, live := range idle {
		live.cancel()
		m.recordAbandoned(live)
		m.log.Info("reaped idle session", "session_id", live.ID,
			"phase", live.Controller.State().Phase.String())
	}
}

// recordAbandoned persists a session that ended without completing, if it
// ever actually ran.
func (m *Manager) recordAbandoned(live *Live) {
	st := live.Controller.State()
	if st.Phase == PhaseCompleted || st.ElapsedSeconds == 0 {
		return
	}
	go m.record(live, st, false)
}

// record writes one history row, fire-and-forget with a short deadline so
// a slow database cannot back up into session handling.
func (m *Manager) record(live *Live, st State, completed bool) {
	if m.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	started := live.StartedAt()
	if started.IsZero() {
		started = live.CreatedAt
	}
	rec := models.WorkoutRecord{
		ID:             live.ID,
		StartedAt:      started,
		FinishedAt:     time.Now(),
		PlanSeconds:    st.PlanSeconds,
		ElapsedSeconds: st.ElapsedSeconds,
		EntryCount:     st.EntryCount,
		Skipped:        st.Skipped,
		Completed:      completed,
		Entries:        live.Controller.Plan().Entries,
	}
	if err := m.recorder.RecordWorkout(ctx, rec); err != nil {
		m.log.Warn("recording workout failed", "session_id", live.ID, "error", err)
		return
	}
	m.log.Info("workout recorded", "session_id", live.ID,
		"elapsed_seconds", st.ElapsedSeconds, "completed", completed)
}
