package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/sweatbell/internal/generator"
	"github.com/claude/sweatbell/internal/library"
	"github.com/claude/sweatbell/internal/models"
	"github.com/claude/sweatbell/internal/session"
)

const testAPIKey = "test-key"

// newTestServer builds a server over the default library, an in-memory
// store, and a manager whose clock never fires on its own, so sessions
// only move when the test drives them.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	lib := library.NewMemory(library.Defaults())
	gen := &generator.Generator{}
	mgr := session.NewManager(session.ManagerConfig{
		Library:      lib,
		Generator:    gen,
		Log:          discardLogger(),
		TickInterval: time.Hour,
	})
	t.Cleanup(mgr.Shutdown)
	return New(lib, nil, gen, mgr, testAPIKey, discardLogger())
}

func doRequest(t *testing.T, s *Server, method, path, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// sessionEnvelope mirrors the session response shape. State is decoded
// into plain fields because Phase only marshals one way.
type sessionEnvelope struct {
	ID    string `json:"id"`
	State struct {
		Phase            string                    `json:"phase"`
		EntryIndex       int                       `json:"entry_index"`
		Entry            *models.ScheduledExercise `json:"entry"`
		RemainingSeconds int                       `json:"remaining_seconds"`
		ProgressPercent  int                       `json:"progress_percent"`
		PlanSeconds      int                       `json:"plan_seconds"`
		EntryCount       int                       `json:"entry_count"`
		Skipped          int                       `json:"skipped"`
	} `json:"state"`
	Plan *models.SessionPlan `json:"plan"`
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// TestListExercises checks the library listing comes back sorted and the
// equipment filter drops exercises that need gear.
func TestListExercises(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/exercises", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var list []models.Exercise
	decodeJSON(t, rec, &list)
	if len(list) != 10 {
		t.Fatalf("got %d exercises, want 10", len(list))
	}
	if list[0].Name != "Burpees" {
		t.Errorf("first exercise = %q, want %q", list[0].Name, "Burpees")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/exercises?equipment=None", "", "")
	decodeJSON(t, rec, &list)
	if len(list) != 9 {
		t.Fatalf("filtered list has %d exercises, want 9", len(list))
	}
	for _, e := range list {
		if e.Name == "Wall Sit" {
			t.Errorf("equipment filter kept %q", e.Name)
		}
	}
}

// TestExerciseMutationsRequireKey verifies writes sit behind the API key
// while reads stay open.
func TestExerciseMutationsRequireKey(t *testing.T) {
	s := newTestServer(t)
	body := `{"name": "Dips", "difficulty": 1.4}`

	rec := doRequest(t, s, http.MethodPost, "/api/v1/exercises", body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	rec = doRequest(t, s, http.MethodPost, "/api/v1/exercises", body, "wrong")
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/v1/exercises", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("read: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// TestExerciseCRUD walks an exercise through create, update, and delete.
func TestExerciseCRUD(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/exercises", `{"name": "Dips", "difficulty": 1.4}`, testAPIKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/exercises", "", "")
	var list []models.Exercise
	decodeJSON(t, rec, &list)
	if len(list) != 11 {
		t.Fatalf("after create: got %d exercises, want 11", len(list))
	}

	// PUT adopts the URL name when the body omits it.
	rec = doRequest(t, s, http.MethodPut, "/api/v1/exercises/Dips", `{"difficulty": 1.6}`, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	var updated models.Exercise
	decodeJSON(t, rec, &updated)
	if updated.Name != "Dips" || updated.Difficulty != 1.6 {
		t.Errorf("updated = %+v, want Dips at 1.6", updated)
	}

	// A body naming a different exercise is rejected.
	rec = doRequest(t, s, http.MethodPut, "/api/v1/exercises/Dips", `{"name": "Squats", "difficulty": 1.0}`, testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("mismatched name: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/exercises/Dips", "", testAPIKey)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = doRequest(t, s, http.MethodDelete, "/api/v1/exercises/Dips", "", testAPIKey)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// Out-of-range difficulty is unprocessable.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/exercises", `{"name": "Sprint", "difficulty": 9}`, testAPIKey)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad difficulty: status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

// TestLibraryExportImport round-trips the library through the interchange
// format and covers merge mode, bad payloads, and mode validation.
func TestLibraryExportImport(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/library/export", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status = %d, want %d", rec.Code, http.StatusOK)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "sweatbell-library.json") {
		t.Errorf("Content-Disposition = %q, want the library filename", cd)
	}
	exported, err := models.ParseLibraryFile(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("parsing exported file: %v", err)
	}
	if len(exported) != 10 {
		t.Errorf("exported %d exercises, want 10", len(exported))
	}

	// Replace the whole library with two exercises.
	file := `{"version": 1, "exercises": [
		{"name": "Rowing", "difficulty": 1.5, "equipment": ["Rower"]},
		{"name": "Step-ups", "difficulty": 0.9}
	]}`
	rec = doRequest(t, s, http.MethodPost, "/api/v1/library/import", file, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	var result struct {
		Imported int    `json:"imported"`
		Mode     string `json:"mode"`
	}
	decodeJSON(t, rec, &result)
	if result.Imported != 2 || result.Mode != "replace" {
		t.Errorf("import result = %+v, want 2 replaced", result)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/exercises", "", "")
	var list []models.Exercise
	decodeJSON(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("after replace: got %d exercises, want 2", len(list))
	}

	// Merge adds without dropping what is there.
	file = `{"version": 1, "exercises": [{"name": "Sled Push", "difficulty": 1.9, "equipment": ["Sled"]}]}`
	rec = doRequest(t, s, http.MethodPost, "/api/v1/library/import?mode=merge", file, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("merge import: status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/v1/exercises", "", "")
	decodeJSON(t, rec, &list)
	if len(list) != 3 {
		t.Errorf("after merge: got %d exercises, want 3", len(list))
	}

	// Malformed and invalid payloads are unprocessable.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/library/import", `{"version": 1, "exercises": [{"name": "", "difficulty": 1}]}`, testAPIKey)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid exercise: status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	// Import needs the key, and unknown modes are rejected.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/library/import", file, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	rec = doRequest(t, s, http.MethodPost, "/api/v1/library/import?mode=sideways", file, testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestPreviewSession generates a plan without registering a session. The
// fixed default library makes the plan deterministic.
func TestPreviewSession(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions/preview", `{"duration_seconds": 300, "equipment": ["None"]}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	var plan models.SessionPlan
	decodeJSON(t, rec, &plan)
	if plan.TotalSeconds != 300 {
		t.Errorf("TotalSeconds = %d, want 300", plan.TotalSeconds)
	}
	if len(plan.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(plan.Entries))
	}
	if plan.Entries[0].Exercise.Name != "Crunches" {
		t.Errorf("opening exercise = %q, want %q", plan.Entries[0].Exercise.Name, "Crunches")
	}
	if got := plan.SumEntrySeconds(); got != 300 {
		t.Errorf("entry durations sum to %d, want 300", got)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/preview", `{"duration_seconds": 0}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero duration: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestSessionFlow drives one session through its whole lifecycle over the
// API: create, list, fetch, start, pause, skip, adjust, restart, delete.
func TestSessionFlow(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{"duration_seconds": 60, "equipment": ["None"]}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	var created sessionEnvelope
	decodeJSON(t, rec, &created)
	if created.State.Phase != "not_started" {
		t.Errorf("phase = %q, want %q", created.State.Phase, "not_started")
	}
	if created.Plan == nil || created.Plan.TotalSeconds != 60 {
		t.Fatalf("created plan = %+v, want a 60s plan", created.Plan)
	}

	// Listing shows the session without its plan.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/sessions", "", "")
	var listed []sessionEnvelope
	decodeJSON(t, rec, &listed)
	if len(listed) != 1 {
		t.Fatalf("listed %d sessions, want 1", len(listed))
	}
	if listed[0].Plan != nil {
		t.Error("listing included a plan")
	}

	// Fetching one session includes the plan.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/sessions/"+created.ID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d, want %d", rec.Code, http.StatusOK)
	}
	var fetched sessionEnvelope
	decodeJSON(t, rec, &fetched)
	if fetched.Plan == nil {
		t.Error("fetch omitted the plan")
	}

	var state sessionEnvelope
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/start", "", "")
	decodeJSON(t, rec, &state.State)
	if state.State.Phase != "running" {
		t.Errorf("after start: phase = %q, want %q", state.State.Phase, "running")
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/pause", "", "")
	decodeJSON(t, rec, &state.State)
	if state.State.Phase != "paused" {
		t.Errorf("after pause: phase = %q, want %q", state.State.Phase, "paused")
	}

	// Skipping the only entry swaps in a replacement exercise.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/skip", "", "")
	decodeJSON(t, rec, &state.State)
	if state.State.Skipped != 1 {
		t.Errorf("after skip: skipped = %d, want 1", state.State.Skipped)
	}
	if state.State.Entry == nil || state.State.Entry.Exercise.Name == "Crunches" {
		t.Errorf("after skip: entry = %+v, want a replacement", state.State.Entry)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/difficulty", `{"delta": 0.3}`, "")
	if rec.Code != http.StatusOK {
		t.Errorf("adjust: status = %d, want %d", rec.Code, http.StatusOK)
	}
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/difficulty", `{}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("adjust without delta: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+created.ID+"/restart", "", "")
	decodeJSON(t, rec, &state.State)
	if state.State.Phase != "not_started" {
		t.Errorf("after restart: phase = %q, want %q", state.State.Phase, "not_started")
	}
	if state.State.Skipped != 1 {
		t.Errorf("after restart: skipped = %d, want 1", state.State.Skipped)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/sessions/"+created.ID, "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/v1/sessions/"+created.ID, "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestSessionLookupErrors covers malformed and unknown session IDs.
func TestSessionLookupErrors(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sessions/not-a-uuid", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/start", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestCreateSessionErrors maps generator and capacity failures onto
// status codes.
func TestCreateSessionErrors(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{"duration_seconds": 0}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero duration: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// A library with only equipped exercises has nothing for a
	// bodyweight request.
	gym := library.NewMemory([]models.Exercise{
		{Name: "Pull-ups", Difficulty: 1.7, Equipment: []string{"Pull-up Bar"}},
	})
	gen := &generator.Generator{}
	gymMgr := session.NewManager(session.ManagerConfig{
		Library: gym, Generator: gen, Log: discardLogger(), TickInterval: time.Hour,
	})
	defer gymMgr.Shutdown()
	gymSrv := New(gym, nil, gen, gymMgr, testAPIKey, discardLogger())
	rec = doRequest(t, gymSrv, http.MethodPost, "/api/v1/sessions", `{"duration_seconds": 300, "equipment": ["None"]}`, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty selection: status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	// One slot: the second session is refused until the first goes away.
	lib := library.NewMemory(library.Defaults())
	oneMgr := session.NewManager(session.ManagerConfig{
		Library: lib, Generator: gen, Log: discardLogger(), TickInterval: time.Hour, MaxActive: 1,
	})
	defer oneMgr.Shutdown()
	oneSrv := New(lib, nil, gen, oneMgr, testAPIKey, discardLogger())
	rec = doRequest(t, oneSrv, http.MethodPost, "/api/v1/sessions", `{"duration_seconds": 60}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d, want %d", rec.Code, http.StatusCreated)
	}
	rec = doRequest(t, oneSrv, http.MethodPost, "/api/v1/sessions", `{"duration_seconds": 60}`, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("at capacity: status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestHistoryWithoutDatabase confirms history endpoints refuse to run in
// memory mode instead of dereferencing a nil pool.
func TestHistoryWithoutDatabase(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/history", "/api/v1/history/stats"} {
		rec := doRequest(t, s, http.MethodGet, path, "", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusServiceUnavailable)
		}
	}
}

// TestSessionEventsStream subscribes to a session's event stream and
// drives the controller to completion from another goroutine. The
// recorder implements http.Flusher, so the handler streams into it and
// returns once it has written the completed event.
func TestSessionEventsStream(t *testing.T) {
	lib := library.NewMemory(library.Defaults())
	gen := &generator.Generator{}
	mgr := session.NewManager(session.ManagerConfig{
		Library: lib, Generator: gen, Log: discardLogger(), TickInterval: time.Hour,
	})
	defer mgr.Shutdown()
	s := New(lib, nil, gen, mgr, testAPIKey, discardLogger())

	live, err := mgr.Create(context.Background(), models.SessionRequest{DurationSeconds: 60, Equipment: []string{"None"}}, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	go func() {
		// Give the handler time to subscribe before events start.
		time.Sleep(100 * time.Millisecond)
		live.Controller.Start()
		for range 60 {
			live.Controller.Tick()
			time.Sleep(time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+live.ID.String()+"/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}
	body := rec.Body.String()
	for _, want := range []string{"event: state", "event: phase_change", "event: tick", "event: completed"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q", want)
		}
	}
	if !strings.Contains(body, `"phase":"completed"`) {
		t.Error("stream never reported the completed phase")
	}
}
