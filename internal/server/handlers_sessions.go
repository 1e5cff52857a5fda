package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/sweatbell/internal/models"
	"github.com/claude/sweatbell/internal/session"
)

// createSessionRequest is the JSON body for starting a new session.
type createSessionRequest struct {
	DurationSeconds int      `json:"duration_seconds"`
	Equipment       []string `json:"equipment"`
	Autostart       bool     `json:"autostart"`
}

// sessionResponse is the wire shape of one live session.
type sessionResponse struct {
	ID        uuid.UUID           `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	State     session.State       `json:"state"`
	Plan      *models.SessionPlan `json:"plan,omitempty"`
}

func sessionJSON(live *session.Live, withPlan bool) sessionResponse {
	resp := sessionResponse{
		ID:        live.ID,
		CreatedAt: live.CreatedAt,
		State:     live.Controller.State(),
	}
	if withPlan {
		resp.Plan = live.Controller.Plan()
	}
	return resp
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	live, err := s.sessions.Create(r.Context(), models.SessionRequest{
		DurationSeconds: req.DurationSeconds,
		Equipment:       req.Equipment,
	}, req.Autostart)
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionJSON(live, true))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	lives := s.sessions.List()
	out := make([]sessionResponse, 0, len(lives))
	for _, live := range lives {
		out = append(out, sessionJSON(live, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	live, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON(live, true))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}
	if err := s.sessions.Delete(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	live, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	live.Controller.Start()
	writeJSON(w, http.StatusOK, live.Controller.State())
}

func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	live, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	live.Controller.Pause()
	writeJSON(w, http.StatusOK, live.Controller.State())
}

func (s *Server) handleRestartSession(w http.ResponseWriter, r *http.Request) {
	live, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	live.Controller.Restart()
	writeJSON(w, http.StatusOK, live.Controller.State())
}

func (s *Server) handleSkipSession(w http.ResponseWriter, r *http.Request) {
	live, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	live.Controller.SkipCurrent()
	writeJSON(w, http.StatusOK, live.Controller.State())
}

func (s *Server) handleAdjustDifficulty(w http.ResponseWriter, r *http.Request) {
	live, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta float64 `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta is required"})
		return
	}
	live.Controller.AdjustDifficulty(req.Delta)
	writeJSON(w, http.StatusOK, live.Controller.State())
}

// handleSessionEvents streams controller events as SSE until the client
// disconnects or the session completes.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	live, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan session.Event, 32)
	remove := live.Controller.Subscribe(func(ev session.Event) {
		select {
		case ch <- ev:
		default:
			// slow subscriber, skip
		}
	})
	defer remove()

	// Send current state immediately
	fmt.Fprintf(w, "event: state\ndata: %s\n\n", mustJSON(live.Controller.State()))
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, mustJSON(ev.State))
			flusher.Flush()
			if ev.Type == session.EventCompleted {
				return
			}
		}
	}
}

// liveFromRequest resolves the {id} URL param to a registered session,
// writing the error response itself when it can't.
func (s *Server) liveFromRequest(w http.ResponseWriter, r *http.Request) (*session.Live, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return nil, false
	}
	live, err := s.sessions.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return live, true
}
