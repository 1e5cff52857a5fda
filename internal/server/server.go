package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/sweatbell/internal/generator"
	"github.com/claude/sweatbell/internal/library"
	"github.com/claude/sweatbell/internal/session"
	"github.com/claude/sweatbell/internal/storage"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	lib      library.Store
	db       *storage.DB // nil in memory mode; history endpoints refuse
	gen      *generator.Generator
	sessions *session.Manager
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured. db may be nil when
// running without Postgres; everything except workout history works.
func New(lib library.Store, db *storage.DB, gen *generator.Generator, sessions *session.Manager, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		lib:      lib,
		db:       db,
		gen:      gen,
		sessions: sessions,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Exercise library. Reads are open; mutations need the API key.
	s.router.Route("/api/v1/exercises", func(r chi.Router) {
		r.Get("/", s.handleListExercises)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/", s.handleCreateExercise)
			r.Put("/{name}", s.handleUpdateExercise)
			r.Delete("/{name}", s.handleDeleteExercise)
		})
	})
	s.router.Get("/api/v1/library/export", s.handleExportLibrary)
	s.router.With(APIKeyAuth(s.apiKey)).Post("/api/v1/library/import", s.handleImportLibrary)

	// Session generation and the live timers. No auth; access control is
	// left to the network layer (tsnet or a reverse proxy).
	s.router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/preview", s.handlePreviewSession)
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/start", s.handleStartSession)
			r.Post("/pause", s.handlePauseSession)
			r.Post("/restart", s.handleRestartSession)
			r.Post("/skip", s.handleSkipSession)
			r.Post("/difficulty", s.handleAdjustDifficulty)
			r.Get("/events", s.handleSessionEvents)
		})
	})

	s.router.Get("/api/v1/history", s.handleHistory)
	s.router.Get("/api/v1/history/stats", s.handleHistoryStats)
}
