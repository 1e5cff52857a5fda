package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/sweatbell/internal/generator"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, gen *generator.Generator, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("SweatBell", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("SweatBell workout server. Browse the exercise library, generate timed workout plans, and review workout history and statistics."),
	)

	h := &handlers{ds: ds, gen: gen, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGenerateSession, Handler: h.generateSession},
		server.ServerTool{Tool: toolGetWorkoutHistory, Handler: h.getWorkoutHistory},
		server.ServerTool{Tool: toolGetWorkoutStats, Handler: h.getWorkoutStats},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resLibrary, Handler: h.library},
		server.ServerResource{Resource: resQuickSession, Handler: h.quickSession},
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	gen *generator.Generator
	log *slog.Logger
}

// --- Resource definitions ---

var resLibrary = mcp.NewResource(
	"sweatbell://library",
	"Exercise Library",
	mcp.WithResourceDescription("Every exercise with its difficulty rating and required equipment"),
	mcp.WithMIMEType("application/json"),
)

var resQuickSession = mcp.NewResource(
	"sweatbell://quick_session",
	"Quick Session",
	mcp.WithResourceDescription("A ready-made 7 minute bodyweight workout plan"),
	mcp.WithMIMEType("application/json"),
)

var resRecentWorkouts = mcp.NewResource(
	"sweatbell://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("The last 20 recorded workout sessions"),
	mcp.WithMIMEType("application/json"),
)
