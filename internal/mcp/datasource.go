package mcp

import (
	"context"

	"github.com/claude/sweatbell/internal/models"
	"github.com/claude/sweatbell/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListExercises(ctx context.Context) ([]models.Exercise, error)
	QueryWorkoutHistory(ctx context.Context, limit int) ([]models.WorkoutRecord, error)
	GetWorkoutStats(ctx context.Context) (*storage.WorkoutStats, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
