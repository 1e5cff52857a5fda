package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/sweatbell/internal/generator"
	"github.com/claude/sweatbell/internal/models"
)

// splitEquipment splits the comma-separated equipment argument, trimming
// whitespace and dropping empty items.
func splitEquipment(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the exercise library. Each exercise has a difficulty rating (0.5-2.0; harder exercises get a larger share of session time) and a list of required equipment."),
	mcp.WithString("equipment", mcp.Description("Comma-separated equipment on hand (e.g. 'Wall,Pull-up Bar'). 'None' restricts to bodyweight exercises. Omit to list everything.")),
)

var toolGenerateSession = mcp.NewTool("generate_session",
	mcp.WithDescription("Generate a timed workout plan. Returns ordered entries whose per-exercise durations sum exactly to the requested total, easiest exercise first."),
	mcp.WithNumber("duration_seconds", mcp.Required(), mcp.Description("Total workout length in seconds (e.g. 420 for 7 minutes)")),
	mcp.WithString("equipment", mcp.Description("Comma-separated equipment on hand. 'None' restricts the plan to bodyweight exercises. Omit to allow everything.")),
)

var toolGetWorkoutHistory = mcp.NewTool("get_workout_history",
	mcp.WithDescription("Retrieve recorded workout sessions, newest first. Each record includes the plan as performed, elapsed time, skip count, and whether the session completed."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of records to return. Defaults to 20.")),
)

var toolGetWorkoutStats = mcp.NewTool("get_workout_stats",
	mcp.WithDescription("Aggregate workout statistics: session and completion counts, total time trained, skip totals, and the most scheduled exercises."),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercises, err := h.ds.ListExercises(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	if filter := splitEquipment(req.GetString("equipment", "")); len(filter) > 0 {
		exercises = generator.Eligible(exercises, filter)
	}

	result, err := mcp.NewToolResultJSON(exercises)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) generateSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	duration, err := req.RequireInt("duration_seconds")
	if err != nil {
		return mcp.NewToolResultError("duration_seconds parameter is required"), nil
	}

	exercises, err := h.ds.ListExercises(ctx)
	if err != nil {
		h.log.Error("mcp generate_session library", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	plan, err := h.gen.Generate(models.SessionRequest{
		DurationSeconds: duration,
		Equipment:       splitEquipment(req.GetString("equipment", "")),
	}, exercises)
	if err != nil {
		return mcp.NewToolResultError("generation failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(plan)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkoutHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	records, err := h.ds.QueryWorkoutHistory(ctx, limit)
	if err != nil {
		h.log.Error("mcp get_workout_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(records)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkoutStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetWorkoutStats(ctx)
	if err != nil {
		h.log.Error("mcp get_workout_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
