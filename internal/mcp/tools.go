package mcp

import (
	"context"

	"github.com/claude/repcoach/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List all exercises the engine can track, with their tracked joints, angle range and tempo targets (concentric/hold/eccentric seconds)."),
)

var toolGetExercise = mcp.NewTool("get_exercise",
	mcp.WithDescription("Get one exercise definition including its form rules and the landmarks that must be visible before a set starts."),
	mcp.WithString("key", mcp.Required(), mcp.Description("Exercise key (e.g. bicep_curl, squat)")),
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List the caller's live workout sessions. Optionally filter by program state."),
	mcp.WithString("state", mcp.Description("Only return sessions in this state."),
		mcp.Enum(
			string(session.StateWaitingForBody),
			string(session.StateCountdown),
			string(session.StateTracking),
			string(session.StateResting),
			string(session.StateFinished),
		)),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Get one live session: active exercise, current set, targets, good/bad reps of the running set and the configured plan."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session id")),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercises, err := h.ds.ListExercises(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(exercises)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("key parameter is required"), nil
	}

	ex, err := h.ds.GetExercise(ctx, key)
	if err != nil {
		return mcp.NewToolResultError("lookup failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(ex)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := h.ds.ListSessions(ctx, LoginFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	if state := req.GetString("state", ""); state != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if string(s.State) == state {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	info, err := h.ds.GetSession(ctx, LoginFromContext(ctx), id)
	if err != nil {
		return mcp.NewToolResultError("lookup failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(info)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
