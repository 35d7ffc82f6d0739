package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const loginKey contextKey = iota

// DefaultLogin is the caller assumed when the transport injects no identity.
// It matches the server's dev user.
const DefaultLogin = "local"

// LoginFromContext extracts the caller login injected by the transport layer.
func LoginFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(loginKey).(string); ok && l != "" {
		return l
	}
	return DefaultLogin
}

// WithLogin returns a context with the given caller login.
func WithLogin(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, loginKey, login)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepCoach exercise tracking server. Look up exercise definitions (joints, angle ranges, tempo targets, form rules) and inspect live workout sessions. Sessions are scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetExercise, Handler: h.getExercise},
		server.ServerTool{Tool: toolListSessions, Handler: h.listSessions},
		server.ServerTool{Tool: toolGetSession, Handler: h.getSession},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
		server.ServerResource{Resource: resActiveSessions, Handler: h.activeSessions},
	)

	return s
}

// HTTPHandler serves s over streamable HTTP. login resolves the caller of each
// request; it runs after the HTTP identity middleware.
func HTTPHandler(s *server.MCPServer, login func(*http.Request) string) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return WithLogin(ctx, login(r))
		}),
	)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resExerciseCatalog = mcp.NewResource(
	"repcoach://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("All exercise definitions with tracked joints, angle ranges, tempo targets and form rules"),
	mcp.WithMIMEType("application/json"),
)

var resActiveSessions = mcp.NewResource(
	"repcoach://active_sessions",
	"Active Sessions",
	mcp.WithResourceDescription("Live workout sessions of the caller with state, set progress and rep counts"),
	mcp.WithMIMEType("application/json"),
)
