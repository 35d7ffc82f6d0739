package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/registry"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessions *registry.Registry
	metrics  *metrics.Manager
	gatherer prometheus.Gatherer
	log      *slog.Logger
	apiKey   string
	router   chi.Router

	mu    sync.RWMutex
	whois WhoIser
}

// New creates a new Server with all routes configured. An empty apiKey leaves
// the mutating routes open.
func New(sessions *registry.Registry, m *metrics.Manager, gatherer prometheus.Gatherer, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		sessions: sessions,
		metrics:  m,
		gatherer: gatherer,
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

// SetTailscale switches caller identity from the dev user to tailnet WhoIs lookups.
func (s *Server) SetTailscale(w WhoIser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whois = w
}

// MountMCP serves an MCP endpoint at /mcp behind caller identity.
func (s *Server) MountMCP(h http.Handler) {
	s.router.With(s.identity).Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics(s.metrics))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/me", s.handleMe)
		r.Get("/exercises", s.handleListExercises)
		r.Get("/exercises/{key}", s.handleGetExercise)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)

		// Session control (API key required when configured)
		r.Group(func(r chi.Router) {
			if s.apiKey != "" {
				r.Use(APIKeyAuth(s.apiKey))
			}
			r.Post("/sessions", s.handleCreateSession)
			r.Delete("/sessions/{id}", s.handleDeleteSession)
			r.Put("/sessions/{id}/plan", s.handleConfigurePlan)
			r.Post("/sessions/{id}/frames", s.handleFrame)
			r.Post("/sessions/{id}/skip-rest", s.handleSkipRest)
			r.Post("/sessions/{id}/exercise", s.handleSwitchExercise)
			r.Post("/sessions/{id}/reset", s.handleReset)
			r.Post("/sessions/{id}/advance", s.handleAdvance)
		})
	})
}

// identity resolves the caller through Tailscale when configured, otherwise
// through DevIdentity.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		wi := s.whois
		s.mu.RUnlock()
		if wi == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(wi, s.log)(next).ServeHTTP(w, r)
	})
}
