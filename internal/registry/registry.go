// Package registry keeps the live workout sessions of a running service. Each
// session is owned by one caller login and serialized by its own mutex.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/claude/repcoach/internal/clock"
	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/session"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown ids and for sessions owned by
// another caller.
var ErrSessionNotFound = errors.New("session not found")

// Info describes a session for listings.
type Info struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	session.Snapshot
}

// Entry is one live session.
type Entry struct {
	ID        string
	Owner     string
	CreatedAt time.Time

	mu   sync.Mutex
	orch *session.Orchestrator
}

// Do runs fn with exclusive access to the session's orchestrator.
func (e *Entry) Do(fn func(o *session.Orchestrator) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.orch)
}

// Info returns a consistent snapshot of the session.
func (e *Entry) Info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info()
}

func (e *Entry) info() Info {
	return Info{ID: e.ID, Owner: e.Owner, CreatedAt: e.CreatedAt, Snapshot: e.orch.Snapshot()}
}

// Registry holds sessions in memory.
type Registry struct {
	catalog *exercise.Catalog
	cfg     session.Config
	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Manager

	mu       sync.RWMutex
	sessions map[string]*Entry
}

// New creates an empty registry. m may be nil.
func New(catalog *exercise.Catalog, cfg session.Config, clk clock.Clock, m *metrics.Manager, log *slog.Logger) *Registry {
	return &Registry{
		catalog:  catalog,
		cfg:      cfg,
		clock:    clk,
		log:      log,
		metrics:  m,
		sessions: make(map[string]*Entry),
	}
}

// Catalog returns the exercise catalog sessions are built from.
func (r *Registry) Catalog() *exercise.Catalog {
	return r.catalog
}

// CreateParams describes a new session. ExerciseKey selects a starting exercise
// other than the first of the plan.
type CreateParams struct {
	Plan        session.Plan `json:"plan"`
	ExerciseKey string       `json:"exercise,omitempty"`
	StartingSet int          `json:"starting_set,omitempty"`
}

// Create starts a new session for owner.
func (r *Registry) Create(owner string, p CreateParams) (Info, error) {
	id := uuid.NewString()
	log := r.log.With("session", id, "owner", owner)

	orch, err := session.New(r.catalog, p.Plan, p.StartingSet,
		session.WithConfig(r.cfg),
		session.WithClock(r.clock),
		session.WithLogger(log),
		session.WithListener(r.listener()),
	)
	if err != nil {
		return Info{}, fmt.Errorf("create session: %w", err)
	}
	if p.ExerciseKey != "" {
		if _, err := orch.SwitchExercise(p.ExerciseKey, p.StartingSet); err != nil {
			return Info{}, fmt.Errorf("create session: %w", err)
		}
	}

	e := &Entry{ID: id, Owner: owner, CreatedAt: r.clock.Now(), orch: orch}
	r.mu.Lock()
	r.sessions[id] = e
	r.setActive()
	r.mu.Unlock()

	log.Info("session created", "exercise", orch.Exercise().Key)
	return e.Info(), nil
}

// Get returns the session id owned by owner. An empty owner matches any session.
func (r *Registry) Get(owner, id string) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || (owner != "" && e.Owner != owner) {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return e, nil
}

// Delete removes the session id owned by owner.
func (r *Registry) Delete(owner, id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || (owner != "" && e.Owner != owner) {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	delete(r.sessions, id)
	r.setActive()
	r.mu.Unlock()

	r.log.Info("session deleted", "session", id, "owner", e.Owner)
	return nil
}

// setActive publishes the session count. r.mu must be held.
func (r *Registry) setActive() {
	if r.metrics != nil {
		r.metrics.GaugeActiveSessions.Set(float64(len(r.sessions)))
	}
}

// List returns the sessions of owner, oldest first. An empty owner lists all.
func (r *Registry) List(owner string) []Info {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		if owner == "" || e.Owner == owner {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Info())
	}
	slices.SortFunc(out, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) listener() session.Listener {
	if r.metrics == nil {
		return session.ListenerFuncs{}
	}
	return session.ListenerFuncs{
		OnSetFinished: func(e session.SetFinished) {
			r.metrics.RecordSet(e.ExerciseKey, e.GoodRepsInSet, e.BadRepsInSet)
		},
		OnExerciseFinished: func(e session.ExerciseFinished) {
			r.metrics.CounterExercisesFinished.WithLabelValues(e.ExerciseKey).Inc()
		},
	}
}
