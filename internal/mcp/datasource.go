package mcp

import (
	"context"

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/registry"
)

// DataSource abstracts the engine state exposed to MCP tools. Both Local
// (in-process registry) and HTTPClient (remote via REST API) satisfy this
// interface. owner scopes session lookups; the remote client ignores it since
// the server resolves the caller itself.
type DataSource interface {
	ListExercises(ctx context.Context) ([]*exercise.Exercise, error)
	GetExercise(ctx context.Context, key string) (*exercise.Exercise, error)
	ListSessions(ctx context.Context, owner string) ([]registry.Info, error)
	GetSession(ctx context.Context, owner, id string) (registry.Info, error)
}

// Local serves tools straight from a session registry.
type Local struct {
	Sessions *registry.Registry
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = Local{}

func (l Local) ListExercises(context.Context) ([]*exercise.Exercise, error) {
	return l.Sessions.Catalog().All(), nil
}

func (l Local) GetExercise(_ context.Context, key string) (*exercise.Exercise, error) {
	return l.Sessions.Catalog().Get(key)
}

func (l Local) ListSessions(_ context.Context, owner string) ([]registry.Info, error) {
	return l.Sessions.List(owner), nil
}

func (l Local) GetSession(_ context.Context, owner, id string) (registry.Info, error) {
	e, err := l.Sessions.Get(owner, id)
	if err != nil {
		return registry.Info{}, err
	}
	return e.Info(), nil
}
