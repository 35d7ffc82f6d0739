package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/registry"
	"github.com/claude/repcoach/internal/session"
	"github.com/go-chi/chi/v5"
)

// FrameRequest carries one detector result. Normalized landmarks are scaled
// to Width x Height pixels before processing.
type FrameRequest struct {
	Landmarks  []pose.Landmark `json:"landmarks"`
	Width      float64         `json:"width,omitempty"`
	Height     float64         `json:"height,omitempty"`
	Normalized bool            `json:"normalized,omitempty"`
}

// Frame returns the landmarks in pixel space.
func (f FrameRequest) Frame() (pose.Frame, error) {
	if !f.Normalized {
		return pose.Frame(f.Landmarks), nil
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, errors.New("width and height are required for normalized landmarks")
	}
	return pose.Scale(f.Landmarks, f.Width, f.Height), nil
}

type switchRequest struct {
	Key         string `json:"key"`
	StartingSet int    `json:"starting_set"`
}

type resetRequest struct {
	ExerciseKey     string `json:"exercise_key"`
	ResetSetCounter bool   `json:"reset_set_counter"`
	StartingSet     int    `json:"starting_set"`
}

// ControlResponse reports whether a control action applied and the session after it.
type ControlResponse struct {
	Applied bool          `json:"applied"`
	Session registry.Info `json:"session"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var p registry.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	info, err := s.sessions.Create(userInfoFromContext(r).Login, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List(userInfoFromContext(r).Login))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(userInfoFromContext(r).Login, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfigurePlan(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	var plan session.Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := e.Do(func(o *session.Orchestrator) error { return o.Configure(plan) }); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Info())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	var req FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	frame, err := req.Frame()
	if err != nil {
		writeError(w, err)
		return
	}

	var out session.Output
	start := time.Now()
	_ = e.Do(func(o *session.Orchestrator) error {
		out = o.ProcessFrame(frame)
		return nil
	})
	if s.metrics != nil {
		s.metrics.HistFrameDuration.Observe(time.Since(start).Seconds())
		s.metrics.CounterFrames.WithLabelValues(string(out.State)).Inc()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSkipRest(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, func(o *session.Orchestrator) (bool, error) {
		return o.RequestSkipRest(), nil
	})
}

func (s *Server) handleSwitchExercise(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.StartingSet == 0 {
		req.StartingSet = 1
	}
	s.control(w, r, func(o *session.Orchestrator) (bool, error) {
		return o.SwitchExercise(req.Key, req.StartingSet)
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	s.control(w, r, func(o *session.Orchestrator) (bool, error) {
		key := req.ExerciseKey
		if key == "" {
			key = o.Exercise().Key
		}
		if err := o.Reset(key, req.ResetSetCounter, req.StartingSet); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, func(o *session.Orchestrator) (bool, error) {
		return o.Advance()
	})
}

// control runs a session action under the session lock and reports its outcome.
func (s *Server) control(w http.ResponseWriter, r *http.Request, fn func(o *session.Orchestrator) (bool, error)) {
	e, ok := s.entry(w, r)
	if !ok {
		return
	}
	var applied bool
	err := e.Do(func(o *session.Orchestrator) error {
		var err error
		applied, err = fn(o)
		return err
	})
	if err != nil {
		writeError(w, fmt.Errorf("session %s: %w", e.ID, err))
		return
	}
	writeJSON(w, http.StatusOK, ControlResponse{Applied: applied, Session: e.Info()})
}

func (s *Server) entry(w http.ResponseWriter, r *http.Request) (*registry.Entry, bool) {
	e, err := s.sessions.Get(userInfoFromContext(r).Login, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return e, true
}
