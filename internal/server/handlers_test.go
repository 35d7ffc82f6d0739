package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/clock"
	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/logging"
	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/registry"
	"github.com/claude/repcoach/internal/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/tailcfg"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testServer struct {
	t   *testing.T
	srv *Server
	clk *clock.Mock
	m   *metrics.Manager
}

func newTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()
	cat, err := exercise.Default()
	require.NoError(t, err)
	clk := clock.NewMock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, reg := metrics.NewTestManagerAndRegistry()
	sessions := registry.New(cat, session.DefaultConfig(), clk, m, logging.Discard())
	return &testServer{t: t, srv: New(sessions, m, reg, apiKey, logging.Discard()), clk: clk, m: m}
}

func (ts *testServer) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// curl builds a right-arm frame at the given completion percentage.
func curl(per float64) FrameRequest {
	frame := make([]pose.Landmark, pose.NumLandmarks)
	for i := range frame {
		frame[i] = pose.Landmark{X: 640, Y: 360, Visibility: 1}
	}
	theta := (160 - 1.2*per) * math.Pi / 180
	frame[pose.RightShoulder] = pose.Landmark{X: 600, Y: 200, Visibility: 1}
	frame[pose.RightElbow] = pose.Landmark{X: 600, Y: 330, Visibility: 1}
	frame[pose.RightWrist] = pose.Landmark{X: 600 + 120*math.Sin(theta), Y: 330 - 120*math.Cos(theta), Visibility: 1}
	frame[pose.RightHip] = pose.Landmark{X: 600, Y: 450, Visibility: 1}
	return FrameRequest{Landmarks: frame}
}

func (ts *testServer) frame(id string, d time.Duration, per float64) session.Output {
	ts.t.Helper()
	ts.clk.Advance(d)
	rec := ts.do(http.MethodPost, "/api/v1/sessions/"+id+"/frames", curl(per))
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[session.Output](ts.t, rec)
}

func (ts *testServer) create(plan session.Plan) registry.Info {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/sessions", registry.CreateParams{Plan: plan})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[registry.Info](ts.t, rec)
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "local", DisplayName: "Local Dev User"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}

// TestHandleMeTailscaleUser verifies /api/v1/me reports the tailnet identity
// once the server is switched to WhoIs lookups.
func TestHandleMeTailscaleUser(t *testing.T) {
	ts := newTestServer(t, "")
	ts.srv.SetTailscale(&fakeWhoIs{resp: &apitype.WhoIsResponse{
		UserProfile: &tailcfg.UserProfile{LoginName: "alice@example.com", DisplayName: "Alice"},
	}})

	rec := ts.do(http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[UserInfo](t, rec)
	assert.Equal(t, "alice@example.com", info.Login)
	assert.Equal(t, "Alice", info.DisplayName)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	ts.create(nil)

	rec := ts.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 1.0, body["sessions"])
}

func TestExercises(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(http.MethodGet, "/api/v1/exercises", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]map[string]any](t, rec)
	assert.NotEmpty(t, all)

	rec = ts.do(http.MethodGet, "/api/v1/exercises/bicep_curl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"right_elbow"`)

	rec = ts.do(http.MethodGet, "/api/v1/exercises/deadlift", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestSessionFlow drives one single-rep plan from creation to FINISHED over HTTP.
func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t, "")
	info := ts.create(session.Plan{{ExerciseKey: "bicep_curl", TargetSets: 1, TargetReps: 1}})
	assert.Equal(t, "local", info.Owner)
	assert.Equal(t, session.StateWaitingForBody, info.State)

	out := ts.frame(info.ID, 0, 0)
	assert.Equal(t, session.StateCountdown, out.State)
	assert.Equal(t, 5, out.RemainingSeconds)

	out = ts.frame(info.ID, 5*time.Second, 0)
	require.Equal(t, session.StateTracking, out.State)

	ts.frame(info.ID, 100*time.Millisecond, 15)
	ts.frame(info.ID, 2*time.Second, 95)
	ts.frame(info.ID, time.Second, 95)
	out = ts.frame(info.ID, 3*time.Second, 4)

	require.NotNil(t, out.SetFinished)
	assert.Equal(t, session.SetFinished{ExerciseKey: "bicep_curl", GoodRepsInSet: 1, CompletedSetNumber: 1}, *out.SetFinished)
	require.NotNil(t, out.ExerciseFinished)
	assert.Equal(t, session.StateFinished, out.State)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.m.CounterReps.WithLabelValues("bicep_curl", "good")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.m.CounterExercisesFinished.WithLabelValues("bicep_curl")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.m.CounterFrames.WithLabelValues(string(session.StateCountdown))))
	assert.Equal(t, 4.0, testutil.ToFloat64(ts.m.CounterFrames.WithLabelValues(string(session.StateTracking))))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.m.CounterFrames.WithLabelValues(string(session.StateFinished))))

	rec := ts.do(http.MethodPost, "/api/v1/sessions/"+info.ID+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ControlResponse](t, rec).Applied, "single-item plan has nothing to advance to")

	rec = ts.do(http.MethodGet, "/api/v1/sessions/"+info.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StateFinished, decode[registry.Info](t, rec).State)
}

func TestSessionControls(t *testing.T) {
	ts := newTestServer(t, "")
	info := ts.create(session.Plan{
		{ExerciseKey: "bicep_curl", TargetSets: 2, TargetReps: 3},
		{ExerciseKey: "squat", TargetSets: 1, TargetReps: 5},
	})
	path := "/api/v1/sessions/" + info.ID

	rec := ts.do(http.MethodPost, path+"/skip-rest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ControlResponse](t, rec).Applied, "not resting")

	rec = ts.do(http.MethodPost, path+"/exercise", map[string]any{"key": "squat"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ControlResponse](t, rec)
	assert.True(t, resp.Applied)
	assert.Equal(t, "squat", resp.Session.ExerciseKey)
	assert.Equal(t, 1, resp.Session.CurrentSet)
	assert.Equal(t, 5, resp.Session.TargetReps)

	rec = ts.do(http.MethodPost, path+"/exercise", map[string]any{"key": "squat"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ControlResponse](t, rec).Applied, "already active")

	rec = ts.do(http.MethodPost, path+"/reset", map[string]any{"reset_set_counter": true, "starting_set": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[ControlResponse](t, rec)
	assert.Equal(t, "squat", resp.Session.ExerciseKey)
	assert.Equal(t, 2, resp.Session.CurrentSet)

	rec = ts.do(http.MethodPost, path+"/reset", map[string]any{"exercise_key": "deadlift"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, path+"/plan", session.Plan{{ExerciseKey: "squat", TargetSets: 4, TargetReps: 8}})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[registry.Info](t, rec)
	assert.Equal(t, session.Plan{{ExerciseKey: "squat", TargetSets: 4, TargetReps: 8}}, got.Plan)
	assert.Equal(t, 5, got.TargetReps, "targets apply on the next reset")

	rec = ts.do(http.MethodPut, path+"/plan", session.Plan{{ExerciseKey: "squat"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFrameErrors(t *testing.T) {
	ts := newTestServer(t, "")
	info := ts.create(nil)
	path := "/api/v1/sessions/" + info.ID + "/frames"

	rec := ts.do(http.MethodPost, path, FrameRequest{Landmarks: []pose.Landmark{{X: 0.5, Y: 0.5}}, Normalized: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/sessions/nope/frames", curl(0))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNormalizedFrame(t *testing.T) {
	ts := newTestServer(t, "")
	info := ts.create(nil)

	req := curl(0)
	for i, l := range req.Landmarks {
		req.Landmarks[i] = pose.Landmark{X: l.X / 1280, Y: l.Y / 720, Visibility: l.Visibility}
	}
	req.Normalized, req.Width, req.Height = true, 1280, 720

	rec := ts.do(http.MethodPost, "/api/v1/sessions/"+info.ID+"/frames", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StateCountdown, decode[session.Output](t, rec).State)
}

func TestAPIKeyProtectsControlRoutes(t *testing.T) {
	ts := newTestServer(t, "secret")
	body := registry.CreateParams{}

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/v1/sessions", body).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/v1/sessions", body, "X-API-Key", "wrong").Code)

	rec := ts.do(http.MethodPost, "/api/v1/sessions", body, "X-API-Key", "secret")
	require.Equal(t, http.StatusCreated, rec.Code)
	info := decode[registry.Info](t, rec)

	// Reads stay open.
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/sessions/"+info.ID, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodDelete, "/api/v1/sessions/"+info.ID, nil).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/v1/sessions/"+info.ID, nil, "X-API-Key", "secret").Code)
}

// TestSessionsAreScopedToCaller verifies a tailnet user cannot see or drive
// another user's session.
func TestSessionsAreScopedToCaller(t *testing.T) {
	ts := newTestServer(t, "")
	as := func(login string) {
		ts.srv.SetTailscale(&fakeWhoIs{resp: &apitype.WhoIsResponse{
			UserProfile: &tailcfg.UserProfile{LoginName: login},
		}})
	}

	as("alice@example.com")
	info := ts.create(nil)
	assert.Equal(t, "alice@example.com", info.Owner)

	as("bob@example.com")
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/sessions/"+info.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/v1/sessions/"+info.ID+"/frames", curl(0)).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/v1/sessions/"+info.ID, nil).Code)
	rec := ts.do(http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]registry.Info](t, rec))

	as("alice@example.com")
	rec = ts.do(http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]registry.Info](t, rec), 1)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "")
	ts.do(http.MethodGet, "/healthz", nil)

	rec := ts.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `repcoach_test_server_request{method="GET",status="200"} 1`)
}
