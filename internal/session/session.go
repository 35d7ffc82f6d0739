// Package session sequences a workout: body visibility gating, countdown, rep
// tracking, rest and completion across the sets and exercises of a plan.
package session

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/claude/repcoach/internal/clock"
	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/formcheck"
	"github.com/claude/repcoach/internal/geometry"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/tempo"
)

// State is the program state of an orchestrator.
type State string

const (
	StateWaitingForBody State = "WAITING_FOR_BODY"
	StateCountdown      State = "COUNTDOWN"
	StateTracking       State = "TRACKING"
	StateResting        State = "RESTING"
	StateFinished       State = "FINISHED"
)

// Texts shown outside of rep tracking.
const (
	FeedbackNoPerson = "NO PERSON DETECTED"
	PromptRest       = "REST"
	PromptPrepare    = "PREPARE YOURSELF"
)

// DefaultExercise is activated when the plan is empty.
const DefaultExercise = "bicep_curl"

// Config holds the engine tunables.
type Config struct {
	Countdown           time.Duration
	Rest                time.Duration
	PrepareWindow       time.Duration
	VisibilityThreshold float64
	Bar                 geometry.Bar
	// Targets used for an exercise that is not part of the plan.
	DefaultTargetReps int
	DefaultTargetSets int
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		Countdown:           5 * time.Second,
		Rest:                30 * time.Second,
		PrepareWindow:       3 * time.Second,
		VisibilityThreshold: formcheck.DefaultVisibilityThreshold,
		Bar:                 geometry.DefaultBar(),
		DefaultTargetReps:   10,
		DefaultTargetSets:   3,
	}
}

// SetFinished is emitted when the rep target of a set is reached.
type SetFinished struct {
	ExerciseKey        string `json:"exercise_key"`
	GoodRepsInSet      int    `json:"good_reps_in_set"`
	BadRepsInSet       int    `json:"bad_reps_in_set"`
	CompletedSetNumber int    `json:"completed_set_number"`
}

// ExerciseFinished is emitted once the last set of an exercise is done.
type ExerciseFinished struct {
	ExerciseKey string `json:"exercise_key"`
}

// Listener receives lifecycle events synchronously from ProcessFrame.
type Listener interface {
	SetFinished(SetFinished)
	ExerciseFinished(ExerciseFinished)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are ignored.
type ListenerFuncs struct {
	OnSetFinished      func(SetFinished)
	OnExerciseFinished func(ExerciseFinished)
}

func (l ListenerFuncs) SetFinished(e SetFinished) {
	if l.OnSetFinished != nil {
		l.OnSetFinished(e)
	}
}

func (l ListenerFuncs) ExerciseFinished(e ExerciseFinished) {
	if l.OnExerciseFinished != nil {
		l.OnExerciseFinished(e)
	}
}

// Output is the result of one ProcessFrame call.
type Output struct {
	State       State  `json:"state"`
	ExerciseKey string `json:"exercise_key"`
	CurrentSet  int    `json:"current_set"`
	TargetSets  int    `json:"target_sets"`
	TargetReps  int    `json:"target_reps"`
	// Prompt is the gate feedback while waiting, or the rest text.
	Prompt           string `json:"prompt,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`

	Rep *tempo.Output `json:"rep,omitempty"`

	SetFinished      *SetFinished      `json:"set_finished,omitempty"`
	ExerciseFinished *ExerciseFinished `json:"exercise_finished,omitempty"`
}

// Snapshot describes an orchestrator between frames.
type Snapshot struct {
	State        State  `json:"state"`
	ExerciseKey  string `json:"exercise_key"`
	ExerciseName string `json:"exercise_name"`
	CurrentSet   int    `json:"current_set"`
	TargetSets   int    `json:"target_sets"`
	TargetReps   int    `json:"target_reps"`
	GoodReps     int    `json:"good_reps"`
	BadReps      int    `json:"bad_reps"`
	Plan         Plan   `json:"plan"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithListener(l Listener) Option {
	return func(o *Orchestrator) { o.listener = l }
}

func WithConfig(c Config) Option {
	return func(o *Orchestrator) { o.cfg = c }
}

// Orchestrator drives one user's workout. It owns at most one rep tracker and
// is not safe for concurrent use; callers serialize ProcessFrame and the
// control methods.
type Orchestrator struct {
	catalog  *exercise.Catalog
	eval     *formcheck.Evaluator
	cfg      Config
	clock    clock.Clock
	logger   *slog.Logger
	listener Listener

	plan           Plan
	state          State
	ex             *exercise.Exercise
	currentSet     int
	targetSets     int
	targetReps     int
	countdownStart time.Time
	restStart      time.Time
	tracker        *tempo.Tracker
}

// New creates an orchestrator for plan and activates its first exercise at
// startingSet. An empty plan activates DefaultExercise.
func New(catalog *exercise.Catalog, plan Plan, startingSet int, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		catalog:  catalog,
		cfg:      DefaultConfig(),
		clock:    clock.Real{},
		logger:   slog.Default(),
		listener: ListenerFuncs{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.eval = formcheck.New(o.cfg.VisibilityThreshold)

	if err := o.Configure(plan); err != nil {
		return nil, err
	}
	key := DefaultExercise
	if len(plan) > 0 {
		key = plan[0].ExerciseKey
	}
	if err := o.Reset(key, true, startingSet); err != nil {
		return nil, err
	}
	return o, nil
}

// Configure replaces the plan. It does not change the active exercise or state;
// targets are read from the plan on the next Reset.
func (o *Orchestrator) Configure(plan Plan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	o.plan = append(Plan(nil), plan...)
	return nil
}

// Reset activates key and re-enters WAITING_FOR_BODY with a fresh rep state.
// The set counter is replaced by startingSet only when resetSetCounter is set.
// An unknown key leaves the orchestrator unchanged.
func (o *Orchestrator) Reset(key string, resetSetCounter bool, startingSet int) error {
	ex, err := o.catalog.Get(key)
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	o.ex = ex

	if i, ok := o.plan.find(key); ok {
		o.targetReps = o.plan[i].TargetReps
		o.targetSets = o.plan[i].TargetSets
	} else {
		o.targetReps = o.cfg.DefaultTargetReps
		o.targetSets = o.cfg.DefaultTargetSets
		o.logger.Warn("exercise not in plan, using default targets",
			"exercise", key, "reps", o.targetReps, "sets", o.targetSets)
	}

	if resetSetCounter {
		o.currentSet = max(startingSet, 1)
	}
	o.tracker = nil
	o.setState(StateWaitingForBody)
	o.logger.Info("session reset",
		"exercise", key, "set", o.currentSet, "target_sets", o.targetSets, "target_reps", o.targetReps)
	return nil
}

// SwitchExercise activates a different exercise starting at startingSet. It
// reports false when key is already active.
func (o *Orchestrator) SwitchExercise(key string, startingSet int) (bool, error) {
	if o.ex != nil && key == o.ex.Key {
		return false, nil
	}
	if err := o.Reset(key, true, startingSet); err != nil {
		return false, err
	}
	return true, nil
}

// RequestSkipRest ends the rest period early. It only applies while resting.
func (o *Orchestrator) RequestSkipRest() bool {
	if o.state != StateResting {
		return false
	}
	o.logger.Info("rest skipped", "exercise", o.ex.Key, "set", o.currentSet)
	o.nextSet()
	return true
}

// Advance moves a finished session to the next exercise of the plan, starting
// at set 1. It reports false when the session is not finished or the plan has
// no further exercise.
func (o *Orchestrator) Advance() (bool, error) {
	if o.state != StateFinished {
		return false, nil
	}
	i, ok := o.plan.find(o.ex.Key)
	next := 0
	if ok {
		next = i + 1
	}
	if next >= len(o.plan) {
		return false, nil
	}
	if err := o.Reset(o.plan[next].ExerciseKey, true, 1); err != nil {
		return false, err
	}
	return true, nil
}

// ProcessFrame advances the session with one detector frame.
func (o *Orchestrator) ProcessFrame(frame pose.Frame) Output {
	now := o.clock.Now()

	switch o.state {
	case StateWaitingForBody:
		gate := o.ex.VisibilityGate
		if formcheck.VisibilityOK(frame, exercise.Ints(gate.Landmarks), o.eval.VisibilityThreshold()) {
			o.countdownStart = now
			o.setState(StateCountdown)
			out := o.output()
			out.RemainingSeconds = ceilSeconds(o.cfg.Countdown)
			return out
		}
		out := o.output()
		out.Prompt = gate.Feedback
		return out

	case StateCountdown:
		elapsed := now.Sub(o.countdownStart)
		if elapsed >= o.cfg.Countdown {
			o.tracker = tempo.New(o.ex, o.eval, o.cfg.Bar, now)
			o.setState(StateTracking)
			return o.output()
		}
		out := o.output()
		out.RemainingSeconds = ceilSeconds(o.cfg.Countdown - elapsed)
		return out

	case StateResting:
		elapsed := now.Sub(o.restStart)
		if elapsed >= o.cfg.Rest {
			o.nextSet()
			return o.output()
		}
		out := o.output()
		out.RemainingSeconds = ceilSeconds(o.cfg.Rest - elapsed)
		out.Prompt = PromptRest
		if time.Duration(out.RemainingSeconds)*time.Second <= o.cfg.PrepareWindow {
			out.Prompt = PromptPrepare
		}
		return out

	case StateTracking:
		return o.track(frame, now)
	}

	return o.output()
}

func (o *Orchestrator) track(frame pose.Frame, now time.Time) Output {
	var rep tempo.Output
	if frame.Empty() {
		good, bad := o.tracker.Reps()
		rep = tempo.Output{
			Stage:        o.tracker.State().Stage,
			BarPosition:  o.cfg.Bar.Position(0),
			GoodReps:     good,
			BadReps:      bad,
			FormFeedback: FeedbackNoPerson,
		}
	} else {
		rep = o.tracker.Update(frame, now)
	}

	out := o.output()
	out.Rep = &rep
	if rep.GoodReps+rep.BadReps < o.targetReps {
		return out
	}

	set := SetFinished{
		ExerciseKey:        o.ex.Key,
		GoodRepsInSet:      rep.GoodReps,
		BadRepsInSet:       rep.BadReps,
		CompletedSetNumber: o.currentSet,
	}
	out.SetFinished = &set
	o.logger.Info("set finished",
		"exercise", set.ExerciseKey, "set", set.CompletedSetNumber, "good", set.GoodRepsInSet, "bad", set.BadRepsInSet)
	o.listener.SetFinished(set)

	o.currentSet++
	if o.currentSet > o.targetSets {
		done := ExerciseFinished{ExerciseKey: o.ex.Key}
		out.ExerciseFinished = &done
		o.tracker = nil
		o.setState(StateFinished)
		o.logger.Info("exercise finished", "exercise", done.ExerciseKey)
		o.listener.ExerciseFinished(done)
	} else {
		o.restStart = now
		o.setState(StateResting)
	}
	out.State = o.state
	out.CurrentSet = o.currentSet
	return out
}

// nextSet leaves rest for the next set of the same exercise.
func (o *Orchestrator) nextSet() {
	o.tracker = nil
	o.setState(StateWaitingForBody)
}

func (o *Orchestrator) setState(s State) {
	if o.state != s {
		o.logger.Debug("session state", "from", o.state, "to", s, "exercise", o.ex.Key, "set", o.currentSet)
	}
	o.state = s
}

func (o *Orchestrator) output() Output {
	return Output{
		State:       o.state,
		ExerciseKey: o.ex.Key,
		CurrentSet:  o.currentSet,
		TargetSets:  o.targetSets,
		TargetReps:  o.targetReps,
	}
}

// State returns the current program state.
func (o *Orchestrator) State() State {
	return o.state
}

// Exercise returns the active exercise definition.
func (o *Orchestrator) Exercise() *exercise.Exercise {
	return o.ex
}

// Plan returns a copy of the configured plan.
func (o *Orchestrator) Plan() Plan {
	return append(Plan(nil), o.plan...)
}

// Snapshot returns the current session state.
func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{
		State:        o.state,
		ExerciseKey:  o.ex.Key,
		ExerciseName: o.ex.Name,
		CurrentSet:   o.currentSet,
		TargetSets:   o.targetSets,
		TargetReps:   o.targetReps,
		Plan:         o.Plan(),
	}
	if o.tracker != nil {
		s.GoodReps, s.BadReps = o.tracker.Reps()
	}
	return s
}

// PaceMarkers returns the pace bar stage boundaries of the active exercise.
func (o *Orchestrator) PaceMarkers() (concentricEnd, holdEnd float64) {
	return tempo.Markers(o.ex.Timing)
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
