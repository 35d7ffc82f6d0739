// Package tempo tracks repetitions of one exercise: it moves through the
// down / going_up / hold / going_down stages, checks the tempo of each phase and
// classifies finished repetitions as good or bad.
package tempo

import (
	"math"
	"time"

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/formcheck"
	"github.com/claude/repcoach/internal/geometry"
	"github.com/claude/repcoach/internal/pose"
)

// Stage is the position of the current repetition.
type Stage string

const (
	StageDown      Stage = "down"
	StageGoingUp   Stage = "going_up"
	StageHold      Stage = "hold"
	StageGoingDown Stage = "going_down"
)

// Completion thresholds, in percent.
const (
	StartPercent  = 10.0
	TopPercent    = 90.0
	BottomPercent = 5.0
)

// How long transient feedback stays up before the stage default replaces it.
const (
	WarningHold = 500 * time.Millisecond
	OutcomeHold = time.Second
)

// Speed feedback texts.
const (
	FeedbackStart      = "START"
	FeedbackLiftUp     = "LIFT UP"
	FeedbackGo         = "GO"
	FeedbackHold       = "HOLD"
	FeedbackBackSlowly = "BACK SLOWLY"
	FeedbackTooFast    = "TOO FAST"
	FeedbackTooSlow    = "TOO SLOW"
	FeedbackHoldAtTop  = "HOLD AT TOP"
	FeedbackRepReset   = "REP RESET"
	FeedbackGoodRep    = "GOOD REP!"
	FeedbackBadTiming  = "BAD TIMING"
)

var stageDefaults = map[Stage]string{
	StageDown:      FeedbackLiftUp,
	StageGoingUp:   FeedbackGo,
	StageHold:      FeedbackHold,
	StageGoingDown: FeedbackBackSlowly,
}

// message is speed feedback with the time it stops taking precedence over the
// stage default. warning marks intra-phase tempo warnings.
type message struct {
	text    string
	expires time.Time
	warning bool
}

func (m message) active(now time.Time) bool {
	return now.Before(m.expires)
}

// Output is what one frame produces.
type Output struct {
	Stage         Stage   `json:"stage"`
	Tracked       bool    `json:"tracked"`
	Angle         float64 `json:"angle"`
	Percentage    float64 `json:"percentage"`
	BarPosition   float64 `json:"bar_position"`
	GoodReps      int     `json:"good_reps"`
	BadReps       int     `json:"bad_reps"`
	FormFeedback  string  `json:"form_feedback"`
	SpeedFeedback string  `json:"speed_feedback"`
	PaceProgress  float64 `json:"pace_progress"`
}

// State is a read-only view of the tracker.
type State struct {
	Stage           Stage     `json:"stage"`
	StageStart      time.Time `json:"stage_start"`
	FeedbackExpires time.Time `json:"feedback_expires"`
	GoodReps        int       `json:"good_reps"`
	BadReps         int       `json:"bad_reps"`
	FormFeedback    string    `json:"form_feedback"`
	SpeedFeedback   string    `json:"speed_feedback"`
	RepTimingIsGood bool      `json:"rep_timing_is_good"`
}

// Tracker is the repetition state of one exercise activation. It is not safe
// for concurrent use.
type Tracker struct {
	ex      *exercise.Exercise
	eval    *formcheck.Evaluator
	bar     geometry.Bar
	triples []geometry.Triple
	timing  exercise.Timing

	stage           Stage
	stageStart      time.Time
	speed           message
	formFeedback    string
	goodReps        int
	badReps         int
	repTimingIsGood bool

	// measured durations of the finished concentric and hold phases of the
	// current repetition, in seconds
	concentricTook float64
	holdTook       float64
}

// New creates a tracker in the down stage.
func New(ex *exercise.Exercise, eval *formcheck.Evaluator, bar geometry.Bar, now time.Time) *Tracker {
	return &Tracker{
		ex:              ex,
		eval:            eval,
		bar:             bar,
		triples:         ex.Triples(),
		timing:          ex.Timing,
		stage:           StageDown,
		stageStart:      now,
		speed:           message{text: FeedbackStart},
		formFeedback:    FeedbackStart,
		repTimingIsGood: true,
	}
}

// Exercise returns the definition being tracked.
func (t *Tracker) Exercise() *exercise.Exercise {
	return t.ex
}

// Reps returns the good and bad repetition counts.
func (t *Tracker) Reps() (good, bad int) {
	return t.goodReps, t.badReps
}

// State returns a snapshot of the tracker.
func (t *Tracker) State() State {
	return State{
		Stage:           t.stage,
		StageStart:      t.stageStart,
		FeedbackExpires: t.speed.expires,
		GoodReps:        t.goodReps,
		BadReps:         t.badReps,
		FormFeedback:    t.formFeedback,
		SpeedFeedback:   t.speed.text,
		RepTimingIsGood: t.repTimingIsGood,
	}
}

// PaceMarkers returns where the concentric and hold phases end on the pace bar.
func (t *Tracker) PaceMarkers() (concentricEnd, holdEnd float64) {
	return Markers(t.timing)
}

// Markers returns where the concentric and hold phases of tm end, as fractions
// of the full repetition.
func Markers(tm exercise.Timing) (concentricEnd, holdEnd float64) {
	total := tm.TotalRep()
	if total <= 0 {
		return 0, 0
	}
	return tm.Concentric / total, (tm.Concentric + tm.Hold) / total
}

// Update evaluates one frame. When the tracked joints are missing from the
// frame the output is marked untracked and the stage only changes through a
// form failure reset.
func (t *Tracker) Update(frame pose.Frame, now time.Time) Output {
	form := t.eval.Evaluate(frame, t.ex.FormChecks)
	angle, ok := geometry.TrackedAngle(frame, t.triples)
	if !ok {
		t.formFeedback = form.Feedback
		if t.stage != StageDown && !form.IsFormGood {
			t.reset(now)
		}
		t.applyDefault(now)
		return t.output(false, 0, 0, 0)
	}
	per := geometry.CompletionPercentage(angle, t.ex.AngleRange, t.ex.ProgressType)
	return t.Step(angle, per, form, now)
}

// Step advances the stage machine with an already computed angle, completion
// percentage and form result.
func (t *Tracker) Step(angle, per float64, form formcheck.Result, now time.Time) Output {
	t.formFeedback = form.Feedback
	elapsed := now.Sub(t.stageStart).Seconds()

	moving := t.stage != StageDown
	bottomedOut := per <= BottomPercent && (t.stage == StageGoingUp || t.stage == StageHold)
	if (moving && !form.IsFormGood) || bottomedOut {
		t.reset(now)
		return t.output(true, angle, per, 0)
	}

	t.applyDefault(now)
	tm := t.timing
	var pace float64

	switch t.stage {
	case StageDown:
		if per >= StartPercent {
			t.enter(StageGoingUp, now)
			t.repTimingIsGood = true
			t.concentricTook, t.holdTook = 0, 0
		}

	case StageGoingUp:
		pace = t.pace(math.Min(elapsed, tm.Concentric))
		if per >= TopPercent {
			t.checkPhase(elapsed, tm.Concentric, now)
			t.concentricTook = elapsed
			t.enter(StageHold, now)
		} else if elapsed > tm.Concentric+tm.Tolerance {
			t.setSpeed(FeedbackTooSlow, now, WarningHold, true)
			t.repTimingIsGood = false
		}

	case StageHold:
		pace = t.pace(math.Min(t.concentricTook, tm.Concentric) + math.Min(elapsed, tm.Hold))
		if per < TopPercent {
			t.setSpeed(FeedbackHoldAtTop, now, WarningHold, true)
			t.repTimingIsGood = false
			t.holdTook = elapsed
			t.enter(StageGoingDown, now)
		} else if elapsed >= tm.Hold {
			t.holdTook = elapsed
			t.enter(StageGoingDown, now)
		}

	case StageGoingDown:
		pace = t.pace(math.Min(t.concentricTook, tm.Concentric) +
			math.Min(t.holdTook, tm.Hold) +
			math.Min(elapsed, tm.Eccentric))
		if per <= BottomPercent {
			t.checkPhase(elapsed, tm.Eccentric, now)
			t.finalize(form, now)
		}
	}

	return t.output(true, angle, per, pace)
}

// checkPhase flags a phase whose duration missed the target by more than the tolerance.
func (t *Tracker) checkPhase(took, target float64, now time.Time) {
	if math.Abs(took-target) <= t.timing.Tolerance {
		return
	}
	text := FeedbackTooSlow
	if took < target {
		text = FeedbackTooFast
	}
	t.setSpeed(text, now, WarningHold, true)
	t.repTimingIsGood = false
}

func (t *Tracker) finalize(form formcheck.Result, now time.Time) {
	if t.repTimingIsGood && form.IsFormGood {
		t.goodReps++
		t.setSpeed(FeedbackGoodRep, now, OutcomeHold, false)
	} else {
		t.badReps++
		if t.speed.warning && t.speed.active(now) {
			// keep the specific warning up for as long as an outcome
			t.speed.expires = now.Add(OutcomeHold)
		} else {
			t.setSpeed(FeedbackBadTiming, now, OutcomeHold, false)
		}
	}
	t.enter(StageDown, now)
}

// reset abandons the repetition in progress without counting it.
func (t *Tracker) reset(now time.Time) {
	t.enter(StageDown, now)
	t.setSpeed(FeedbackRepReset, now, OutcomeHold, false)
}

func (t *Tracker) enter(s Stage, now time.Time) {
	t.stage = s
	t.stageStart = now
}

func (t *Tracker) setSpeed(text string, now time.Time, hold time.Duration, warning bool) {
	t.speed = message{text: text, expires: now.Add(hold), warning: warning}
}

func (t *Tracker) applyDefault(now time.Time) {
	if t.speed.active(now) {
		return
	}
	t.speed = message{text: stageDefaults[t.stage]}
}

func (t *Tracker) pace(done float64) float64 {
	total := t.timing.TotalRep()
	if total <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, done/total))
}

func (t *Tracker) output(tracked bool, angle, per, pace float64) Output {
	return Output{
		Stage:         t.stage,
		Tracked:       tracked,
		Angle:         angle,
		Percentage:    per,
		BarPosition:   t.bar.Position(per),
		GoodReps:      t.goodReps,
		BadReps:       t.badReps,
		FormFeedback:  t.formFeedback,
		SpeedFeedback: t.speed.text,
		PaceProgress:  pace,
	}
}
