// Package formcheck evaluates an exercise's ordered form rules against a single
// frame. It keeps no memory between frames.
package formcheck

import (
	"math"

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/geometry"
	"github.com/claude/repcoach/internal/pose"
)

// DefaultVisibilityThreshold is the minimum landmark visibility a rule or gate accepts.
const DefaultVisibilityThreshold = 0.7

// FeedbackGood is reported when no rule fails.
const FeedbackGood = "GOOD"

// Result is the outcome of evaluating one frame.
type Result struct {
	IsFormGood bool   `json:"is_form_good"`
	Feedback   string `json:"feedback"`
	// FailedRule is the index of the first failing rule, or -1.
	FailedRule int `json:"failed_rule"`
}

// Good is the result of a frame that passes every rule.
func Good() Result {
	return Result{IsFormGood: true, Feedback: FeedbackGood, FailedRule: -1}
}

// Evaluator applies form rules.
type Evaluator struct {
	visibility float64
}

// New creates an Evaluator. A non-positive threshold selects DefaultVisibilityThreshold.
func New(visibilityThreshold float64) *Evaluator {
	if visibilityThreshold <= 0 {
		visibilityThreshold = DefaultVisibilityThreshold
	}
	return &Evaluator{visibility: visibilityThreshold}
}

// VisibilityThreshold returns the threshold in effect.
func (e *Evaluator) VisibilityThreshold() float64 {
	return e.visibility
}

// Evaluate runs rules in order; the first failing rule decides the result.
func (e *Evaluator) Evaluate(frame pose.Frame, rules []exercise.Rule) Result {
	for i, r := range rules {
		if e.fails(frame, r) {
			return Result{IsFormGood: false, Feedback: r.Feedback, FailedRule: i}
		}
	}
	return Good()
}

func (e *Evaluator) fails(frame pose.Frame, r exercise.Rule) bool {
	switch r.Kind {
	case exercise.KindVisibility:
		threshold := e.visibility
		if r.Threshold > 0 {
			threshold = r.Threshold
		}
		return !VisibilityOK(frame, exercise.Ints(r.Landmarks), threshold)
	case exercise.KindPositional:
		if len(r.Landmarks) < 2 {
			return false
		}
		a, okA := frame.At(int(r.Landmarks[0]))
		b, okB := frame.At(int(r.Landmarks[1]))
		if !okA || !okB {
			return false
		}
		return positional(r.Predicate, a, b, r.Threshold)
	default:
		if len(r.Landmarks) < 3 {
			return false
		}
		t := geometry.Triple{int(r.Landmarks[0]), int(r.Landmarks[1]), int(r.Landmarks[2])}
		angle, ok := geometry.AngleAt(frame, t)
		if !ok {
			return false
		}
		return angleFails(r.Predicate, angle, r.Threshold)
	}
}

func angleFails(p exercise.Predicate, angle, threshold float64) bool {
	switch p {
	case exercise.AngleGreaterThan:
		return angle > threshold
	case exercise.AngleLessThan:
		return angle < threshold
	}
	return false
}

func positional(p exercise.Predicate, a, b pose.Landmark, threshold float64) bool {
	switch p {
	case exercise.LeanRatioBelow:
		return math.Abs(a.X-b.X)/math.Abs(a.Y-b.Y) < threshold
	case exercise.Above:
		return a.Y < b.Y-threshold
	case exercise.VerticalGapAbove:
		return math.Abs(a.Y-b.Y) > threshold
	}
	return false
}

// VisibilityOK reports whether every id is present in frame with visibility at
// or above threshold. An empty frame never passes.
func VisibilityOK(frame pose.Frame, ids []int, threshold float64) bool {
	if frame.Empty() {
		return false
	}
	for _, id := range ids {
		lm, ok := frame.At(id)
		if !ok || lm.Visibility < threshold {
			return false
		}
	}
	return true
}
