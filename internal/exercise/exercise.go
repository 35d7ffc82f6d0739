// Package exercise holds the declarative exercise definitions the tracking engine
// runs against: tracked joints, angle range, tempo and ordered form rules.
package exercise

import (
	"encoding/json"
	"fmt"

	"github.com/claude/repcoach/internal/geometry"
	"github.com/claude/repcoach/internal/pose"
	"gopkg.in/yaml.v3"
)

// Kind is the family a form rule belongs to.
type Kind string

const (
	KindAngle      Kind = "angle"
	KindPositional Kind = "positional"
	KindVisibility Kind = "visibility"
)

// Predicate names the comparison a rule applies. A rule fails when its
// predicate holds.
type Predicate string

const (
	// AngleGreaterThan: joint angle > threshold.
	AngleGreaterThan Predicate = "angle_greater_than"
	// AngleLessThan: joint angle < threshold.
	AngleLessThan Predicate = "angle_less_than"
	// LeanRatioBelow: |a.x-b.x| / |a.y-b.y| < threshold.
	LeanRatioBelow Predicate = "lean_ratio_below"
	// Above: a.y < b.y - threshold (image y grows downwards).
	Above Predicate = "above"
	// VerticalGapAbove: |a.y-b.y| > threshold.
	VerticalGapAbove Predicate = "vertical_gap_above"
	// VisibilityRequired: every landmark present with visibility >= threshold.
	VisibilityRequired Predicate = "visibility_required"
)

// predicateKinds lists which predicates each kind accepts and how many
// landmarks a rule of that kind references (0 = one or more).
var predicateKinds = map[Kind]struct {
	predicates []Predicate
	landmarks  int
}{
	KindAngle:      {[]Predicate{AngleGreaterThan, AngleLessThan}, 3},
	KindPositional: {[]Predicate{LeanRatioBelow, Above, VerticalGapAbove}, 2},
	KindVisibility: {[]Predicate{VisibilityRequired}, 0},
}

// Joint is a landmark id. In YAML it may be written as an integer or as a
// joint name ("right_elbow").
type Joint int

// UnmarshalYAML accepts either a numeric id or a joint name.
func (j *Joint) UnmarshalYAML(n *yaml.Node) error {
	var id int
	if err := n.Decode(&id); err == nil {
		*j = Joint(id)
		return nil
	}
	var name string
	if err := n.Decode(&name); err != nil {
		return fmt.Errorf("line %d: landmark must be an id or a name", n.Line)
	}
	id, ok := pose.ID(name)
	if !ok {
		return fmt.Errorf("line %d: unknown landmark %q", n.Line, name)
	}
	*j = Joint(id)
	return nil
}

// MarshalJSON writes the joint name, or the bare id outside the landmark scheme.
func (j Joint) MarshalJSON() ([]byte, error) {
	if name := pose.Name(int(j)); name != "" {
		return json.Marshal(name)
	}
	return json.Marshal(int(j))
}

func (j *Joint) UnmarshalJSON(b []byte) error {
	var id int
	if err := json.Unmarshal(b, &id); err == nil {
		*j = Joint(id)
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("landmark must be an id or a name: %s", b)
	}
	id, ok := pose.ID(name)
	if !ok {
		return fmt.Errorf("unknown landmark %q", name)
	}
	*j = Joint(id)
	return nil
}

// Rule is one form check.
type Rule struct {
	Kind      Kind      `yaml:"kind" json:"kind"`
	Landmarks []Joint   `yaml:"landmarks" json:"landmarks"`
	Predicate Predicate `yaml:"predicate" json:"predicate"`
	Threshold float64   `yaml:"threshold" json:"threshold,omitempty"`
	Feedback  string    `yaml:"feedback" json:"feedback"`
}

// Timing is the target tempo of one repetition, in seconds.
type Timing struct {
	Concentric float64 `yaml:"concentric" json:"concentric"`
	Hold       float64 `yaml:"hold" json:"hold"`
	Eccentric  float64 `yaml:"eccentric" json:"eccentric"`
	Tolerance  float64 `yaml:"tolerance" json:"tolerance"`
}

// DefaultTiming is applied field by field where a definition leaves a value unset.
var DefaultTiming = Timing{Concentric: 3, Hold: 1, Eccentric: 3, Tolerance: 0.5}

// TotalRep is the duration of a full repetition at target tempo.
func (t Timing) TotalRep() float64 {
	return t.Concentric + t.Hold + t.Eccentric
}

// Gate is the visibility requirement checked before tracking starts.
type Gate struct {
	Landmarks []Joint `yaml:"landmarks" json:"landmarks"`
	Feedback  string  `yaml:"feedback" json:"feedback"`
}

// Exercise is an immutable exercise definition.
type Exercise struct {
	Key            string                `yaml:"key" json:"key"`
	Name           string                `yaml:"name" json:"name"`
	Landmarks      [][3]Joint            `yaml:"landmarks" json:"landmarks"`
	AngleRange     [2]float64            `yaml:"angle_range" json:"angle_range"`
	ProgressType   geometry.ProgressType `yaml:"progress_type" json:"progress_type"`
	Timing         Timing                `yaml:"timing" json:"timing"`
	FormChecks     []Rule                `yaml:"form_checks" json:"form_checks"`
	VisibilityGate Gate                  `yaml:"visibility_gate" json:"visibility_gate"`
}

// Triples returns the tracked joint triples.
func (e *Exercise) Triples() []geometry.Triple {
	out := make([]geometry.Triple, len(e.Landmarks))
	for i, t := range e.Landmarks {
		out[i] = geometry.Triple{int(t[0]), int(t[1]), int(t[2])}
	}
	return out
}

// Bilateral reports whether the exercise averages a left and a right angle.
func (e *Exercise) Bilateral() bool {
	return len(e.Landmarks) == 2
}

// applyDefaults fills unset timing fields, rule kinds and progress type.
func (e *Exercise) applyDefaults() {
	if e.Timing.Concentric == 0 {
		e.Timing.Concentric = DefaultTiming.Concentric
	}
	if e.Timing.Hold == 0 {
		e.Timing.Hold = DefaultTiming.Hold
	}
	if e.Timing.Eccentric == 0 {
		e.Timing.Eccentric = DefaultTiming.Eccentric
	}
	if e.Timing.Tolerance == 0 {
		e.Timing.Tolerance = DefaultTiming.Tolerance
	}
	if e.ProgressType == "" {
		e.ProgressType = geometry.ProgressNormal
	}
	if e.Name == "" {
		e.Name = e.Key
	}
	for i := range e.FormChecks {
		r := &e.FormChecks[i]
		if r.Kind == "" {
			r.Kind = KindAngle
		}
		if r.Kind == KindVisibility && r.Predicate == "" {
			r.Predicate = VisibilityRequired
		}
	}
}

// Ints converts joints to plain landmark ids.
func Ints(joints []Joint) []int {
	out := make([]int, len(joints))
	for i, j := range joints {
		out[i] = int(j)
	}
	return out
}
