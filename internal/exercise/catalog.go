package exercise

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/claude/repcoach/internal/pose"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrUnknownExercise is returned when a key is not in the catalog.
var ErrUnknownExercise = errors.New("unknown exercise")

// Catalog is an ordered, validated set of exercise definitions.
type Catalog struct {
	order     []string
	exercises map[string]*Exercise
}

type catalogDoc struct {
	Exercises []Exercise `yaml:"exercises"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML. Every definition problem is reported,
// not only the first.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(doc.Exercises) == 0 {
		return nil, fmt.Errorf("catalog defines no exercises")
	}

	c := &Catalog{exercises: make(map[string]*Exercise, len(doc.Exercises))}
	var errs error
	for i := range doc.Exercises {
		ex := doc.Exercises[i]
		ex.applyDefaults()
		if err := ex.Validate(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, dup := c.exercises[ex.Key]; dup {
			errs = multierr.Append(errs, fmt.Errorf("exercise %q: duplicate key", ex.Key))
			continue
		}
		c.order = append(c.order, ex.Key)
		c.exercises[ex.Key] = &ex
	}
	if errs != nil {
		return nil, fmt.Errorf("catalog validation: %w", errs)
	}
	return c, nil
}

// Get returns the exercise for key.
func (c *Catalog) Get(key string) (*Exercise, error) {
	ex, ok := c.exercises[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExercise, key)
	}
	return ex, nil
}

// Keys returns exercise keys in catalog order.
func (c *Catalog) Keys() []string {
	return slices.Clone(c.order)
}

// All returns every exercise in catalog order.
func (c *Catalog) All() []*Exercise {
	out := make([]*Exercise, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.exercises[k])
	}
	return out
}

// Validate reports every configuration error in the definition. A degenerate
// angle range is rejected here because the percentage mapping divides by it.
func (e *Exercise) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("exercise %q: "+format, append([]any{e.Key}, args...)...))
	}

	if e.Key == "" {
		add("key is required")
	}
	if n := len(e.Landmarks); n != 1 && n != 2 {
		add("landmarks must hold one or two triples, got %d", n)
	}
	for _, t := range e.Landmarks {
		for _, j := range t {
			if !validJoint(j) {
				add("landmark %d out of range", j)
			}
		}
	}
	if e.AngleRange[0] == e.AngleRange[1] {
		add("angle_range bounds must differ, got [%g, %g]", e.AngleRange[0], e.AngleRange[1])
	}
	if !e.ProgressType.Valid() {
		add("unknown progress_type %q", e.ProgressType)
	}
	if e.Timing.Concentric < 0 || e.Timing.Hold < 0 || e.Timing.Eccentric < 0 {
		add("timing phases must not be negative")
	}
	if e.Timing.Tolerance < 0 {
		add("timing.tolerance must not be negative")
	}
	for i, r := range e.FormChecks {
		if err := r.validate(); err != nil {
			add("form_checks[%d]: %v", i, err)
		}
	}
	if len(e.VisibilityGate.Landmarks) == 0 {
		add("visibility_gate.landmarks is required")
	}
	for _, j := range e.VisibilityGate.Landmarks {
		if !validJoint(j) {
			add("visibility_gate landmark %d out of range", j)
		}
	}
	if e.VisibilityGate.Feedback == "" {
		add("visibility_gate.feedback is required")
	}
	return errs
}

func (r Rule) validate() error {
	want, ok := predicateKinds[r.Kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	if !slices.Contains(want.predicates, r.Predicate) {
		return fmt.Errorf("predicate %q not valid for kind %q", r.Predicate, r.Kind)
	}
	if want.landmarks > 0 && len(r.Landmarks) != want.landmarks {
		return fmt.Errorf("kind %q needs %d landmarks, got %d", r.Kind, want.landmarks, len(r.Landmarks))
	}
	if len(r.Landmarks) == 0 {
		return fmt.Errorf("landmarks are required")
	}
	for _, j := range r.Landmarks {
		if !validJoint(j) {
			return fmt.Errorf("landmark %d out of range", j)
		}
	}
	if r.Feedback == "" {
		return fmt.Errorf("feedback is required")
	}
	return nil
}

func validJoint(j Joint) bool {
	return j >= 0 && int(j) < pose.NumLandmarks
}
