package session

import (
	"fmt"

	"go.uber.org/multierr"
)

// PlanItem is one exercise of a workout plan.
type PlanItem struct {
	ExerciseKey string `json:"exercise_key" yaml:"exercise_key"`
	TargetSets  int    `json:"target_sets" yaml:"target_sets"`
	TargetReps  int    `json:"target_reps" yaml:"target_reps"`
}

// Plan is an ordered workout.
type Plan []PlanItem

// Validate reports every malformed item. Keys are not checked against a catalog.
func (p Plan) Validate() error {
	var err error
	seen := make(map[string]bool, len(p))
	for i, it := range p {
		if it.ExerciseKey == "" {
			err = multierr.Append(err, fmt.Errorf("plan[%d]: exercise_key is required", i))
		} else if seen[it.ExerciseKey] {
			err = multierr.Append(err, fmt.Errorf("plan[%d]: duplicate exercise %q", i, it.ExerciseKey))
		}
		seen[it.ExerciseKey] = true
		if it.TargetSets < 1 {
			err = multierr.Append(err, fmt.Errorf("plan[%d]: target_sets must be at least 1, got %d", i, it.TargetSets))
		}
		if it.TargetReps < 1 {
			err = multierr.Append(err, fmt.Errorf("plan[%d]: target_reps must be at least 1, got %d", i, it.TargetReps))
		}
	}
	return err
}

func (p Plan) find(key string) (int, bool) {
	for i, it := range p {
		if it.ExerciseKey == key {
			return i, true
		}
	}
	return -1, false
}
