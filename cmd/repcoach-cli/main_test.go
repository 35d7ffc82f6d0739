package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/claude/repcoach/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- exercise_key: bicep_curl
  target_sets: 3
  target_reps: 8
- exercise_key: squat
  target_sets: 2
  target_reps: 12
`), 0o644))

	plan, err := loadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, session.Plan{
		{ExerciseKey: "bicep_curl", TargetSets: 3, TargetReps: 8},
		{ExerciseKey: "squat", TargetSets: 2, TargetReps: 12},
	}, plan)
}

func TestLoadPlanRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- exercise_key: squat\n  target_sets: 0\n  target_reps: 5\n"), 0o644))

	_, err := loadPlan(path)
	assert.Error(t, err)
}

func TestLoadPlanEmptyPath(t *testing.T) {
	plan, err := loadPlan("")
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"exercises", "replay", "mcp", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
