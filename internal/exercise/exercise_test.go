package exercise

import (
	"encoding/json"
	"testing"

	"github.com/claude/repcoach/internal/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJointJSONUsesNames(t *testing.T) {
	b, err := json.Marshal([]Joint{pose.RightElbow, 99})
	require.NoError(t, err)
	assert.JSONEq(t, `["right_elbow", 99]`, string(b))

	var got []Joint
	require.NoError(t, json.Unmarshal([]byte(`["left_knee", 12]`), &got))
	assert.Equal(t, []Joint{pose.LeftKnee, pose.RightShoulder}, got)

	assert.Error(t, json.Unmarshal([]byte(`["left_antenna"]`), &got))
}

func TestTimingTotalRep(t *testing.T) {
	assert.InDelta(t, 7.0, DefaultTiming.TotalRep(), 1e-9)
}
