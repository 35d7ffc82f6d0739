package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSet(t *testing.T) {
	m := NewTestManager()
	m.RecordSet("squat", 8, 2)
	m.RecordSet("squat", 10, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterSetsFinished.WithLabelValues("squat")))
	assert.Equal(t, 18.0, testutil.ToFloat64(m.CounterReps.WithLabelValues("squat", "good")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterReps.WithLabelValues("squat", "bad")))
}

func TestManagerRegistersOnRegistry(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	m.GaugeActiveSessions.Set(3)
	m.CounterFrames.WithLabelValues("TRACKING").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "repcoach_test_server_active_sessions")
	assert.Contains(t, names, "repcoach_test_server_frames")
}
