package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests          *prometheus.CounterVec
	CounterFrames            *prometheus.CounterVec
	CounterReps              *prometheus.CounterVec
	CounterSetsFinished      *prometheus.CounterVec
	CounterExercisesFinished *prometheus.CounterVec

	// gauges
	GaugeActiveSessions prometheus.Gauge

	// histograms
	HistFrameDuration prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("repcoach", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("repcoach", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterFrames := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames",
		Help:      "The total number of processed landmark frames by program state",
	}, []string{"state"})
	counterReps := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reps",
		Help:      "Finished repetitions by exercise and quality",
	}, []string{"exercise", "quality"})
	counterSetsFinished := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sets_finished",
		Help:      "The total number of finished sets",
	}, []string{"exercise"})
	counterExercisesFinished := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "exercises_finished",
		Help:      "The total number of exercises completed through their last set",
	}, []string{"exercise"})

	gaugeActiveSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Current number of live sessions",
	})

	histFrameDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.000001, 0.0000025, 0.000005, 0.00001, 0.000025,
				0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.01, 0.1,
			},
			Name: "frame_duration_seconds",
			Help: "Time spent processing a single frame in seconds",
		},
	)

	return &Manager{
		CounterRequests:          counterRequests,
		CounterFrames:            counterFrames,
		CounterReps:              counterReps,
		CounterSetsFinished:      counterSetsFinished,
		CounterExercisesFinished: counterExercisesFinished,
		GaugeActiveSessions:      gaugeActiveSessions,
		HistFrameDuration:        histFrameDuration,
	}
}

// RecordSet counts a finished set and the repetitions it contained.
func (m *Manager) RecordSet(exercise string, good, bad int) {
	m.CounterSetsFinished.WithLabelValues(exercise).Inc()
	m.CounterReps.WithLabelValues(exercise, "good").Add(float64(good))
	m.CounterReps.WithLabelValues(exercise, "bad").Add(float64(bad))
}
