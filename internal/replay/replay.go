package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/repcoach/internal/clock"
	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/session"
	"gonum.org/v1/gonum/stat"
)

// Options configures a local replay.
type Options struct {
	Plan session.Plan
	// ExerciseKey starts with this exercise instead of the first of the plan.
	ExerciseKey string
	StartingSet int
	Config      session.Config
	Logger      *slog.Logger
	// OnFrame, when set, observes every processed frame.
	OnFrame func(Record, session.Output)
}

// Summary describes a finished replay.
type Summary struct {
	Frames    int                        `json:"frames"`
	Duration  time.Duration              `json:"duration"`
	Sets      []session.SetFinished      `json:"sets"`
	Exercises []session.ExerciseFinished `json:"exercises"`
	GoodReps  int                        `json:"good_reps"`
	BadReps   int                        `json:"bad_reps"`
	// Frame interval statistics in milliseconds.
	IntervalMean   float64          `json:"interval_mean_ms"`
	IntervalStdDev float64          `json:"interval_stddev_ms"`
	Final          session.Snapshot `json:"final"`
}

// epoch anchors recording timestamps on the mock clock.
var epoch = time.Unix(0, 0).UTC()

// Run drives every record of src through a new orchestrator whose clock follows
// the recording timestamps. Timestamps must not go backwards.
func Run(ctx context.Context, src *Reader, catalog *exercise.Catalog, opts Options) (Summary, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == (session.Config{}) {
		opts.Config = session.DefaultConfig()
	}

	var sum Summary
	clk := clock.NewMock(epoch)
	orch, err := session.New(catalog, opts.Plan, opts.StartingSet,
		session.WithClock(clk),
		session.WithConfig(opts.Config),
		session.WithLogger(opts.Logger),
		session.WithListener(session.ListenerFuncs{
			OnSetFinished: func(e session.SetFinished) {
				sum.Sets = append(sum.Sets, e)
				sum.GoodReps += e.GoodRepsInSet
				sum.BadReps += e.BadRepsInSet
			},
			OnExerciseFinished: func(e session.ExerciseFinished) {
				sum.Exercises = append(sum.Exercises, e)
			},
		}),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("replay: %w", err)
	}
	if opts.ExerciseKey != "" {
		if _, err := orch.SwitchExercise(opts.ExerciseKey, opts.StartingSet); err != nil {
			return Summary{}, fmt.Errorf("replay: %w", err)
		}
	}

	var (
		first, last int64
		intervals   []float64
	)
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("replay: %w", err)
		}
		if sum.Frames == 0 {
			first = rec.TMillis
		} else {
			if rec.TMillis < last {
				return sum, fmt.Errorf("replay: frame %d: timestamp %d ms before previous %d ms", sum.Frames+1, rec.TMillis, last)
			}
			intervals = append(intervals, float64(rec.TMillis-last))
		}
		frame, err := rec.Frame()
		if err != nil {
			return sum, fmt.Errorf("replay: frame %d: %w", sum.Frames+1, err)
		}

		clk.Set(epoch.Add(time.Duration(rec.TMillis) * time.Millisecond))
		out := orch.ProcessFrame(frame)
		if opts.OnFrame != nil {
			opts.OnFrame(rec, out)
		}
		last = rec.TMillis
		sum.Frames++
	}

	sum.Duration = time.Duration(last-first) * time.Millisecond
	switch {
	case len(intervals) > 1:
		sum.IntervalMean, sum.IntervalStdDev = stat.MeanStdDev(intervals, nil)
	case len(intervals) == 1:
		sum.IntervalMean = intervals[0]
	}
	sum.Final = orch.Snapshot()
	// Reps of a set still in progress have not been reported by an event.
	if sum.Final.State == session.StateTracking {
		sum.GoodReps += sum.Final.GoodReps
		sum.BadReps += sum.Final.BadReps
	}
	opts.Logger.Info("replay finished",
		"frames", sum.Frames, "duration", sum.Duration, "sets", len(sum.Sets), "good", sum.GoodReps, "bad", sum.BadReps)
	return sum, nil
}
