package formcheck

import (
	"testing"

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/pose"
	"github.com/stretchr/testify/assert"
)

func fullFrame() pose.Frame {
	f := make(pose.Frame, pose.NumLandmarks)
	for i := range f {
		f[i] = pose.Landmark{X: 0, Y: 0, Visibility: 1}
	}
	return f
}

func set(f pose.Frame, id int, x, y float64) {
	f[id] = pose.Landmark{X: x, Y: y, Visibility: f[id].Visibility}
}

var pinElbow = exercise.Rule{
	Kind:      exercise.KindAngle,
	Landmarks: []exercise.Joint{pose.RightHip, pose.RightShoulder, pose.RightElbow},
	Predicate: exercise.AngleGreaterThan,
	Threshold: 30,
	Feedback:  "PIN YOUR ELBOW",
}

var upperBodyVisible = exercise.Rule{
	Kind:      exercise.KindVisibility,
	Landmarks: []exercise.Joint{pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip},
	Predicate: exercise.VisibilityRequired,
	Feedback:  "KEEP RIGHT UPPER BODY VISIBLE",
}

// curlFrame has the upper arm hanging along the torso (elbow pinned).
func curlFrame() pose.Frame {
	f := fullFrame()
	set(f, pose.RightShoulder, 600, 200)
	set(f, pose.RightHip, 600, 450)
	set(f, pose.RightElbow, 605, 330)
	set(f, pose.RightWrist, 560, 250)
	return f
}

func TestEvaluateAllGood(t *testing.T) {
	res := New(0).Evaluate(curlFrame(), []exercise.Rule{pinElbow, upperBodyVisible})
	assert.Equal(t, Good(), res)
	assert.Equal(t, "GOOD", res.Feedback)
}

func TestEvaluateFirstFailureWins(t *testing.T) {
	f := curlFrame()
	set(f, pose.RightElbow, 700, 200) // elbow flared out to shoulder height
	f[pose.RightWrist].Visibility = 0.1

	res := New(0).Evaluate(f, []exercise.Rule{pinElbow, upperBodyVisible})
	assert.False(t, res.IsFormGood)
	assert.Equal(t, "PIN YOUR ELBOW", res.Feedback)
	assert.Equal(t, 0, res.FailedRule)

	res = New(0).Evaluate(f, []exercise.Rule{upperBodyVisible, pinElbow})
	assert.Equal(t, "KEEP RIGHT UPPER BODY VISIBLE", res.Feedback)
	assert.Equal(t, 0, res.FailedRule)
}

func TestVisibilityRule(t *testing.T) {
	e := New(0)
	rules := []exercise.Rule{upperBodyVisible}

	f := curlFrame()
	f[pose.RightElbow].Visibility = 0.69
	assert.False(t, e.Evaluate(f, rules).IsFormGood)

	f[pose.RightElbow].Visibility = 0.7
	assert.True(t, e.Evaluate(f, rules).IsFormGood, "threshold is inclusive")

	short := curlFrame()[:pose.RightWrist]
	assert.False(t, e.Evaluate(short, rules).IsFormGood, "absent landmark fails closed")
}

func TestVisibilityRuleThresholdOverride(t *testing.T) {
	strict := upperBodyVisible
	strict.Threshold = 0.95
	f := curlFrame()
	f[pose.RightHip].Visibility = 0.9
	assert.False(t, New(0).Evaluate(f, []exercise.Rule{strict}).IsFormGood)
	assert.True(t, New(0).Evaluate(f, []exercise.Rule{upperBodyVisible}).IsFormGood)
}

func TestEvaluatorThreshold(t *testing.T) {
	assert.Equal(t, DefaultVisibilityThreshold, New(0).VisibilityThreshold())
	assert.Equal(t, DefaultVisibilityThreshold, New(-1).VisibilityThreshold())
	assert.Equal(t, 0.5, New(0.5).VisibilityThreshold())
}

func TestAngleRuleSkippedWhenLandmarkAbsent(t *testing.T) {
	short := curlFrame()[:pose.RightElbow]
	res := New(0).Evaluate(short, []exercise.Rule{pinElbow})
	assert.True(t, res.IsFormGood)
}

func TestAngleLessThan(t *testing.T) {
	chestUp := exercise.Rule{
		Kind:      exercise.KindAngle,
		Landmarks: []exercise.Joint{pose.RightShoulder, pose.RightHip, pose.RightKnee},
		Predicate: exercise.AngleLessThan,
		Threshold: 80,
		Feedback:  "KEEP CHEST UP",
	}
	f := fullFrame()
	set(f, pose.RightHip, 500, 400)
	set(f, pose.RightKnee, 650, 400)
	set(f, pose.RightShoulder, 500, 200) // torso upright: 90 degrees at hip
	assert.True(t, New(0).Evaluate(f, []exercise.Rule{chestUp}).IsFormGood)

	set(f, pose.RightShoulder, 650, 300) // folded forward
	assert.Equal(t, "KEEP CHEST UP", New(0).Evaluate(f, []exercise.Rule{chestUp}).Feedback)
}

func TestPositionalPredicates(t *testing.T) {
	tests := []struct {
		name      string
		predicate exercise.Predicate
		threshold float64
		a, b      [2]float64
		fails     bool
	}{
		{"upright body lean fails", exercise.LeanRatioBelow, 0.15, [2]float64{500, 200}, [2]float64{510, 450}, true},
		{"leaning body passes", exercise.LeanRatioBelow, 0.15, [2]float64{600, 200}, [2]float64{500, 450}, false},
		{"elbow well above shoulder fails", exercise.Above, 30, [2]float64{0, 150}, [2]float64{0, 200}, true},
		{"elbow slightly above shoulder passes", exercise.Above, 30, [2]float64{0, 180}, [2]float64{0, 200}, false},
		{"wrist above shoulder fails", exercise.Above, 0, [2]float64{0, 199}, [2]float64{0, 200}, true},
		{"wrist below shoulder passes", exercise.Above, 0, [2]float64{0, 201}, [2]float64{0, 200}, false},
		{"shoulders lifted fails", exercise.VerticalGapAbove, 40, [2]float64{0, 300}, [2]float64{0, 360}, true},
		{"shoulders grounded passes", exercise.VerticalGapAbove, 40, [2]float64{0, 340}, [2]float64{0, 360}, false},
		{"unknown predicate passes", exercise.Predicate("sideways"), 0, [2]float64{0, 0}, [2]float64{0, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fullFrame()
			set(f, pose.RightShoulder, tt.a[0], tt.a[1])
			set(f, pose.RightHip, tt.b[0], tt.b[1])
			rule := exercise.Rule{
				Kind:      exercise.KindPositional,
				Landmarks: []exercise.Joint{pose.RightShoulder, pose.RightHip},
				Predicate: tt.predicate,
				Threshold: tt.threshold,
				Feedback:  "BAD",
			}
			res := New(0).Evaluate(f, []exercise.Rule{rule})
			assert.Equal(t, !tt.fails, res.IsFormGood)
		})
	}
}

func TestPositionalSkippedWhenLandmarkAbsent(t *testing.T) {
	rule := exercise.Rule{
		Kind:      exercise.KindPositional,
		Landmarks: []exercise.Joint{pose.RightKnee, pose.RightHip},
		Predicate: exercise.Above,
		Feedback:  "KEEP THIGH ON CHAIR",
	}
	short := fullFrame()[:pose.RightKnee]
	assert.True(t, New(0).Evaluate(short, []exercise.Rule{rule}).IsFormGood)
}

func TestVisibilityOK(t *testing.T) {
	ids := []int{pose.RightShoulder, pose.RightHip}
	assert.False(t, VisibilityOK(nil, ids, 0.7))
	assert.False(t, VisibilityOK(pose.Frame{}, nil, 0.7), "empty frame fails even with no ids")
	assert.True(t, VisibilityOK(fullFrame(), ids, 0.7))

	f := fullFrame()
	f[pose.RightHip].Visibility = 0.2
	assert.False(t, VisibilityOK(f, ids, 0.7))
	assert.False(t, VisibilityOK(fullFrame()[:pose.RightShoulder+1], ids, 0.7))
}

func TestDefaultCatalogRulesOnNeutralFrame(t *testing.T) {
	c, err := exercise.Default()
	if err != nil {
		t.Fatal(err)
	}
	curl, _ := c.Get("bicep_curl")
	res := New(0).Evaluate(curlFrame(), curl.FormChecks)
	assert.True(t, res.IsFormGood, "feedback: %s", res.Feedback)
}
