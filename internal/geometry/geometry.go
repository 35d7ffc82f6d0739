// Package geometry turns landmark positions into joint angles and completion
// percentages.
package geometry

import (
	"fmt"
	"math"

	"github.com/claude/repcoach/internal/pose"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// ProgressType selects which end of an angle range counts as full completion.
type ProgressType string

const (
	// ProgressNormal: a small angle is high completion (curls, squats).
	ProgressNormal ProgressType = "normal"
	// ProgressInverse: a large angle is high completion (bridges, leg raises).
	ProgressInverse ProgressType = "inverse"
)

// progressOutputs maps the angle range endpoints onto completion endpoints.
var progressOutputs = map[ProgressType][2]float64{
	ProgressNormal:  {100, 0},
	ProgressInverse: {0, 100},
}

// Valid reports whether p is a known progress type.
func (p ProgressType) Valid() bool {
	_, ok := progressOutputs[p]
	return ok
}

// Triple is three joint ids; the angle is measured at the middle one.
type Triple [3]int

func vec(l pose.Landmark) r2.Vec {
	return r2.Vec{X: l.X, Y: l.Y}
}

// JointAngle returns the angle at p2 between the rays to p1 and p3, in degrees
// within [0, 180].
func JointAngle(p1, p2, p3 pose.Landmark) float64 {
	a := r2.Sub(vec(p1), vec(p2))
	c := r2.Sub(vec(p3), vec(p2))
	radians := math.Atan2(c.Y, c.X) - math.Atan2(a.Y, a.X)
	angle := math.Abs(radians * 180.0 / math.Pi)
	if angle > 180.0 {
		angle = 360 - angle
	}
	return angle
}

// Lerp maps x from [inMin, inMax] onto [outMin, outMax]. inMin must differ from inMax.
func Lerp(x, inMin, inMax, outMin, outMax float64) float64 {
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// CompletionPercentage maps angle through angleRange according to the progress
// type, clamped to [0, 100]. An unknown progress type is treated as normal.
func CompletionPercentage(angle float64, angleRange [2]float64, progress ProgressType) float64 {
	out, ok := progressOutputs[progress]
	if !ok {
		out = progressOutputs[ProgressNormal]
	}
	per := Lerp(angle, angleRange[0], angleRange[1], out[0], out[1])
	return math.Max(0, math.Min(100, per))
}

// AngleAt computes the joint angle for t from frame. ok is false when any of the
// three joints is missing from the frame.
func AngleAt(frame pose.Frame, t Triple) (angle float64, ok bool) {
	p1, ok1 := frame.At(t[0])
	p2, ok2 := frame.At(t[1])
	p3, ok3 := frame.At(t[2])
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	return JointAngle(p1, p2, p3), true
}

// TrackedAngle computes the exercise angle for one or more triples. Bilateral
// exercises pass two triples and get the mean of both angles.
func TrackedAngle(frame pose.Frame, triples []Triple) (float64, bool) {
	if len(triples) == 0 {
		return 0, false
	}
	angles := make([]float64, 0, len(triples))
	for _, t := range triples {
		a, ok := AngleAt(frame, t)
		if !ok {
			return 0, false
		}
		angles = append(angles, a)
	}
	return stat.Mean(angles, nil), true
}

// Bar describes the on-screen movement bar in pixels.
type Bar struct {
	Top    float64 `yaml:"top" json:"top"`
	Height float64 `yaml:"height" json:"height"`
}

// DefaultBar matches a 1280x720 canvas layout.
func DefaultBar() Bar {
	return Bar{Top: 100, Height: 550}
}

// Position returns the pixel row for a completion percentage: 0% sits at the
// bottom of the bar, 100% at the top.
func (b Bar) Position(percentage float64) float64 {
	return Lerp(percentage, 0, 100, b.Top+b.Height, b.Top)
}

func (t Triple) String() string {
	return fmt.Sprintf("%s-%s-%s", pose.Name(t[0]), pose.Name(t[1]), pose.Name(t[2]))
}
