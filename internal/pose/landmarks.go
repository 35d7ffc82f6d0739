// Package pose defines body landmarks as delivered by an external pose detector.
package pose

// Body landmark indices following the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

var names = [NumLandmarks]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer", "right_eye_inner", "right_eye",
	"right_eye_outer", "left_ear", "right_ear", "mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow", "left_wrist", "right_wrist",
	"left_pinky", "right_pinky", "left_index", "right_index", "left_thumb", "right_thumb",
	"left_hip", "right_hip", "left_knee", "right_knee", "left_ankle", "right_ankle",
	"left_heel", "right_heel", "left_foot_index", "right_foot_index",
}

// Name returns the joint name for id, or "" when id is outside the scheme.
func Name(id int) string {
	if id < 0 || id >= NumLandmarks {
		return ""
	}
	return names[id]
}

// ID returns the joint id for a name such as "right_elbow".
func ID(name string) (int, bool) {
	for id, n := range names {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// Landmark is one detected joint in pixel space.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// Frame holds the landmarks of one detector result, indexed by joint id.
// A frame shorter than a referenced id does not know that joint.
type Frame []Landmark

// At returns the landmark for id and whether the frame contains it.
func (f Frame) At(id int) (Landmark, bool) {
	if id < 0 || id >= len(f) {
		return Landmark{}, false
	}
	return f[id], true
}

// Empty reports whether the detector found no person.
func (f Frame) Empty() bool {
	return len(f) == 0
}

// Scale converts normalized detector coordinates ([0,1] on both axes) into
// pixel space for a width x height image. Visibility is carried unchanged.
func Scale(normalized []Landmark, width, height float64) Frame {
	out := make(Frame, len(normalized))
	for i, lm := range normalized {
		out[i] = Landmark{
			X:          lm.X * width,
			Y:          lm.Y * height,
			Visibility: lm.Visibility,
		}
	}
	return out
}
