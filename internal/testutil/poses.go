package testutil

import (
	"github.com/banshee-data/posture.report/internal/posture/l1samples"
)

// Fixture geometry, in pixels. The subject faces the camera, so their
// left side appears on the image right.
const (
	FixtureBBoxWidth = 200.0
	fixtureConf      = 0.9
)

// FacingPose returns a full-confidence COCO-17 pose of an upright subject
// facing the camera with the torso centred on cx. Hands hang at the hips.
func FacingPose(cx float64) l1samples.Pose {
	p := make(l1samples.Pose, l1samples.NumKeypoints)
	set := func(i int, x, y float64) {
		p[i] = l1samples.Keypoint{X: x, Y: y, Confidence: fixtureConf}
	}
	set(l1samples.Nose, cx, 120)
	set(l1samples.LeftEye, cx+15, 100)
	set(l1samples.RightEye, cx-15, 100)
	set(l1samples.LeftEar, cx+30, 105)
	set(l1samples.RightEar, cx-30, 105)
	set(l1samples.LeftShoulder, cx+60, 200)
	set(l1samples.RightShoulder, cx-60, 200)
	set(l1samples.LeftElbow, cx+70, 300)
	set(l1samples.RightElbow, cx-70, 300)
	set(l1samples.LeftWrist, cx+75, 400)
	set(l1samples.RightWrist, cx-75, 400)
	set(l1samples.LeftHip, cx+40, 420)
	set(l1samples.RightHip, cx-40, 420)
	set(l1samples.LeftKnee, cx+40, 560)
	set(l1samples.RightKnee, cx-40, 560)
	set(l1samples.LeftAnkle, cx+40, 690)
	set(l1samples.RightAnkle, cx-40, 690)
	return p
}

// TurnedAwayPose mirrors FacingPose horizontally about cx, which is how
// the keypoints land when the subject shows their back to the camera.
func TurnedAwayPose(cx float64) l1samples.Pose {
	p := FacingPose(cx)
	for i := range p {
		p[i].X = 2*cx - p[i].X
	}
	return p
}

// TiltedPose returns FacingPose with the right eye raised by rise pixels.
func TiltedPose(cx, rise float64) l1samples.Pose {
	p := FacingPose(cx)
	p[l1samples.RightEye].Y -= rise
	return p
}

// HandOnFacePose returns FacingPose with the left wrist on the left eye.
func HandOnFacePose(cx float64) l1samples.Pose {
	p := FacingPose(cx)
	p[l1samples.LeftWrist].X = p[l1samples.LeftEye].X + 5
	p[l1samples.LeftWrist].Y = p[l1samples.LeftEye].Y + 5
	return p
}

// FixtureBBox returns the person box around a subject centred on cx.
func FixtureBBox(cx float64) *l1samples.BBox {
	return &l1samples.BBox{X1: cx - FixtureBBoxWidth/2, Y1: 50, X2: cx + FixtureBBoxWidth/2, Y2: 700}
}

// Frame builds a sample with pose, bbox and a level gaze.
func Frame(idx int, pose l1samples.Pose, cx float64) l1samples.FrameSample {
	return l1samples.FrameSample{
		FrameIndex: idx,
		Pose:       pose,
		Gaze:       &l1samples.Gaze{Pitch: 0, Yaw: 0},
		BBox:       FixtureBBox(cx),
	}
}

// WithYaw returns s with its gaze yaw replaced.
func WithYaw(s l1samples.FrameSample, yaw float64) l1samples.FrameSample {
	s.Gaze = &l1samples.Gaze{Yaw: yaw}
	return s
}

// SwayingFrames returns n frames whose torso alternates amp pixels either
// side of cx each frame.
func SwayingFrames(n int, cx, amp float64) []l1samples.FrameSample {
	out := make([]l1samples.FrameSample, n)
	for i := range out {
		x := cx - amp
		if i%2 == 1 {
			x = cx + amp
		}
		out[i] = Frame(i+1, FacingPose(x), x)
	}
	return out
}

// DriftingFrames returns n frames whose torso moves step pixels to the
// right each frame.
func DriftingFrames(n int, cx, step float64) []l1samples.FrameSample {
	out := make([]l1samples.FrameSample, n)
	for i := range out {
		x := cx + float64(i)*step
		out[i] = Frame(i+1, FacingPose(x), x)
	}
	return out
}

// StillFrames returns n frames of a still subject facing the camera.
func StillFrames(n int, cx float64) []l1samples.FrameSample {
	out := make([]l1samples.FrameSample, n)
	for i := range out {
		out[i] = Frame(i+1, FacingPose(cx), cx)
	}
	return out
}
