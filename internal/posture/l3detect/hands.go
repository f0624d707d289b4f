package l3detect

import (
	"math"

	"github.com/banshee-data/posture.report/internal/posture/l1samples"
)

// HandOnFaceDetector fires when a wrist is close to the face in more
// than HandOnFaceRatio of the window.
type HandOnFaceDetector struct {
	T Thresholds
}

func (HandOnFaceDetector) Label() Label { return HandOnFace }

func (d HandOnFaceDetector) Detect(w Frames) bool {
	count := 0
	for i := 0; i < w.Len(); i++ {
		if d.handNearFace(w.At(i)) {
			count++
		}
	}
	return float64(count) > float64(w.Len())*d.T.HandOnFaceRatio
}

func (d HandOnFaceDetector) handNearFace(s l1samples.FrameSample) bool {
	p := s.Pose
	if s.BBox == nil || !p.Has(l1samples.RightWrist) {
		return false
	}
	width := d.T.bboxWidth(s.BBox.Width())
	return d.sideNear(p[l1samples.LeftWrist], p[l1samples.LeftEye], p[l1samples.LeftEar], width) ||
		d.sideNear(p[l1samples.RightWrist], p[l1samples.RightEye], p[l1samples.RightEar], width)
}

// sideNear checks one side of the body. The wrist and eye must be
// visible. The ear shortens the distance whatever its confidence.
func (d HandOnFaceDetector) sideNear(wrist, eye, ear l1samples.Keypoint, width float64) bool {
	if !wrist.Visible(d.T.Confidence) || !eye.Visible(d.T.Confidence) {
		return false
	}
	dist := math.Min(distance(wrist, eye), distance(wrist, ear)) / width
	return dist < d.T.HandEyeRatio
}

func distance(a, b l1samples.Keypoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
