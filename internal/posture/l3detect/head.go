package l3detect

import (
	"math"

	"github.com/banshee-data/posture.report/internal/posture/l1samples"
	"gonum.org/v1/gonum/stat"
)

// HeadTiltDetector fires when the eye line is, on average, rotated away
// from horizontal.
type HeadTiltDetector struct {
	T Thresholds
}

func (HeadTiltDetector) Label() Label { return HeadTilt }

func (d HeadTiltDetector) Detect(w Frames) bool {
	angles := d.TiltAngles(w)
	if len(angles) < d.T.HeadTiltMinFrames {
		return false
	}
	return stat.Mean(angles, nil) > d.T.HeadTiltThreshold
}

// TiltAngles returns |atan2(dx, dy) + π/2| for each frame with both eyes
// visible, where (dx, dy) runs from the left eye to the right eye.
// Frames with a vertical eye line (dx == 0) are skipped.
func (d HeadTiltDetector) TiltAngles(w Frames) []float64 {
	var angles []float64
	for i := 0; i < w.Len(); i++ {
		p := w.At(i).Pose
		if !p.Has(l1samples.RightEye) {
			continue
		}
		le, re := p[l1samples.LeftEye], p[l1samples.RightEye]
		if !le.Visible(d.T.Confidence) || !re.Visible(d.T.Confidence) {
			continue
		}
		dx := re.X - le.X
		dy := re.Y - le.Y
		if dx == 0 {
			continue
		}
		angles = append(angles, math.Abs(math.Atan2(dx, dy)+math.Pi/2))
	}
	return angles
}
