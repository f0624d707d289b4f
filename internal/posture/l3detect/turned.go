package l3detect

import "github.com/banshee-data/posture.report/internal/posture/l1samples"

// TurnedAwayDetector fires when the shoulders appear flipped for more than
// TurnedAwayRatio of the window. Facing the camera, the subject's left
// shoulder sits on the image right (larger x); with the back to the
// camera the order reverses.
type TurnedAwayDetector struct {
	T Thresholds
}

func (TurnedAwayDetector) Label() Label { return TurnedAway }

func (d TurnedAwayDetector) Detect(w Frames) bool {
	count := 0
	for i := 0; i < w.Len(); i++ {
		p := w.At(i).Pose
		if !p.Has(l1samples.RightShoulder) {
			continue
		}
		ls, rs := p[l1samples.LeftShoulder], p[l1samples.RightShoulder]
		if !ls.Visible(d.T.Confidence) || !rs.Visible(d.T.Confidence) {
			continue
		}
		if rs.X > ls.X {
			count++
		}
	}
	return float64(count) > float64(w.Len())*d.T.TurnedAwayRatio
}
