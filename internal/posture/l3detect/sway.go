package l3detect

import (
	"math"

	"github.com/banshee-data/posture.report/internal/posture/l1samples"
	"gonum.org/v1/gonum/floats"
)

// BodySwayDetector fires on side-to-side oscillation of the torso centre.
// Steady drift in one direction is not sway: displacements must largely
// cancel out while their absolute sum stays large.
type BodySwayDetector struct {
	T Thresholds
}

func (BodySwayDetector) Label() Label { return BodySway }

// SwayMetrics are the intermediate values of the sway computation.
type SwayMetrics struct {
	Frames       int     // Frames with usable torso and bbox
	NetSum       float64 // S = Σ Δi
	AbsSum       float64 // A = Σ |Δi|
	Cancellation float64 // |S| / A, or 1 when A == 0
}

func (d BodySwayDetector) Detect(w Frames) bool {
	if w.Len() < d.T.BodySwayMinFrames {
		return false
	}
	m := d.Metrics(w)
	if m.Frames < d.T.BodySwayMinFrames || m.AbsSum == 0 {
		return false
	}
	return m.Cancellation < d.T.BodySwayCancellation && m.AbsSum > d.T.BodySwayRatio
}

// Metrics computes the normalised torso displacements over w.
func (d BodySwayDetector) Metrics(w Frames) SwayMetrics {
	centers := make([]float64, 0, w.Len())
	widths := make([]float64, 0, w.Len())
	for i := 0; i < w.Len(); i++ {
		s := w.At(i)
		if s.BBox == nil {
			continue
		}
		cx, ok := d.torsoCenterX(s.Pose)
		if !ok {
			continue
		}
		centers = append(centers, cx)
		widths = append(widths, d.T.bboxWidth(s.BBox.Width()))
	}

	m := SwayMetrics{Frames: len(centers), Cancellation: 1}
	if len(centers) < 2 {
		return m
	}

	deltas := make([]float64, len(centers)-1)
	for i := 1; i < len(centers); i++ {
		deltas[i-1] = (centers[i] - centers[i-1]) / widths[i]
	}
	m.NetSum = floats.Sum(deltas)
	m.AbsSum = floats.Norm(deltas, 1)
	if m.AbsSum > 0 {
		m.Cancellation = math.Abs(m.NetSum) / m.AbsSum
	}
	return m
}

// torsoCenterX averages the shoulders, and the hips too when both are
// visible. Seated subjects often have no usable hips.
func (d BodySwayDetector) torsoCenterX(p l1samples.Pose) (float64, bool) {
	if !p.Has(l1samples.RightShoulder) {
		return 0, false
	}
	ls, rs := p[l1samples.LeftShoulder], p[l1samples.RightShoulder]
	if !ls.Visible(d.T.Confidence) || !rs.Visible(d.T.Confidence) {
		return 0, false
	}
	if p.Has(l1samples.RightHip) {
		lh, rh := p[l1samples.LeftHip], p[l1samples.RightHip]
		if lh.Visible(d.T.Confidence) && rh.Visible(d.T.Confidence) {
			return (ls.X + rs.X + lh.X + rh.X) / 4, true
		}
	}
	return (ls.X + rs.X) / 2, true
}
