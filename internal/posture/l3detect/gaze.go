package l3detect

// GazeDownDetector fires when most frames with a gaze estimate are
// looking down.
type GazeDownDetector struct {
	T Thresholds
}

func (GazeDownDetector) Label() Label { return GazeDown }

// Detect compares the looking-down count against the frames that carry a
// gaze estimate; frames without a detected face do not dilute the ratio.
func (d GazeDownDetector) Detect(w Frames) bool {
	withGaze, down := 0, 0
	for i := 0; i < w.Len(); i++ {
		g := w.At(i).Gaze
		if g == nil {
			continue
		}
		withGaze++
		if g.Yaw < d.T.GazeDownYaw {
			down++
		}
	}
	if withGaze == 0 {
		return false
	}
	return float64(down) > float64(withGaze)*d.T.GazeDownRatio
}
