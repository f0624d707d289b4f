package l3detect

import "github.com/banshee-data/posture.report/internal/config"

// Thresholds holds the detector tuning. Distances are ratios of the
// person bounding-box width; angles are radians.
type Thresholds struct {
	Confidence float64 // Keypoint confidence above which a landmark is usable

	GazeDownYaw   float64 // Yaw below which a frame counts as looking down
	GazeDownRatio float64 // Fraction of gaze frames that must be looking down

	BodySwayRatio        float64 // Minimum summed |Δ| for the sway to be non-trivial
	BodySwayCancellation float64 // Maximum |S|/A for the movement to count as oscillation
	BodySwayMinFrames    int     // Frames with usable torso and bbox required

	HeadTiltThreshold float64 // Mean tilt angle above which the head counts as tilted
	HeadTiltMinFrames int     // Frames with both eyes visible required

	HandEyeRatio    float64 // Wrist-to-eye distance below which a hand is on the face
	HandOnFaceRatio float64 // Fraction of window frames with a hand on the face

	TurnedAwayRatio float64 // Fraction of window frames with flipped shoulders

	FallbackBBoxWidth float64 // Width used when a bbox is degenerate (x2 <= x1)
}

// DefaultThresholds returns the built-in detector thresholds.
func DefaultThresholds() Thresholds {
	return ThresholdsFromTuning(config.EmptyTuningConfig())
}

// ThresholdsFromTuning builds Thresholds from a loaded TuningConfig,
// falling back to defaults for fields the config leaves unset.
func ThresholdsFromTuning(cfg *config.TuningConfig) Thresholds {
	return Thresholds{
		Confidence:           cfg.GetConfidenceThreshold(),
		GazeDownYaw:          cfg.GetGazeDownYaw(),
		GazeDownRatio:        cfg.GetGazeDownRatio(),
		BodySwayRatio:        cfg.GetBodySwayRatio(),
		BodySwayCancellation: cfg.GetBodySwayCancellation(),
		BodySwayMinFrames:    cfg.GetBodySwayMinFrames(),
		HeadTiltThreshold:    cfg.GetHeadTiltThreshold(),
		HeadTiltMinFrames:    cfg.GetHeadTiltMinFrames(),
		HandEyeRatio:         cfg.GetHandEyeRatio(),
		HandOnFaceRatio:      cfg.GetHandOnFaceRatio(),
		TurnedAwayRatio:      cfg.GetTurnedAwayRatio(),
		FallbackBBoxWidth:    cfg.GetFallbackBBoxWidth(),
	}
}

func (t Thresholds) bboxWidth(w float64) float64 {
	if w > 0 {
		return w
	}
	return t.FallbackBBoxWidth
}
