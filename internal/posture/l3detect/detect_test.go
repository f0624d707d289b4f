package l3detect

import (
	"testing"

	"github.com/banshee-data/posture.report/internal/posture/l1samples"
	"github.com/banshee-data/posture.report/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Thresholds { return DefaultThresholds() }

// ---------------------------------------------------------------------------
// Labels / Set
// ---------------------------------------------------------------------------

func TestSetOrderMatchesAllLabels(t *testing.T) {
	t.Parallel()

	set := NewSet(defaults())
	assert.Equal(t, AllLabels(), set.Labels())
	for _, l := range AllLabels() {
		assert.True(t, l.Valid())
		assert.NotEqual(t, string(l), l.DisplayName())
	}
	assert.False(t, Label("slouching").Valid())
	assert.Equal(t, "slouching", Label("slouching").DisplayName())
}

func TestDefaultThresholds(t *testing.T) {
	t.Parallel()

	th := defaults()
	assert.InDelta(t, 0.5, th.Confidence, 1e-9)
	assert.InDelta(t, -0.25, th.GazeDownYaw, 1e-9)
	assert.InDelta(t, 0.6, th.GazeDownRatio, 1e-9)
	assert.InDelta(t, 0.25, th.BodySwayRatio, 1e-9)
	assert.InDelta(t, 0.2, th.BodySwayCancellation, 1e-9)
	assert.Equal(t, 10, th.BodySwayMinFrames)
	assert.InDelta(t, 0.25, th.HeadTiltThreshold, 1e-9)
	assert.Equal(t, 5, th.HeadTiltMinFrames)
	assert.InDelta(t, 0.25, th.HandEyeRatio, 1e-9)
	assert.InDelta(t, 0.1, th.HandOnFaceRatio, 1e-9)
	assert.InDelta(t, 0.5, th.TurnedAwayRatio, 1e-9)
	assert.InDelta(t, 100, th.FallbackBBoxWidth, 1e-9)
}

func TestStillSubjectTriggersNothing(t *testing.T) {
	t.Parallel()

	w := Samples(testutil.StillFrames(40, 320))
	assert.Empty(t, NewSet(defaults()).Detect(w))
}

func TestEmptyWindowTriggersNothing(t *testing.T) {
	t.Parallel()
	assert.Empty(t, NewSet(defaults()).Detect(Samples(nil)))
}

// ---------------------------------------------------------------------------
// gaze_down
// ---------------------------------------------------------------------------

func TestGazeDown(t *testing.T) {
	t.Parallel()

	d := GazeDownDetector{T: defaults()}
	frames := func(yaws ...float64) Samples {
		out := make(Samples, len(yaws))
		for i, y := range yaws {
			out[i] = testutil.WithYaw(testutil.Frame(i+1, testutil.FacingPose(320), 320), y)
		}
		return out
	}

	t.Run("all below threshold", func(t *testing.T) {
		assert.True(t, d.Detect(frames(-0.5, -0.3, -0.26, -1.0)))
	})
	t.Run("all above threshold", func(t *testing.T) {
		assert.False(t, d.Detect(frames(-0.2, 0, 0.4, -0.25)))
	})
	t.Run("exactly sixty percent is not enough", func(t *testing.T) {
		assert.False(t, d.Detect(frames(-0.5, -0.5, -0.5, 0, 0)))
	})
	t.Run("missing gaze is excluded from the ratio", func(t *testing.T) {
		w := frames(-0.5, -0.5, -0.5, 0)
		for i := 0; i < 6; i++ {
			s := testutil.Frame(10+i, testutil.FacingPose(320), 320)
			s.Gaze = nil
			w = append(w, s)
		}
		assert.True(t, d.Detect(w))
	})
	t.Run("no gaze at all", func(t *testing.T) {
		w := Samples{{FrameIndex: 1}, {FrameIndex: 2}}
		assert.False(t, d.Detect(w))
	})
}

// ---------------------------------------------------------------------------
// body_sway
// ---------------------------------------------------------------------------

func TestBodySwayOscillationVersusDrift(t *testing.T) {
	t.Parallel()

	d := BodySwayDetector{T: defaults()}

	sway := Samples(testutil.SwayingFrames(40, 320, 10))
	m := d.Metrics(sway)
	require.Equal(t, 40, m.Frames)
	assert.Greater(t, m.AbsSum, 0.25)
	assert.Less(t, m.Cancellation, 0.2)
	assert.True(t, d.Detect(sway))

	drift := Samples(testutil.DriftingFrames(40, 200, 5))
	m = d.Metrics(drift)
	assert.Greater(t, m.AbsSum, 0.25)
	assert.InDelta(t, 1.0, m.Cancellation, 1e-9)
	assert.False(t, d.Detect(drift))
}

func TestBodySwayTooSmall(t *testing.T) {
	t.Parallel()

	// ±0.5 px on a 200 px box: oscillating, but A = 39 * 0.005 stays under 0.25.
	d := BodySwayDetector{T: defaults()}
	w := Samples(testutil.SwayingFrames(40, 320, 0.5))
	m := d.Metrics(w)
	assert.Less(t, m.AbsSum, 0.25)
	assert.False(t, d.Detect(w))
}

func TestBodySwayRequiresMinimumFrames(t *testing.T) {
	t.Parallel()

	d := BodySwayDetector{T: defaults()}
	assert.False(t, d.Detect(Samples(testutil.SwayingFrames(9, 320, 20))))

	// Enough window frames, but most lack a bbox.
	w := Samples(testutil.SwayingFrames(20, 320, 20))
	for i := 0; i < 11; i++ {
		w[i].BBox = nil
	}
	assert.Equal(t, 9, d.Metrics(w).Frames)
	assert.False(t, d.Detect(w))
}

func TestBodySwayShouldersOnlyFallback(t *testing.T) {
	t.Parallel()

	d := BodySwayDetector{T: defaults()}
	w := Samples(testutil.SwayingFrames(30, 320, 10))
	for i := range w {
		p := append(l1samples.Pose(nil), w[i].Pose...)
		p[l1samples.LeftHip].Confidence = 0.1
		w[i].Pose = p
	}
	assert.True(t, d.Detect(w))

	// Truncated poses with no hip slots still qualify on shoulders.
	for i := range w {
		w[i].Pose = w[i].Pose[:l1samples.RightShoulder+1]
	}
	assert.Equal(t, 30, d.Metrics(w).Frames)
	assert.True(t, d.Detect(w))
}

func TestBodySwayDegenerateBBoxUsesFallbackWidth(t *testing.T) {
	t.Parallel()

	d := BodySwayDetector{T: defaults()}
	w := Samples(testutil.SwayingFrames(12, 320, 10))
	for i := range w {
		w[i].BBox = &l1samples.BBox{X1: 50, X2: 50}
	}
	m := d.Metrics(w)
	// 11 deltas of 20 px over the 100 px fallback.
	assert.InDelta(t, 11*0.2, m.AbsSum, 1e-9)
}

// ---------------------------------------------------------------------------
// head_tilt
// ---------------------------------------------------------------------------

func TestHeadTilt(t *testing.T) {
	t.Parallel()

	d := HeadTiltDetector{T: defaults()}
	build := func(n int, rise float64) Samples {
		out := make(Samples, n)
		for i := range out {
			out[i] = testutil.Frame(i+1, testutil.TiltedPose(320, rise), 320)
		}
		return out
	}

	t.Run("level eyes", func(t *testing.T) {
		w := build(10, 0)
		angles := d.TiltAngles(w)
		require.Len(t, angles, 10)
		assert.InDelta(t, 0, angles[0], 1e-9)
		assert.False(t, d.Detect(w))
	})
	t.Run("clearly tilted", func(t *testing.T) {
		assert.True(t, d.Detect(build(10, 10)))
	})
	t.Run("slightly tilted", func(t *testing.T) {
		assert.False(t, d.Detect(build(10, 5)))
	})
	t.Run("fewer than five usable frames", func(t *testing.T) {
		assert.False(t, d.Detect(build(4, 10)))
	})
	t.Run("low confidence eyes are skipped", func(t *testing.T) {
		w := build(10, 10)
		for i := 0; i < 6; i++ {
			p := append(l1samples.Pose(nil), w[i].Pose...)
			p[l1samples.RightEye].Confidence = 0.3
			w[i].Pose = p
		}
		assert.Len(t, d.TiltAngles(w), 4)
		assert.False(t, d.Detect(w))
	})
	t.Run("vertical eye line is skipped", func(t *testing.T) {
		w := build(6, 0)
		p := append(l1samples.Pose(nil), w[0].Pose...)
		p[l1samples.RightEye].X = p[l1samples.LeftEye].X
		w[0].Pose = p
		assert.Len(t, d.TiltAngles(w), 5)
	})
}

// ---------------------------------------------------------------------------
// hand_on_face
// ---------------------------------------------------------------------------

func TestHandOnFace(t *testing.T) {
	t.Parallel()

	d := HandOnFaceDetector{T: defaults()}
	build := func(total, onFace int) Samples {
		out := make(Samples, total)
		for i := range out {
			pose := testutil.FacingPose(320)
			if i < onFace {
				pose = testutil.HandOnFacePose(320)
			}
			out[i] = testutil.Frame(i+1, pose, 320)
		}
		return out
	}

	assert.False(t, d.Detect(build(40, 0)))
	assert.False(t, d.Detect(build(40, 4)), "exactly 10% is not enough")
	assert.True(t, d.Detect(build(40, 5)))

	t.Run("missing bbox does not count", func(t *testing.T) {
		w := build(40, 10)
		for i := range w {
			w[i].BBox = nil
		}
		assert.False(t, d.Detect(w))
	})

	t.Run("ear closer than eye", func(t *testing.T) {
		pose := testutil.FacingPose(320)
		// 60 px from the eye (0.3 of the box) but 10 px from the ear.
		pose[l1samples.LeftWrist] = l1samples.Keypoint{X: pose[l1samples.LeftEar].X + 10, Y: pose[l1samples.LeftEar].Y + 50, Confidence: 0.9}
		pose[l1samples.LeftEar].Y = pose[l1samples.LeftWrist].Y - 10
		s := testutil.Frame(1, pose, 320)
		assert.True(t, d.handNearFace(s))

	})

	t.Run("low confidence ear still counts", func(t *testing.T) {
		pose := testutil.FacingPose(320)
		pose[l1samples.LeftWrist] = l1samples.Keypoint{X: pose[l1samples.LeftEar].X + 10, Y: pose[l1samples.LeftEar].Y + 50, Confidence: 0.9}
		pose[l1samples.LeftEar].Y = pose[l1samples.LeftWrist].Y - 10
		pose[l1samples.LeftEar].Confidence = 0.2
		assert.True(t, d.handNearFace(testutil.Frame(1, pose, 320)))

		// The eye still gates the side.
		pose[l1samples.LeftEye].Confidence = 0.2
		assert.False(t, d.handNearFace(testutil.Frame(1, pose, 320)))
	})

	t.Run("invisible wrist", func(t *testing.T) {
		pose := testutil.HandOnFacePose(320)
		pose[l1samples.LeftWrist].Confidence = 0.4
		assert.False(t, d.handNearFace(testutil.Frame(1, pose, 320)))
	})
}

// ---------------------------------------------------------------------------
// turned_away
// ---------------------------------------------------------------------------

func TestTurnedAway(t *testing.T) {
	t.Parallel()

	d := TurnedAwayDetector{T: defaults()}
	build := func(total, turned int) Samples {
		out := make(Samples, total)
		for i := range out {
			pose := testutil.FacingPose(320)
			if i < turned {
				pose = testutil.TurnedAwayPose(320)
			}
			out[i] = testutil.Frame(i+1, pose, 320)
		}
		return out
	}

	assert.False(t, d.Detect(build(40, 0)))
	assert.False(t, d.Detect(build(40, 20)), "exactly half is not enough")
	assert.True(t, d.Detect(build(40, 21)))

	t.Run("frames without pose still count in the denominator", func(t *testing.T) {
		w := build(30, 16)
		for i := 16; i < 30; i++ {
			w[i].Pose = nil
		}
		assert.True(t, d.Detect(w))
		w = append(w, make(Samples, 2)...)
		assert.False(t, d.Detect(w))
	})
}
