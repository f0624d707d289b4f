package l4events

import (
	"testing"

	"github.com/banshee-data/posture.report/internal/posture/l3detect"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const window = 40

func newTracker() *Tracker {
	return NewTracker(l3detect.AllLabels(), window)
}

func labels(ls ...l3detect.Label) []l3detect.Label { return ls }

// ---------------------------------------------------------------------------
// Edge triggering
// ---------------------------------------------------------------------------

func TestSinglePeriodFromFalseFalseTrueTrueFalse(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	verdicts := []bool{false, false, true, true, false}
	for i, on := range verdicts {
		frame := 41 + i
		var detected []l3detect.Label
		if on {
			detected = labels(l3detect.BodySway)
		}
		tr.Update(frame, detected)
	}

	want := []Period{{Label: l3detect.BodySway, StartFrame: 43 - window, EndFrame: 45 - window}}
	if diff := cmp.Diff(want, tr.Periods(l3detect.BodySway)); diff != "" {
		t.Errorf("periods mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, tr.Active())
	for _, l := range l3detect.AllLabels() {
		if l != l3detect.BodySway {
			assert.Empty(t, tr.Periods(l), l)
		}
	}
}

func TestEdgesClampToFrameOne(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	tr.Update(30, labels(l3detect.GazeDown))
	tr.Update(31, nil)

	got := tr.Periods(l3detect.GazeDown)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].StartFrame)
	assert.Equal(t, 1, got[0].EndFrame)
	assert.LessOrEqual(t, got[0].StartFrame, got[0].EndFrame)
}

func TestSteadyStateEmitsNothing(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	first := tr.Update(50, labels(l3detect.HeadTilt))
	require.Len(t, first, 1)
	assert.Equal(t, Started, first[0].Kind)
	assert.Equal(t, 10, first[0].Frame)

	for f := 51; f < 60; f++ {
		assert.Empty(t, tr.Update(f, labels(l3detect.HeadTilt)))
	}
	assert.Equal(t, labels(l3detect.HeadTilt), tr.Active())
	assert.Empty(t, tr.Periods(l3detect.HeadTilt))
}

func TestPeriodsStayChronological(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	seq := []bool{true, false, false, true, true, false, true}
	for i, on := range seq {
		var detected []l3detect.Label
		if on {
			detected = labels(l3detect.TurnedAway)
		}
		tr.Update(100+i, detected)
	}

	got := tr.Periods(l3detect.TurnedAway)
	require.Len(t, got, 2)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].StartFrame, got[i-1].EndFrame, "periods overlap")
	}
	assert.Equal(t, labels(l3detect.TurnedAway), tr.Active())
}

func TestTransitionsInLabelOrder(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	got := tr.Update(60, labels(l3detect.TurnedAway, l3detect.GazeDown))
	require.Len(t, got, 2)
	assert.Equal(t, l3detect.GazeDown, got[0].Label)
	assert.Equal(t, l3detect.TurnedAway, got[1].Label)
	assert.Equal(t, "started", got[0].Kind.String())
}

// ---------------------------------------------------------------------------
// Finalize
// ---------------------------------------------------------------------------

func TestFinalizeClosesAtLastFrame(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	tr.Update(50, labels(l3detect.HandOnFace))
	tr.Update(51, labels(l3detect.HandOnFace))

	closed := tr.Finalize(51)
	require.Len(t, closed, 1)
	assert.Equal(t, Ended, closed[0].Kind)

	want := []Period{{Label: l3detect.HandOnFace, StartFrame: 10, EndFrame: 51}}
	assert.Equal(t, want, tr.Periods(l3detect.HandOnFace))

	// second call is a no-op
	assert.Empty(t, tr.Finalize(51))
	assert.Len(t, tr.Periods(l3detect.HandOnFace), 1)
	assert.Empty(t, tr.Active())
}

func TestFinalizeWithNothingActive(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	assert.Empty(t, tr.Finalize(0))
	for l, ps := range tr.AllPeriods() {
		assert.NotNil(t, ps, l)
		assert.Empty(t, ps, l)
	}
}

func TestObserveTracksLastFrame(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	tr.Observe(7)
	assert.Equal(t, 7, tr.LastFrame())
	tr.Update(8, nil)
	assert.Equal(t, 8, tr.LastFrame())
	assert.Equal(t, l3detect.AllLabels(), tr.Labels())
}

func TestTransitionKindText(t *testing.T) {
	t.Parallel()

	for _, k := range []TransitionKind{Started, Ended} {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var got TransitionKind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}
	var k TransitionKind
	assert.Error(t, k.UnmarshalText([]byte("paused")))
}
