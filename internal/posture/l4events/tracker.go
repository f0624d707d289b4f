package l4events

import (
	"fmt"

	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture/l3detect"
)

// Period is one closed interval during which a label was continuously
// active. Frames are analyzed-frame (window-index) numbers, not raw video
// frames; l5summary applies the frame-skip correction.
type Period struct {
	Label      l3detect.Label `json:"label"`
	StartFrame int            `json:"start_frame"`
	EndFrame   int            `json:"end_frame"`
}

// TransitionKind distinguishes the two edges of a period.
type TransitionKind int

const (
	Started TransitionKind = iota
	Ended
)

func (k TransitionKind) String() string {
	if k == Started {
		return "started"
	}
	return "ended"
}

// MarshalText encodes the kind as "started" or "ended".
func (k TransitionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText accepts "started" or "ended".
func (k *TransitionKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "started":
		*k = Started
	case "ended":
		*k = Ended
	default:
		return fmt.Errorf("unknown transition kind %q", b)
	}
	return nil
}

// Transition reports a single edge produced by Update or Finalize.
type Transition struct {
	Kind  TransitionKind `json:"kind"`
	Label l3detect.Label `json:"label"`
	Frame int            `json:"frame"`
}

type labelState struct {
	active bool
	start  int
}

// Tracker holds the active/inactive state for a fixed label set. It is not
// safe for concurrent use; a session owns exactly one.
type Tracker struct {
	labels     []l3detect.Label
	windowSize int
	state      map[l3detect.Label]*labelState
	periods    map[l3detect.Label][]Period
	last       int
}

// NewTracker creates a tracker for labels. windowSize is the sliding window
// capacity used to back-date both period edges.
func NewTracker(labels []l3detect.Label, windowSize int) *Tracker {
	t := &Tracker{
		labels:     append([]l3detect.Label(nil), labels...),
		windowSize: windowSize,
		state:      make(map[l3detect.Label]*labelState, len(labels)),
		periods:    make(map[l3detect.Label][]Period, len(labels)),
	}
	for _, l := range labels {
		t.state[l] = &labelState{}
	}
	return t
}

// edge is the back-dated frame used for both the start and end of a period
// when a detector flips.
func (t *Tracker) edge(frame int) int {
	return max(1, frame-t.windowSize)
}

// Update applies the detector verdicts for frame. Labels not in detected are
// treated as inactive. The returned transitions are in label order.
func (t *Tracker) Update(frame int, detected []l3detect.Label) []Transition {
	t.last = frame
	on := make(map[l3detect.Label]bool, len(detected))
	for _, l := range detected {
		on[l] = true
	}

	var out []Transition
	for _, l := range t.labels {
		st := t.state[l]
		switch {
		case !st.active && on[l]:
			st.active = true
			st.start = t.edge(frame)
			out = append(out, Transition{Kind: Started, Label: l, Frame: st.start})
			monitoring.Debugf("[Tracker] %s started at frame %d", l, st.start)
		case st.active && !on[l]:
			end := t.edge(frame)
			t.close(l, st, end)
			out = append(out, Transition{Kind: Ended, Label: l, Frame: end})
			monitoring.Debugf("[Tracker] %s ended at frame %d", l, end)
		}
	}
	return out
}

// Observe records frame as the most recent analyzed frame without running
// the state machine. Sessions call it for frames ingested before the window
// is large enough to analyze, so Finalize still closes at the true last
// frame.
func (t *Tracker) Observe(frame int) {
	t.last = frame
}

// Finalize closes every still-active label at lastFrame and clears all
// ongoing state. A second call finds nothing active and is a no-op.
func (t *Tracker) Finalize(lastFrame int) []Transition {
	if lastFrame > t.last {
		t.last = lastFrame
	}
	var out []Transition
	for _, l := range t.labels {
		st := t.state[l]
		if !st.active {
			continue
		}
		t.close(l, st, lastFrame)
		out = append(out, Transition{Kind: Ended, Label: l, Frame: lastFrame})
		monitoring.Debugf("[Tracker] %s closed at end of stream, frame %d", l, lastFrame)
	}
	return out
}

func (t *Tracker) close(l l3detect.Label, st *labelState, end int) {
	t.periods[l] = append(t.periods[l], Period{Label: l, StartFrame: st.start, EndFrame: end})
	st.active = false
	st.start = 0
}

// LastFrame returns the most recent frame passed to Update or Observe.
func (t *Tracker) LastFrame() int { return t.last }

// Active returns the labels currently open, in label order.
func (t *Tracker) Active() []l3detect.Label {
	var out []l3detect.Label
	for _, l := range t.labels {
		if t.state[l].active {
			out = append(out, l)
		}
	}
	return out
}

// Labels returns the tracked labels in order.
func (t *Tracker) Labels() []l3detect.Label {
	return append([]l3detect.Label(nil), t.labels...)
}

// Periods returns a copy of the closed periods for l, oldest first.
func (t *Tracker) Periods(l l3detect.Label) []Period {
	return append([]Period(nil), t.periods[l]...)
}

// AllPeriods returns closed periods for every label, keyed by label.
// Labels with no periods map to an empty, non-nil slice.
func (t *Tracker) AllPeriods() map[l3detect.Label][]Period {
	out := make(map[l3detect.Label][]Period, len(t.labels))
	for _, l := range t.labels {
		out[l] = t.Periods(l)
		if out[l] == nil {
			out[l] = []Period{}
		}
	}
	return out
}
