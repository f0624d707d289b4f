package l3detect

import (
	"github.com/banshee-data/posture.report/internal/posture/l1samples"
)

// Frames is the read-only view of the sliding window that detectors see.
// *l2window.Window satisfies it.
type Frames interface {
	Len() int
	At(i int) l1samples.FrameSample
}

// Samples adapts a plain slice to Frames.
type Samples []l1samples.FrameSample

func (s Samples) Len() int                       { return len(s) }
func (s Samples) At(i int) l1samples.FrameSample { return s[i] }

// Detector evaluates one label over the current window.
type Detector interface {
	Label() Label
	Detect(w Frames) bool
}

// Set is an ordered collection of detectors, one per label.
type Set []Detector

// NewSet returns the five standard detectors in report order.
func NewSet(t Thresholds) Set {
	return Set{
		GazeDownDetector{T: t},
		BodySwayDetector{T: t},
		HeadTiltDetector{T: t},
		HandOnFaceDetector{T: t},
		TurnedAwayDetector{T: t},
	}
}

// Labels returns the labels covered by the set, in order.
func (s Set) Labels() []Label {
	out := make([]Label, len(s))
	for i, d := range s {
		out[i] = d.Label()
	}
	return out
}

// Detect runs every detector against w and returns the labels that fired,
// in set order.
func (s Set) Detect(w Frames) []Label {
	var out []Label
	for _, d := range s {
		if d.Detect(w) {
			out = append(out, d.Label())
		}
	}
	return out
}
