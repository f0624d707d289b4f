// Package l5summary owns Layer 5 (Summary) of the posture data model.
//
// Responsibilities: converting closed periods from l4events into the
// externally consumed Report. Window-index frames are multiplied by the
// frame-skip factor to recover video frame numbers, durations are derived
// from the sampling rate, and per-label and overall totals are summed.
// Overall totals are plain sums; time during which several labels were
// active at once is counted once per label.
//
// Dependency rule: L5 may depend on L1-L4.
package l5summary
