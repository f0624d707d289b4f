// Package l3detect owns Layer 3 (Detection) of the posture data model.
//
// Responsibilities: the fixed, enumerable set of behavior labels and one
// pure Detector per label. Every detector reads the current window and
// returns a single verdict; none of them mutate the window or keep state.
// Missing pose, gaze or bbox data for a frame is excluded from the
// detector's computation, never treated as zero.
//
// Dependency rule: L3 may depend on L1-L2.
package l3detect
