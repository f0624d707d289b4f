// Package l2window owns Layer 2 (Window) of the posture data model.
//
// Responsibilities: the fixed-capacity trailing buffer of the most recent
// FrameSamples that every detector evaluates.
//
// Dependency rule: L2 may depend on L1 only.
package l2window
