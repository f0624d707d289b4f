// Package l4events owns Layer 4 (Events) of the posture data model.
//
// Responsibilities: the per-label edge-triggered state machine that turns
// the detector verdict stream into closed periods. Boundaries lag the true
// onset and offset by one window length on both edges; that is the
// documented behaviour of the heuristic, not an off-by-one.
//
// Dependency rule: L4 may depend on L1-L3.
package l4events
