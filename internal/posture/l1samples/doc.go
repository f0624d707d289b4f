// Package l1samples owns Layer 1 (Samples) of the posture data model.
//
// Responsibilities: the immutable per-frame observation handed over by the
// pose and gaze models, the COCO-17 keypoint layout, and the JSON wire form
// used by the CLI and HTTP ingest paths.
// Key types: FrameSample, Keypoint, Gaze, BBox.
//
// Dependency rule: L1 depends on nothing else in internal/posture.
package l1samples
