package posture

import "errors"

var (
	// ErrInvalidConfig is returned by NewSession for a configuration that
	// cannot produce a window (non-positive duration, rate or skip).
	ErrInvalidConfig = errors.New("invalid session config")

	// ErrOutOfOrder is returned when a frame index is lower than the last
	// ingested index.
	ErrOutOfOrder = errors.New("frame index out of order")

	// ErrDuplicateFrame is returned when a frame index repeats.
	ErrDuplicateFrame = errors.New("duplicate frame index")

	// ErrInvalidFrame wraps sample validation failures.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrFinalized is returned by Ingest after Finalize.
	ErrFinalized = errors.New("session finalized")
)
