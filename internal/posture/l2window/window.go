package l2window

import (
	"math"

	"github.com/banshee-data/posture.report/internal/posture/l1samples"
)

// Capacity returns round(durationSeconds * samplingRate / frameSkip),
// clamped to at least 1. Callers validate the inputs beforehand.
func Capacity(durationSeconds, samplingRate float64, frameSkip int) int {
	if frameSkip <= 0 {
		return 1
	}
	n := int(math.Round(durationSeconds * samplingRate / float64(frameSkip)))
	if n < 1 {
		return 1
	}
	return n
}

// Window is a FIFO ring of FrameSamples. Pushing beyond capacity evicts
// the oldest sample. Not safe for concurrent use.
type Window struct {
	buf   []l1samples.FrameSample
	head  int // index of the oldest sample
	count int
}

// New creates an empty window. capacity < 1 is treated as 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]l1samples.FrameSample, capacity)}
}

// Push appends s, silently discarding the oldest sample when full.
func (w *Window) Push(s l1samples.FrameSample) {
	if w.count < len(w.buf) {
		w.buf[(w.head+w.count)%len(w.buf)] = s
		w.count++
		return
	}
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
}

// Len returns the number of samples currently held.
func (w *Window) Len() int { return w.count }

// Cap returns the configured capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether Len() == Cap().
func (w *Window) Full() bool { return w.count == len(w.buf) }

// At returns the i-th sample, oldest first. It panics when i is out of range.
func (w *Window) At(i int) l1samples.FrameSample {
	if i < 0 || i >= w.count {
		panic("l2window: index out of range")
	}
	return w.buf[(w.head+i)%len(w.buf)]
}

// Samples returns a copy of the contents, oldest first.
func (w *Window) Samples() []l1samples.FrameSample {
	out := make([]l1samples.FrameSample, w.count)
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}

// Reset empties the window without releasing its buffer.
func (w *Window) Reset() {
	clear(w.buf)
	w.head = 0
	w.count = 0
}
