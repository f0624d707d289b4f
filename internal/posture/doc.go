// Package posture runs one analysis session over a stream of frame samples.
//
// A Session wires the layered pipeline together:
//
//	l1samples  frame model and decoding
//	l2window   trailing FIFO window
//	l3detect   five label detectors
//	l4events   edge-triggered period tracker
//	l5summary  frame-skip correction and the final Report
//
// Sessions are single-writer. Independent sessions share nothing and may run
// on separate goroutines; the keyed store in internal/results coordinates
// them.
package posture
