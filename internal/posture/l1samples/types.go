package l1samples

import (
	"encoding/json"
	"fmt"
	"math"
)

// COCO-17 keypoint indices as emitted by the upstream pose model.
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
	NumKeypoints  = 17
)

// Keypoint is a single pose landmark in image pixel coordinates.
// On the wire it is a three element array [x, y, confidence].
type Keypoint struct {
	X          float64
	Y          float64
	Confidence float64
}

// Visible reports whether the keypoint confidence exceeds threshold.
func (k Keypoint) Visible(threshold float64) bool {
	return k.Confidence > threshold
}

// MarshalJSON encodes the keypoint as [x, y, confidence].
func (k Keypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{k.X, k.Y, k.Confidence})
}

// UnmarshalJSON decodes a [x, y, confidence] triple.
func (k *Keypoint) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("keypoint: %w", err)
	}
	if len(v) != 3 {
		return fmt.Errorf("keypoint: expected 3 values, got %d", len(v))
	}
	k.X, k.Y, k.Confidence = v[0], v[1], v[2]
	return nil
}

// Pose is the ordered keypoint sequence for the primary person in a frame.
type Pose []Keypoint

// Has reports whether the pose carries a slot for index i.
func (p Pose) Has(i int) bool {
	return i >= 0 && i < len(p)
}

// Gaze holds the estimated gaze angles in radians.
type Gaze struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// BBox is the person bounding box (x1, y1, x2, y2) in pixels.
// On the wire it is a four element array.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Width returns x2 - x1. It may be zero or negative for degenerate boxes.
func (b BBox) Width() float64 {
	return b.X2 - b.X1
}

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON decodes a [x1, y1, x2, y2] array. Extra trailing values
// (score, class id) from the detector output are ignored.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(v) < 4 {
		return fmt.Errorf("bbox: expected 4 values, got %d", len(v))
	}
	b.X1, b.Y1, b.X2, b.Y2 = v[0], v[1], v[2], v[3]
	return nil
}

// FrameSample is one analyzed frame. FrameIndex counts analyzed frames
// (1-based), not raw video frames. Pose, Gaze and BBox are nil when the
// corresponding model produced nothing for the frame.
type FrameSample struct {
	FrameIndex int   `json:"frame_index"`
	Pose       Pose  `json:"pose,omitempty"`
	Gaze       *Gaze `json:"gaze,omitempty"`
	BBox       *BBox `json:"bbox,omitempty"`
}

// Validate checks the sample for values no upstream model can produce.
// Missing fields are never an error.
func (s FrameSample) Validate() error {
	if s.FrameIndex < 1 {
		return fmt.Errorf("frame_index must be >= 1, got %d", s.FrameIndex)
	}
	for i, kp := range s.Pose {
		if !finite(kp.X) || !finite(kp.Y) || !finite(kp.Confidence) {
			return fmt.Errorf("frame %d: keypoint %d is not finite", s.FrameIndex, i)
		}
	}
	if s.Gaze != nil && (!finite(s.Gaze.Pitch) || !finite(s.Gaze.Yaw)) {
		return fmt.Errorf("frame %d: gaze is not finite", s.FrameIndex)
	}
	if s.BBox != nil && (!finite(s.BBox.X1) || !finite(s.BBox.Y1) || !finite(s.BBox.X2) || !finite(s.BBox.Y2)) {
		return fmt.Errorf("frame %d: bbox is not finite", s.FrameIndex)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
