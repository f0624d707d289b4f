package l3detect

// Label identifies one behavior the detectors can report.
type Label string

const (
	GazeDown   Label = "gaze_down"
	BodySway   Label = "body_sway"
	HeadTilt   Label = "head_tilt"
	HandOnFace Label = "hand_on_face"
	TurnedAway Label = "turned_away"
)

var allLabels = []Label{GazeDown, BodySway, HeadTilt, HandOnFace, TurnedAway}

var displayNames = map[Label]string{
	GazeDown:   "Looking down",
	BodySway:   "Swaying side to side",
	HeadTilt:   "Head tilted",
	HandOnFace: "Hand near face",
	TurnedAway: "Turned away",
}

// AllLabels returns every label in report order.
func AllLabels() []Label {
	out := make([]Label, len(allLabels))
	copy(out, allLabels)
	return out
}

// DisplayName returns the human readable action name for l.
func (l Label) DisplayName() string {
	if name, ok := displayNames[l]; ok {
		return name
	}
	return string(l)
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	_, ok := displayNames[l]
	return ok
}
