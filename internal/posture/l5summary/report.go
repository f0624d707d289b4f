package l5summary

import (
	"github.com/banshee-data/posture.report/internal/posture/l3detect"
	"github.com/banshee-data/posture.report/internal/posture/l4events"
)

// NoEventsMessage is set on reports with zero periods across all labels.
const NoEventsMessage = "No bad postures detected."

// Settings records the analysis configuration a report was produced with.
type Settings struct {
	WindowDuration float64 `json:"window_duration"`
	FPS            float64 `json:"fps"`
	SkipFrames     int     `json:"skip_frames"`
	WindowSize     int     `json:"window_size"`
}

// PeriodStats is a period after frame-skip correction.
type PeriodStats struct {
	StartFrame      int     `json:"start_frame"`
	EndFrame        int     `json:"end_frame"`
	DurationFrames  int     `json:"duration_frames"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// LabelSummary totals the periods of one label.
type LabelSummary struct {
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	OccurrenceCount      int     `json:"occurrence_count"`
}

// LabelReport holds the corrected periods and summary for one label.
type LabelReport struct {
	Label      l3detect.Label `json:"label"`
	ActionName string         `json:"action_name"`
	Periods    []PeriodStats  `json:"periods"`
	Summary    LabelSummary   `json:"summary"`
}

// Overall is the cross-label summary.
type Overall struct {
	TotalEvents          int      `json:"total_events"`
	TotalDurationSeconds float64  `json:"total_duration_seconds"`
	AnalysisSettings     Settings `json:"analysis_settings"`
	Message              string   `json:"message,omitempty"`
}

// Report is the final output of a session. Labels is always populated for
// every tracked label, in label order, even when a label has no periods.
type Report struct {
	SessionID      string        `json:"session_id,omitempty"`
	FramesAnalyzed int           `json:"frames_analyzed"`
	Summary        Overall       `json:"summary"`
	Labels         []LabelReport `json:"labels"`
}

// Label returns the entry for l, or nil when l was not tracked.
func (r *Report) Label(l l3detect.Label) *LabelReport {
	for i := range r.Labels {
		if r.Labels[i].Label == l {
			return &r.Labels[i]
		}
	}
	return nil
}

// Correct maps a window-index period onto video frames.
func Correct(p l4events.Period, skip int, fps float64) PeriodStats {
	start := p.StartFrame * skip
	end := p.EndFrame * skip
	frames := end - start + 1
	return PeriodStats{
		StartFrame:      start,
		EndFrame:        end,
		DurationFrames:  frames,
		DurationSeconds: float64(frames) / fps,
	}
}

// Aggregate builds a Report from closed periods. labels fixes the order of
// Report.Labels; periods for labels outside that list are ignored.
func Aggregate(labels []l3detect.Label, periods map[l3detect.Label][]l4events.Period, s Settings) Report {
	r := Report{
		Summary: Overall{AnalysisSettings: s},
		Labels:  make([]LabelReport, 0, len(labels)),
	}

	for _, l := range labels {
		lr := LabelReport{
			Label:      l,
			ActionName: l.DisplayName(),
			Periods:    []PeriodStats{},
		}
		totalFrames := 0
		for _, p := range periods[l] {
			ps := Correct(p, s.SkipFrames, s.FPS)
			lr.Periods = append(lr.Periods, ps)
			totalFrames += ps.DurationFrames
		}
		lr.Summary = LabelSummary{
			TotalDurationSeconds: float64(totalFrames) / s.FPS,
			OccurrenceCount:      len(lr.Periods),
		}

		r.Summary.TotalEvents += lr.Summary.OccurrenceCount
		r.Summary.TotalDurationSeconds += lr.Summary.TotalDurationSeconds
		r.Labels = append(r.Labels, lr)
	}

	if r.Summary.TotalEvents == 0 {
		r.Summary.Message = NoEventsMessage
	}
	return r
}
