package l5summary

import "math"

// BackendPeriod is one period in the project-service response shape.
type BackendPeriod struct {
	StartFrame      int     `json:"startFrame"`
	EndFrame        int     `json:"endFrame"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// BackendSummary is the per-action summary in the project-service shape.
type BackendSummary struct {
	TotalDurationSeconds float64 `json:"totalDurationSeconds"`
	OccurrenceCount      int     `json:"occurrenceCount"`
}

// BackendAction groups the periods of one detected action.
type BackendAction struct {
	ActionName string          `json:"actionName"`
	Periods    []BackendPeriod `json:"periods"`
	Summary    BackendSummary  `json:"summary"`
}

// BackendResponse is the camelCase body returned by POST /analysis/action.
// Seconds are rounded to one decimal place and only actions with at least
// one period are listed.
type BackendResponse struct {
	ProjectID            string          `json:"projectId"`
	TotalBadPostures     int             `json:"totalBadPostures"`
	TotalDurationSeconds float64         `json:"totalDurationSeconds"`
	DetectedActions      []BackendAction `json:"detectedActions"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ToBackend converts r into the project-service response shape.
func ToBackend(projectID string, r Report) BackendResponse {
	out := BackendResponse{
		ProjectID:            projectID,
		TotalBadPostures:     r.Summary.TotalEvents,
		TotalDurationSeconds: round1(r.Summary.TotalDurationSeconds),
		DetectedActions:      []BackendAction{},
	}
	for _, lr := range r.Labels {
		if len(lr.Periods) == 0 {
			continue
		}
		a := BackendAction{
			ActionName: lr.ActionName,
			Periods:    make([]BackendPeriod, 0, len(lr.Periods)),
			Summary: BackendSummary{
				TotalDurationSeconds: round1(lr.Summary.TotalDurationSeconds),
				OccurrenceCount:      lr.Summary.OccurrenceCount,
			},
		}
		for _, p := range lr.Periods {
			a.Periods = append(a.Periods, BackendPeriod{
				StartFrame:      p.StartFrame,
				EndFrame:        p.EndFrame,
				DurationSeconds: round1(p.DurationSeconds),
			})
		}
		out.DetectedActions = append(out.DetectedActions, a)
	}
	return out
}
