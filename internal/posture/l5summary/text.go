package l5summary

import (
	"fmt"
	"io"
	"strings"
)

// WriteText prints a human readable summary of r, one block per label that
// has periods.
func WriteText(w io.Writer, r Report) error {
	var b strings.Builder
	rule := strings.Repeat("=", 50)
	fmt.Fprintf(&b, "%s\nAnalysis Results:\n%s\n", rule, rule)

	if r.Summary.TotalEvents == 0 {
		fmt.Fprintln(&b, NoEventsMessage)
	} else {
		fmt.Fprintf(&b, "%d bad postures detected in the video.\n", r.Summary.TotalEvents)
		for _, lr := range r.Labels {
			if len(lr.Periods) == 0 {
				continue
			}
			fmt.Fprintf(&b, "%s:\n", lr.ActionName)
			for i, p := range lr.Periods {
				fmt.Fprintf(&b, "   period %d: frame %d - frame %d (%.1fs)\n", i+1, p.StartFrame, p.EndFrame, p.DurationSeconds)
			}
			fmt.Fprintf(&b, "   total: %.1fs (%d occurrences)\n\n", lr.Summary.TotalDurationSeconds, lr.Summary.OccurrenceCount)
		}
		fmt.Fprintf(&b, "Total duration: %.1fs\n", r.Summary.TotalDurationSeconds)
	}

	s := r.Summary.AnalysisSettings
	fmt.Fprintf(&b, "Settings: window %.1fs, %.0f fps, skip %d (window size %d)\n",
		s.WindowDuration, s.FPS, s.SkipFrames, s.WindowSize)

	_, err := io.WriteString(w, b.String())
	return err
}
