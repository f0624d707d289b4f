package posture

import (
	"fmt"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture/l1samples"
	"github.com/banshee-data/posture.report/internal/posture/l2window"
	"github.com/banshee-data/posture.report/internal/posture/l3detect"
	"github.com/banshee-data/posture.report/internal/posture/l4events"
	"github.com/banshee-data/posture.report/internal/posture/l5summary"
)

// Update describes what one Ingest call did.
type Update struct {
	FrameIndex  int                    `json:"frame_index"`
	Analyzed    bool                   `json:"analyzed"`
	Active      []l3detect.Label       `json:"active"`
	Transitions []l4events.Transition `json:"transitions,omitempty"`
}

// Session is one analysis run. It is not safe for concurrent use.
type Session struct {
	id        string
	cfg       *config.TuningConfig
	settings  l5summary.Settings
	minFrames int

	window    *l2window.Window
	detectors l3detect.Set
	tracker   *l4events.Tracker

	lastIndex int
	ingested  int
	analyzed  int

	finalized bool
	report    l5summary.Report
}

// NewSession validates cfg and builds an empty session. A nil cfg uses the
// built-in defaults.
func NewSession(id string, cfg *config.TuningConfig) (*Session, error) {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	capacity := l2window.Capacity(cfg.GetWindowDurationSeconds(), cfg.GetSamplingRate(), cfg.GetFrameSkip())
	detectors := l3detect.NewSet(l3detect.ThresholdsFromTuning(cfg))

	s := &Session{
		id:  id,
		cfg: cfg,
		settings: l5summary.Settings{
			WindowDuration: cfg.GetWindowDurationSeconds(),
			FPS:            cfg.GetSamplingRate(),
			SkipFrames:     cfg.GetFrameSkip(),
			WindowSize:     capacity,
		},
		minFrames: min(cfg.GetMinAnalysisFrames(), capacity),
		window:    l2window.New(capacity),
		detectors: detectors,
		tracker:   l4events.NewTracker(detectors.Labels(), capacity),
	}
	monitoring.Debugf("[Session %s] window=%d min_frames=%d skip=%d fps=%.1f",
		id, capacity, s.minFrames, s.settings.SkipFrames, s.settings.FPS)
	return s, nil
}

// ID returns the identifier passed to NewSession.
func (s *Session) ID() string { return s.id }

// Settings returns the analysis settings recorded in reports.
func (s *Session) Settings() l5summary.Settings { return s.settings }

// Config returns the tuning the session was built with.
func (s *Session) Config() *config.TuningConfig { return s.cfg }

// Ingested returns how many frames were accepted.
func (s *Session) Ingested() int { return s.ingested }

// Finalized reports whether Finalize has been called.
func (s *Session) Finalized() bool { return s.finalized }

// Ingest pushes one sample and, once the window holds enough frames, runs
// the detectors and advances the tracker. Frame indices must strictly
// increase; gaps are allowed.
func (s *Session) Ingest(sample l1samples.FrameSample) (Update, error) {
	if s.finalized {
		return Update{}, ErrFinalized
	}
	if err := sample.Validate(); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	switch {
	case sample.FrameIndex == s.lastIndex:
		return Update{}, fmt.Errorf("%w: %d", ErrDuplicateFrame, sample.FrameIndex)
	case sample.FrameIndex < s.lastIndex:
		return Update{}, fmt.Errorf("%w: %d after %d", ErrOutOfOrder, sample.FrameIndex, s.lastIndex)
	}

	s.lastIndex = sample.FrameIndex
	s.ingested++
	s.window.Push(sample)

	u := Update{FrameIndex: sample.FrameIndex}
	if s.window.Len() < s.minFrames {
		s.tracker.Observe(sample.FrameIndex)
		return u, nil
	}

	detected := s.detectors.Detect(s.window)
	u.Analyzed = true
	u.Transitions = s.tracker.Update(sample.FrameIndex, detected)
	u.Active = s.tracker.Active()
	s.analyzed++

	if len(detected) > 0 {
		monitoring.Debugf("[Session %s] frame %d: %v", s.id, sample.FrameIndex, detected)
	}
	return u, nil
}

// IngestAll feeds samples in order, stopping at the first error.
func (s *Session) IngestAll(samples []l1samples.FrameSample) error {
	for _, sample := range samples {
		if _, err := s.Ingest(sample); err != nil {
			return err
		}
	}
	return nil
}

// ActiveLabels returns the labels whose periods are currently open.
func (s *Session) ActiveLabels() []l3detect.Label {
	return s.tracker.Active()
}

// Finalize closes any open periods at the last ingested frame and returns
// the report. Later calls return the same report.
func (s *Session) Finalize() l5summary.Report {
	if s.finalized {
		return s.report
	}
	s.tracker.Finalize(s.lastIndex)
	s.finalized = true
	s.report = s.build()
	monitoring.Logf("[Session %s] finalized: %d frames, %d events, %.1fs",
		s.id, s.ingested, s.report.Summary.TotalEvents, s.report.Summary.TotalDurationSeconds)
	return s.report
}

// Report returns the report for the periods closed so far. Open periods are
// not included until Finalize.
func (s *Session) Report() l5summary.Report {
	if s.finalized {
		return s.report
	}
	return s.build()
}

func (s *Session) build() l5summary.Report {
	r := l5summary.Aggregate(s.tracker.Labels(), s.tracker.AllPeriods(), s.settings)
	r.SessionID = s.id
	r.FramesAnalyzed = s.ingested
	return r
}

// Analyze runs a complete session over samples and returns the final
// report. progress, when non-nil, is called after every accepted frame.
func Analyze(id string, cfg *config.TuningConfig, samples []l1samples.FrameSample, progress func(done int)) (l5summary.Report, error) {
	s, err := NewSession(id, cfg)
	if err != nil {
		return l5summary.Report{}, err
	}
	for i, sample := range samples {
		if _, err := s.Ingest(sample); err != nil {
			return l5summary.Report{}, err
		}
		if progress != nil {
			progress(i + 1)
		}
	}
	return s.Finalize(), nil
}
