package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sigs.k8s.io/yaml"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// The Get* accessors fall back to the same values when a field is unset.
const DefaultConfigPath = "config/tuning.defaults.json"

// MaxWindowFrames caps window_duration_seconds * sampling_rate / frame_skip.
// The window buffer is allocated up front at that size.
const MaxWindowFrames = 10000

// TuningConfig represents the root configuration for posture analysis.
// The schema matches the optional "config" object accepted by
// POST /api/sessions, so the same JSON can be used for both startup
// configuration and per-session overrides.
type TuningConfig struct {
	// Sampling params
	WindowDurationSeconds *float64 `json:"window_duration_seconds,omitempty"`
	SamplingRate          *float64 `json:"sampling_rate,omitempty"`
	FrameSkip             *int     `json:"frame_skip,omitempty"`
	MinAnalysisFrames     *int     `json:"min_analysis_frames,omitempty"`

	// Detector params
	ConfidenceThreshold  *float64 `json:"confidence_threshold,omitempty"`
	GazeDownYaw          *float64 `json:"gaze_down_yaw,omitempty"`
	GazeDownRatio        *float64 `json:"gaze_down_ratio,omitempty"`
	BodySwayRatio        *float64 `json:"body_sway_ratio,omitempty"`
	BodySwayCancellation *float64 `json:"body_sway_cancellation,omitempty"`
	BodySwayMinFrames    *int     `json:"body_sway_min_frames,omitempty"`
	HeadTiltThreshold    *float64 `json:"head_tilt_threshold,omitempty"`
	HeadTiltMinFrames    *int     `json:"head_tilt_min_frames,omitempty"`
	HandEyeRatio         *float64 `json:"hand_eye_ratio,omitempty"`
	HandOnFaceRatio      *float64 `json:"hand_on_face_ratio,omitempty"`
	TurnedAwayRatio      *float64 `json:"turned_away_ratio,omitempty"`
	FallbackBBoxWidth    *float64 `json:"fallback_bbox_width,omitempty"`

	// Result store params
	ResultTTL     *string `json:"result_ttl,omitempty"`     // duration string like "30m"
	SweepInterval *string `json:"sweep_interval,omitempty"` // duration string like "1m"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every Get* accessor on it returns the built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		WindowDurationSeconds: ptrFloat64(e.GetWindowDurationSeconds()),
		SamplingRate:          ptrFloat64(e.GetSamplingRate()),
		FrameSkip:             ptrInt(e.GetFrameSkip()),
		MinAnalysisFrames:     ptrInt(e.GetMinAnalysisFrames()),
		ConfidenceThreshold:   ptrFloat64(e.GetConfidenceThreshold()),
		GazeDownYaw:           ptrFloat64(e.GetGazeDownYaw()),
		GazeDownRatio:         ptrFloat64(e.GetGazeDownRatio()),
		BodySwayRatio:         ptrFloat64(e.GetBodySwayRatio()),
		BodySwayCancellation:  ptrFloat64(e.GetBodySwayCancellation()),
		BodySwayMinFrames:     ptrInt(e.GetBodySwayMinFrames()),
		HeadTiltThreshold:     ptrFloat64(e.GetHeadTiltThreshold()),
		HeadTiltMinFrames:     ptrInt(e.GetHeadTiltMinFrames()),
		HandEyeRatio:          ptrFloat64(e.GetHandEyeRatio()),
		HandOnFaceRatio:       ptrFloat64(e.GetHandOnFaceRatio()),
		TurnedAwayRatio:       ptrFloat64(e.GetTurnedAwayRatio()),
		FallbackBBoxWidth:     ptrFloat64(e.GetFallbackBBoxWidth()),
		ResultTTL:             ptrString(e.GetResultTTL().String()),
		SweepInterval:         ptrString(e.GetSweepInterval().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file is validated to ensure it has a supported extension and is under
// the max file size. Fields omitted from the file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if ext != ".json" {
		if data, err = yaml.YAMLToJSON(data); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/posture/l3detect/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge returns a copy of c with every field set in override applied on top.
func (c *TuningConfig) Merge(override *TuningConfig) *TuningConfig {
	out := *c
	if override == nil {
		return &out
	}
	merge := func(dst **float64, src *float64) {
		if src != nil {
			*dst = src
		}
	}
	mergeInt := func(dst **int, src *int) {
		if src != nil {
			*dst = src
		}
	}
	mergeStr := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	merge(&out.WindowDurationSeconds, override.WindowDurationSeconds)
	merge(&out.SamplingRate, override.SamplingRate)
	mergeInt(&out.FrameSkip, override.FrameSkip)
	mergeInt(&out.MinAnalysisFrames, override.MinAnalysisFrames)
	merge(&out.ConfidenceThreshold, override.ConfidenceThreshold)
	merge(&out.GazeDownYaw, override.GazeDownYaw)
	merge(&out.GazeDownRatio, override.GazeDownRatio)
	merge(&out.BodySwayRatio, override.BodySwayRatio)
	merge(&out.BodySwayCancellation, override.BodySwayCancellation)
	mergeInt(&out.BodySwayMinFrames, override.BodySwayMinFrames)
	merge(&out.HeadTiltThreshold, override.HeadTiltThreshold)
	mergeInt(&out.HeadTiltMinFrames, override.HeadTiltMinFrames)
	merge(&out.HandEyeRatio, override.HandEyeRatio)
	merge(&out.HandOnFaceRatio, override.HandOnFaceRatio)
	merge(&out.TurnedAwayRatio, override.TurnedAwayRatio)
	merge(&out.FallbackBBoxWidth, override.FallbackBBoxWidth)
	mergeStr(&out.ResultTTL, override.ResultTTL)
	mergeStr(&out.SweepInterval, override.SweepInterval)
	return &out
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.WindowDurationSeconds != nil && !(*c.WindowDurationSeconds > 0 && !math.IsInf(*c.WindowDurationSeconds, 1)) {
		return fmt.Errorf("window_duration_seconds must be positive and finite, got %f", *c.WindowDurationSeconds)
	}
	if c.SamplingRate != nil && !(*c.SamplingRate > 0 && !math.IsInf(*c.SamplingRate, 1)) {
		return fmt.Errorf("sampling_rate must be positive and finite, got %f", *c.SamplingRate)
	}
	if c.FrameSkip != nil && *c.FrameSkip <= 0 {
		return fmt.Errorf("frame_skip must be positive, got %d", *c.FrameSkip)
	}
	if n := c.GetWindowDurationSeconds() * c.GetSamplingRate() / float64(c.GetFrameSkip()); math.IsInf(n, 0) || n > MaxWindowFrames {
		return fmt.Errorf("window of %g frames exceeds the maximum of %d; lower window_duration_seconds or sampling_rate, or raise frame_skip", n, MaxWindowFrames)
	}
	if c.MinAnalysisFrames != nil && *c.MinAnalysisFrames < 1 {
		return fmt.Errorf("min_analysis_frames must be at least 1, got %d", *c.MinAnalysisFrames)
	}

	ratios := []struct {
		name string
		v    *float64
	}{
		{"confidence_threshold", c.ConfidenceThreshold},
		{"gaze_down_ratio", c.GazeDownRatio},
		{"body_sway_cancellation", c.BodySwayCancellation},
		{"hand_on_face_ratio", c.HandOnFaceRatio},
		{"turned_away_ratio", c.TurnedAwayRatio},
	}
	for _, r := range ratios {
		if r.v != nil && (*r.v < 0 || *r.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", r.name, *r.v)
		}
	}

	if c.BodySwayMinFrames != nil && *c.BodySwayMinFrames < 2 {
		return fmt.Errorf("body_sway_min_frames must be at least 2, got %d", *c.BodySwayMinFrames)
	}
	if c.HeadTiltMinFrames != nil && *c.HeadTiltMinFrames < 1 {
		return fmt.Errorf("head_tilt_min_frames must be at least 1, got %d", *c.HeadTiltMinFrames)
	}
	if c.FallbackBBoxWidth != nil && *c.FallbackBBoxWidth <= 0 {
		return fmt.Errorf("fallback_bbox_width must be positive, got %f", *c.FallbackBBoxWidth)
	}

	for name, v := range map[string]*string{"result_ttl": c.ResultTTL, "sweep_interval": c.SweepInterval} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	return nil
}

// GetWindowDurationSeconds returns the window_duration_seconds value or the default.
func (c *TuningConfig) GetWindowDurationSeconds() float64 {
	if c.WindowDurationSeconds == nil {
		return 4.0
	}
	return *c.WindowDurationSeconds
}

// GetSamplingRate returns the sampling_rate value (video fps) or the default.
func (c *TuningConfig) GetSamplingRate() float64 {
	if c.SamplingRate == nil {
		return 30
	}
	return *c.SamplingRate
}

// GetFrameSkip returns the frame_skip value or the default.
func (c *TuningConfig) GetFrameSkip() int {
	if c.FrameSkip == nil {
		return 3 // every 3rd video frame is analyzed
	}
	return *c.FrameSkip
}

// GetMinAnalysisFrames returns the min_analysis_frames value or the default.
func (c *TuningConfig) GetMinAnalysisFrames() int {
	if c.MinAnalysisFrames == nil {
		return 30
	}
	return *c.MinAnalysisFrames
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.5
	}
	return *c.ConfidenceThreshold
}

// GetGazeDownYaw returns the gaze_down_yaw value or the default.
func (c *TuningConfig) GetGazeDownYaw() float64 {
	if c.GazeDownYaw == nil {
		return -0.25
	}
	return *c.GazeDownYaw
}

// GetGazeDownRatio returns the gaze_down_ratio value or the default.
func (c *TuningConfig) GetGazeDownRatio() float64 {
	if c.GazeDownRatio == nil {
		return 0.6
	}
	return *c.GazeDownRatio
}

// GetBodySwayRatio returns the body_sway_ratio value or the default.
func (c *TuningConfig) GetBodySwayRatio() float64 {
	if c.BodySwayRatio == nil {
		return 0.25
	}
	return *c.BodySwayRatio
}

// GetBodySwayCancellation returns the body_sway_cancellation value or the default.
func (c *TuningConfig) GetBodySwayCancellation() float64 {
	if c.BodySwayCancellation == nil {
		return 0.2
	}
	return *c.BodySwayCancellation
}

// GetBodySwayMinFrames returns the body_sway_min_frames value or the default.
func (c *TuningConfig) GetBodySwayMinFrames() int {
	if c.BodySwayMinFrames == nil {
		return 10
	}
	return *c.BodySwayMinFrames
}

// GetHeadTiltThreshold returns the head_tilt_threshold value or the default.
func (c *TuningConfig) GetHeadTiltThreshold() float64 {
	if c.HeadTiltThreshold == nil {
		return 0.25
	}
	return *c.HeadTiltThreshold
}

// GetHeadTiltMinFrames returns the head_tilt_min_frames value or the default.
func (c *TuningConfig) GetHeadTiltMinFrames() int {
	if c.HeadTiltMinFrames == nil {
		return 5
	}
	return *c.HeadTiltMinFrames
}

// GetHandEyeRatio returns the hand_eye_ratio value or the default.
func (c *TuningConfig) GetHandEyeRatio() float64 {
	if c.HandEyeRatio == nil {
		return 0.25
	}
	return *c.HandEyeRatio
}

// GetHandOnFaceRatio returns the hand_on_face_ratio value or the default.
func (c *TuningConfig) GetHandOnFaceRatio() float64 {
	if c.HandOnFaceRatio == nil {
		return 0.1
	}
	return *c.HandOnFaceRatio
}

// GetTurnedAwayRatio returns the turned_away_ratio value or the default.
func (c *TuningConfig) GetTurnedAwayRatio() float64 {
	if c.TurnedAwayRatio == nil {
		return 0.5
	}
	return *c.TurnedAwayRatio
}

// GetFallbackBBoxWidth returns the fallback_bbox_width value or the default.
func (c *TuningConfig) GetFallbackBBoxWidth() float64 {
	if c.FallbackBBoxWidth == nil {
		return 100
	}
	return *c.FallbackBBoxWidth
}

// GetResultTTL parses and returns the ResultTTL as a time.Duration.
func (c *TuningConfig) GetResultTTL() time.Duration {
	return parseDurationOr(c.ResultTTL, 30*time.Minute)
}

// GetSweepInterval parses and returns the SweepInterval as a time.Duration.
func (c *TuningConfig) GetSweepInterval() time.Duration {
	return parseDurationOr(c.SweepInterval, time.Minute)
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}
