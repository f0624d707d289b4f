// posture-analyse runs the posture analysis over a recorded frame file and
// prints the per-label periods. With -server it sends the frames to a running
// posture-server instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/fsutil"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture"
	"github.com/banshee-data/posture.report/internal/posture/l1samples"
	"github.com/banshee-data/posture.report/internal/posture/l5summary"
	"github.com/banshee-data/posture.report/internal/posture/timeline"
	"github.com/banshee-data/posture.report/internal/version"
)

// Config holds the parsed command line.
type Config struct {
	FramesFile string
	ConfigFile string
	SessionID  string
	OutFile    string
	Format     string
	PlotFile   string
	HTMLFile   string
	ServerURL  string
	FPS        float64
	Skip       int
	Quiet      bool
	Debug      bool
	Version    bool
}

var (
	httpClient httputil.HTTPClient = http.DefaultClient
	fsys       fsutil.FileSystem   = fsutil.OSFileSystem{}
)

const progressTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}}`

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.Version {
		fmt.Println(version.String())
		return
	}
	if err := run(context.Background(), cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	var c Config
	fs.StringVar(&c.FramesFile, "frames", "", "Frame file (JSON array or NDJSON); '-' reads stdin (required)")
	fs.StringVar(&c.ConfigFile, "config", "", "Tuning config (.json or .yaml); built-in defaults when empty")
	fs.StringVar(&c.SessionID, "id", "", "Session or project id recorded in the report (default: frame file name)")
	fs.StringVar(&c.OutFile, "out", "", "Write the report as JSON to this file")
	fs.StringVar(&c.Format, "format", "full", "JSON report format: full or backend")
	fs.StringVar(&c.PlotFile, "plot", "", "Write a PNG timeline to this file")
	fs.StringVar(&c.HTMLFile, "html", "", "Write an HTML timeline to this file")
	fs.StringVar(&c.ServerURL, "server", "", "Analyse remotely on a posture-server at this base URL")
	fs.Float64Var(&c.FPS, "fps", 0, "Override sampling_rate")
	fs.IntVar(&c.Skip, "skip", 0, "Override frame_skip")
	fs.BoolVar(&c.Quiet, "q", false, "No progress bar")
	fs.BoolVar(&c.Debug, "debug", false, "Log per-frame labels and period transitions")
	fs.BoolVar(&c.Version, "version", false, "Print version and exit")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s -frames FILE [options]\n\n", fs.Name())
		fmt.Fprintf(out, "Detects bad postures in a sequence of pose/gaze samples and reports\n")
		fmt.Fprintf(out, "the frame periods each one was held for.\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  %s -frames session.ndjson -plot timeline.png\n", fs.Name())
		fmt.Fprintf(out, "  %s -frames session.ndjson -out report.json -format backend\n", fs.Name())
		fmt.Fprintf(out, "  %s -frames session.ndjson -server http://localhost:8080\n", fs.Name())
	}

	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if c.FramesFile == "" && fs.NArg() > 0 {
		c.FramesFile = fs.Arg(0)
	}
	return c, nil
}

func (c Config) validate() error {
	if c.FramesFile == "" {
		return errors.New("a frame file is required (-frames)")
	}
	if c.Format != "full" && c.Format != "backend" {
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}

// tuning loads the config file, if any, and applies the flag overrides.
func (c Config) tuning() (*config.TuningConfig, error) {
	base := config.EmptyTuningConfig()
	if c.ConfigFile != "" {
		loaded, err := config.LoadTuningConfig(c.ConfigFile)
		if err != nil {
			return nil, err
		}
		base = loaded
	}
	override := config.EmptyTuningConfig()
	if c.FPS > 0 {
		override.SamplingRate = &c.FPS
	}
	if c.Skip > 0 {
		override.FrameSkip = &c.Skip
	}
	return base.Merge(override), nil
}

func (c Config) id() string {
	if c.SessionID != "" {
		return c.SessionID
	}
	if c.FramesFile == "-" {
		return "stdin"
	}
	name := filepath.Base(c.FramesFile)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

func readFrames(path string, stdin io.Reader) ([]l1samples.FrameSample, error) {
	if path == "-" {
		return l1samples.ReadAll(stdin)
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return l1samples.ReadAll(f)
}

func run(ctx context.Context, c Config, stdout, stderr io.Writer) error {
	if err := c.validate(); err != nil {
		return err
	}
	monitoring.SetDebug(c.Debug)

	tuning, err := c.tuning()
	if err != nil {
		return err
	}
	frames, err := readFrames(c.FramesFile, os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read frames: %w", err)
	}
	if len(frames) == 0 {
		return errors.New("frame file is empty")
	}

	if c.ServerURL != "" {
		return runRemote(ctx, c, tuning, frames, stdout)
	}

	var bar *pb.ProgressBar
	progress := func(int) {}
	if !c.Quiet {
		bar = pb.ProgressBarTemplate(progressTemplate).New(len(frames)).SetWriter(stderr)
		bar.Set("prefix", "analysing")
		bar.Start()
		progress = func(done int) { bar.SetCurrent(int64(done)) }
	}

	report, err := posture.Analyze(c.id(), tuning, frames, progress)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if err := l5summary.WriteText(stdout, report); err != nil {
		return err
	}
	return writeOutputs(c, report)
}

func writeOutputs(c Config, report l5summary.Report) error {
	if c.OutFile != "" {
		var v interface{} = report
		if c.Format == "backend" {
			v = l5summary.ToBackend(c.id(), report)
		}
		if err := writeJSONFile(c.OutFile, v); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if c.PlotFile != "" {
		if err := writeWith(c.PlotFile, report, timeline.WritePNG); err != nil {
			return fmt.Errorf("failed to write plot: %w", err)
		}
	}
	if c.HTMLFile != "" {
		if err := writeWith(c.HTMLFile, report, timeline.RenderHTML); err != nil {
			return fmt.Errorf("failed to write chart: %w", err)
		}
	}
	return nil
}

func writeWith(path string, report l5summary.Report, render func(io.Writer, l5summary.Report) error) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if err := render(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return fsys.WriteFile(path, append(data, '\n'), 0644)
}

type actionRequest struct {
	ProjectID string                  `json:"project_id"`
	Frames    []l1samples.FrameSample `json:"frames"`
	Config    *config.TuningConfig    `json:"config,omitempty"`
}

// runRemote posts the frames to a posture-server and prints its response.
// The server answers in the backend shape, so -plot and -html are not
// available here.
func runRemote(ctx context.Context, c Config, tuning *config.TuningConfig, frames []l1samples.FrameSample, stdout io.Writer) error {
	if c.PlotFile != "" || c.HTMLFile != "" {
		return errors.New("-plot and -html need a local analysis; drop -server")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	url := strings.TrimRight(c.ServerURL, "/") + "/analysis/action"
	var resp l5summary.BackendResponse
	req := actionRequest{ProjectID: c.id(), Frames: frames, Config: tuning}
	if err := httputil.PostJSON(ctx, httpClient, url, req, &resp); err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if c.OutFile != "" {
		return writeJSONFile(c.OutFile, resp)
	}
	return nil
}
