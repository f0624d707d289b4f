package timeline

import (
	"fmt"
	"io"

	"github.com/banshee-data/posture.report/internal/posture/l5summary"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	pngWidth  = 14 * vg.Inch
	pngHeight = 4 * vg.Inch
)

func build(r l5summary.Report) (*plot.Plot, error) {
	names, segs := rows(r)
	colors := palette(len(names))

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", title(r), subtitle(r))
	p.X.Label.Text = "seconds"
	p.X.Min = 0
	p.Y.Min = -0.5
	p.Y.Max = float64(len(names)) - 0.5

	ticks := make([]plot.Tick, len(names))
	for i, n := range names {
		ticks[i] = plot.Tick{Value: float64(i), Label: n}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)

	for _, s := range segs {
		l, err := plotter.NewLine(plotter.XYs{
			{X: s.start, Y: float64(s.row)},
			{X: s.end, Y: float64(s.row)},
		})
		if err != nil {
			return nil, fmt.Errorf("period line: %w", err)
		}
		l.Color = colors[s.row]
		l.Width = vg.Points(8)
		p.Add(l)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// WritePNG renders the timeline of r as PNG to w.
func WritePNG(w io.Writer, r l5summary.Report) error {
	p, err := build(r)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG renders the timeline of r to path.
func SavePNG(path string, r l5summary.Report) error {
	p, err := build(r)
	if err != nil {
		return err
	}
	if err := p.Save(pngWidth, pngHeight, path); err != nil {
		return fmt.Errorf("save timeline plot: %w", err)
	}
	return nil
}
