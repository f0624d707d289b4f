package timeline

import (
	"bytes"
	"fmt"
	"io"

	"github.com/banshee-data/posture.report/internal/posture/l5summary"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// AssetsHost overrides where the rendered page loads echarts from. Empty
// uses the go-echarts default CDN.
var AssetsHost = ""

// RenderHTML writes an echarts page with a period timeline and a per-label
// duration bar chart.
func RenderHTML(w io.Writer, r l5summary.Report) error {
	names, segs := rows(r)
	colors := palette(len(names))
	init := opts.Initialization{PageTitle: title(r), Width: "100%", Height: "420px", AssetsHost: AssetsHost}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: title(r), Subtitle: subtitle(r)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "seconds", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: names}),
	)
	for _, s := range segs {
		line.AddSeries(names[s.row], []opts.LineData{
			{Value: []interface{}{s.start, s.row}},
			{Value: []interface{}{s.end, s.row}},
		},
			charts.WithLineStyleOpts(opts.LineStyle{Width: 12, Color: hex(colors[s.row])}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hex(colors[s.row])}),
		)
	}

	durations := make([]opts.BarData, len(r.Labels))
	counts := make([]opts.BarData, len(r.Labels))
	for i, lr := range r.Labels {
		durations[i] = opts.BarData{Value: lr.Summary.TotalDurationSeconds}
		counts[i] = opts.BarData{Value: lr.Summary.OccurrenceCount}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: "Per-label totals"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("duration (s)", durations,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		).
		AddSeries("occurrences", counts)

	page := components.NewPage()
	if AssetsHost != "" {
		page.SetAssetsHost(AssetsHost)
	}
	page.AddCharts(line, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
