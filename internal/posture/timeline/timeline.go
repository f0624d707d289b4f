// Package timeline renders a Report as a per-label timeline: an interactive
// go-echarts page for the HTTP server and a gonum/plot PNG for the CLI.
package timeline

import (
	"fmt"
	"image/color"

	"github.com/banshee-data/posture.report/internal/posture/l5summary"
)

// segment is one period placed on its label's row.
type segment struct {
	row        int
	start, end float64 // seconds
}

// rows returns the display names in label order and every period as a
// segment measured in seconds from the start of the video.
func rows(r l5summary.Report) ([]string, []segment) {
	fps := r.Summary.AnalysisSettings.FPS
	if fps <= 0 {
		fps = 1
	}
	names := make([]string, len(r.Labels))
	var segs []segment
	for i, lr := range r.Labels {
		names[i] = lr.ActionName
		for _, p := range lr.Periods {
			segs = append(segs, segment{
				row:   i,
				start: float64(p.StartFrame) / fps,
				end:   float64(p.EndFrame) / fps,
			})
		}
	}
	return names, segs
}

func title(r l5summary.Report) string {
	if r.SessionID == "" {
		return "Posture timeline"
	}
	return fmt.Sprintf("Posture timeline: %s", r.SessionID)
}

func subtitle(r l5summary.Report) string {
	return fmt.Sprintf("%d events, %.1fs total", r.Summary.TotalEvents, r.Summary.TotalDurationSeconds)
}

// palette creates n distinct colours spread around the hue wheel.
func palette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	out := make([]color.Color, n)
	for i := range out {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

func hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		q := l + s - l*s
		if l < 0.5 {
			q = l * (1 + s)
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t += 1
	case t > 1:
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
