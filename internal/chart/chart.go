// Package chart plots per-stage latency over the frames of a run.
package chart

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Corezcy/record-latency/internal/apollo"
	"github.com/Corezcy/record-latency/internal/latency"
)

var stageColors = map[apollo.Kind]color.RGBA{
	apollo.KindCompensator: {R: 31, G: 119, B: 180, A: 255},
	apollo.KindPerception:  {R: 255, G: 127, B: 14, A: 255},
	apollo.KindPrediction:  {R: 44, G: 160, B: 44, A: 255},
	apollo.KindPlanning:    {R: 214, G: 39, B: 40, A: 255},
}

// LatencyPNG draws one line per stage: delta in milliseconds against the
// row index. Points for missing stages are omitted.
func LatencyPNG(title string, rows []latency.Row) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Latency (ms)"

	for _, k := range apollo.Kinds {
		pts := make(plotter.XYs, 0, len(rows))
		for i, r := range rows {
			if ts, d := r.Stage(k); ts != latency.Missing {
				pts = append(pts, plotter.XY{X: float64(i), Y: float64(d)})
			}
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", k, err)
		}
		line.Color = stageColors[k]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(k.String(), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
