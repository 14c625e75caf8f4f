package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type series struct {
	name string
	pick func(TracePoint) float64
}

// SaveTracePlots renders altitude and motor plots next to path. The motor
// plot gets a "_motors" suffix.
func SaveTracePlots(path string, trace []TracePoint) error {
	if len(trace) == 0 {
		return fmt.Errorf("plot: empty trace")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("plot: create directory: %w", err)
	}

	if err := saveLinePlot(path, "Altitude hold", "altitude (m)", trace, []series{
		{"gps altitude", func(p TracePoint) float64 { return p.Altitude }},
		{"target", func(p TracePoint) float64 { return p.Target }},
	}); err != nil {
		return err
	}

	ext := filepath.Ext(path)
	motorPath := strings.TrimSuffix(path, ext) + "_motors" + ext
	return saveLinePlot(motorPath, "Motor commands", "velocity (rad/s)", trace, []series{
		{"front left", func(p TracePoint) float64 { return p.Motors.FrontLeft }},
		{"front right", func(p TracePoint) float64 { return p.Motors.FrontRight }},
		{"rear left", func(p TracePoint) float64 { return p.Motors.RearLeft }},
		{"rear right", func(p TracePoint) float64 { return p.Motors.RearRight }},
	})
}

func saveLinePlot(path, title, ylabel string, trace []TracePoint, lines []series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	for i, s := range lines {
		pts := make(plotter.XYs, len(trace))
		for j, tp := range trace {
			pts[j].X = tp.T
			pts[j].Y = s.pick(tp)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plot %s: %w", s.name, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("plot save %s: %w", path, err)
	}
	return nil
}
