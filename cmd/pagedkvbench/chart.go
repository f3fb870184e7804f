package main

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// renderLatencyChart plots per-operation latency (nanoseconds) for each
// named series against sample index, and saves it as a PNG. Not present
// as working code anywhere in the teacher repo (gonum.org/v1/plot sits
// unused in its go.mod) — built fresh here in the shape of the teacher's
// BenchResult/Record accumulation, just rendered instead of written to
// CSV.
func renderLatencyChart(path string, series map[string][]int64) error {
	p := plot.New()
	p.Title.Text = "pagedkv vs pebble: operation latency"
	p.X.Label.Text = "operation #"
	p.Y.Label.Text = "latency (ns)"

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var args []interface{}
	for _, name := range names {
		samples := series[name]
		pts := make(plotter.XYs, len(samples))
		for i, v := range samples {
			pts[i].X = float64(i)
			pts[i].Y = float64(v)
		}
		args = append(args, name, pts)
	}

	if err := plotutil.AddLines(p, args...); err != nil {
		return fmt.Errorf("chart: add lines: %w", err)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("chart: save %s: %w", path, err)
	}
	return nil
}
