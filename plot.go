// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	ConvergencePlotFile = "convergence.png"
	OffsetPlotFile      = "offsets.png"
)

var (
	plotBlue = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	plotRed  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// PlotObserver records the block statistics of a run for plotting after it.
type PlotObserver struct {
	mu     sync.Mutex
	blocks []BlockStats
}

func NewPlotObserver() *PlotObserver {
	return &PlotObserver{}
}

func (o *PlotObserver) Extents(Extents) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.blocks = o.blocks[:0]
}

func (o *PlotObserver) Block(st BlockStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.blocks = append(o.blocks, st)
}

func (o *PlotObserver) Done(ConvergenceSummary) {}

func (o *PlotObserver) Blocks() []BlockStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]BlockStats, len(o.blocks))
	copy(out, o.blocks)
	return out
}

func newLine(pts plotter.XYs, c color.Color) (*plotter.Line, error) {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	l.Color = c
	l.Width = vg.Points(1)
	return l, nil
}

// Save writes the convergence ratio and mean offsets per block as PNG files in dir.
func (o *PlotObserver) Save(dir string) error {
	blocks := o.Blocks()
	if len(blocks) == 0 {
		return fmt.Errorf("no block to plot")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}

	conv := make(plotter.XYs, 0, len(blocks))
	azPts := make(plotter.XYs, 0, len(blocks))
	rgPts := make(plotter.XYs, 0, len(blocks))
	for _, b := range blocks {
		x := float64(b.Index)
		ratio := 0.0
		if b.Points > 0 {
			ratio = float64(b.Converged) / float64(b.Points)
		}
		conv = append(conv, plotter.XY{X: x, Y: ratio})
		// Blocks without any offset are gaps
		if !math.IsNaN(b.AzOffMean) {
			azPts = append(azPts, plotter.XY{X: x, Y: b.AzOffMean})
		}
		if !math.IsNaN(b.RgOffMean) {
			rgPts = append(rgPts, plotter.XY{X: x, Y: b.RgOffMean})
		}
	}

	pc := plot.New()
	pc.Title.Text = "Convergence per block"
	pc.X.Label.Text = "Block"
	pc.Y.Label.Text = "Converged ratio"
	pc.Y.Min, pc.Y.Max = 0, 1.05
	l, err := newLine(conv, plotBlue)
	if err != nil {
		return err
	}
	pc.Add(l, plotter.NewGrid())
	if err := pc.Save(8*vg.Inch, 4*vg.Inch, filepath.Join(dir, ConvergencePlotFile)); err != nil {
		return fmt.Errorf("failed to save convergence plot: %w", err)
	}

	po := plot.New()
	po.Title.Text = "Mean offsets per block"
	po.X.Label.Text = "Block"
	po.Y.Label.Text = "Offset (lines / pixels)"
	po.Add(plotter.NewGrid())
	if len(azPts) > 0 {
		l, err := newLine(azPts, plotBlue)
		if err != nil {
			return err
		}
		po.Add(l)
		po.Legend.Add("azimuth", l)
	}
	if len(rgPts) > 0 {
		l, err := newLine(rgPts, plotRed)
		if err != nil {
			return err
		}
		po.Add(l)
		po.Legend.Add("range", l)
	}
	po.Legend.Top = true
	if err := po.Save(8*vg.Inch, 4*vg.Inch, filepath.Join(dir, OffsetPlotFile)); err != nil {
		return fmt.Errorf("failed to save offset plot: %w", err)
	}
	return nil
}
