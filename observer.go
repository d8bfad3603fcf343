// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type ConvergenceSummary struct {
	Converged int // Points whose Newton step met the threshold
	Total     int // All points processed
}

func (s ConvergenceSummary) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Converged) / float64(s.Total)
}

// Processing extents reported before the first block
type Extents struct {
	T0              float64 // Shifted azimuth time of line 0
	TEnd            float64
	AzimuthInterval float64
	R0              float64 // Shifted slant range of sample 0
	REnd            float64
	RangeSpacing    float64
	Grid            RadarGridParameters
	TopoWidth       int
	TopoLength      int
	Blocks          int
}

// Diagnostics of one processed block
type BlockStats struct {
	Index       int
	LineStart   int
	LineEnd     int
	DopplerNear float64
	DopplerMid  float64
	DopplerFar  float64
	Converged   int
	Points      int

	// Over points with an estimate, converged or not. NaN when there is none
	AzOffMean float64
	AzOffMin  float64
	AzOffMax  float64
	RgOffMean float64
	RgOffMin  float64
	RgOffMax  float64
}

// Observer receives the diagnostic stream of a run. It is advisory output only.
type Observer interface {
	Extents(ext Extents)
	Block(stats BlockStats)
	Done(summary ConvergenceSummary)
}

type NopObserver struct{}

func (NopObserver) Extents(Extents)         {}
func (NopObserver) Block(BlockStats)        {}
func (NopObserver) Done(ConvergenceSummary) {}

// Fan out to several observers
type MultiObserver []Observer

func (m MultiObserver) Extents(ext Extents) {
	for _, o := range m {
		o.Extents(ext)
	}
}

func (m MultiObserver) Block(stats BlockStats) {
	for _, o := range m {
		o.Block(stats)
	}
}

func (m MultiObserver) Done(summary ConvergenceSummary) {
	for _, o := range m {
		o.Done(summary)
	}
}

// Offset statistics of a processed block, excluding points without an estimate
func blockOffsetStats(b *Block, st *BlockStats) {
	az := make([]float64, 0, b.Size())
	rg := make([]float64, 0, b.Size())
	for k := 0; k < b.Size(); k++ {
		if b.AzOff[k] == NullValue || b.RgOff[k] == NullValue {
			continue
		}
		az = append(az, b.AzOff[k])
		rg = append(rg, b.RgOff[k])
	}
	if len(az) == 0 {
		nan := math.NaN()
		st.AzOffMean, st.AzOffMin, st.AzOffMax = nan, nan, nan
		st.RgOffMean, st.RgOffMin, st.RgOffMax = nan, nan, nan
		return
	}
	st.AzOffMean = stat.Mean(az, nil)
	st.AzOffMin = floats.Min(az)
	st.AzOffMax = floats.Max(az)
	st.RgOffMean = stat.Mean(rg, nil)
	st.RgOffMin = floats.Min(rg)
	st.RgOffMax = floats.Max(rg)
}

//-------------------------------------------------------------------
// PrintObserver
//-------------------------------------------------------------------

// PrintObserver writes the diagnostic stream through a Printer.
// Level 1 prints extents and the summary, level 2 every block.
type PrintObserver struct {
	P *Printer
}

func (o PrintObserver) Extents(ext Extents) {
	p := o.P
	p.PrintD(1, "\n")
	p.PrintD(1, "Starting acquisition time: %.9f\n", ext.T0)
	p.PrintD(1, "Stop acquisition time: %.9f\n", ext.TEnd)
	p.PrintD(1, "Azimuth line spacing in seconds: %g\n", ext.AzimuthInterval)
	p.PrintD(1, "Slant range spacing in meters: %g\n", ext.RangeSpacing)
	p.PrintD(1, "Near range (m): %.3f\n", ext.R0)
	p.PrintD(1, "Far range (m): %.3f\n", ext.REnd)
	p.PrintD(1, "Radar image length: %d\n", ext.Grid.Length)
	p.PrintD(1, "Radar image width: %d\n", ext.Grid.Width)
	p.PrintD(1, "Geocoded lines: %d\n", ext.TopoLength)
	p.PrintD(1, "Geocoded samples: %d\n", ext.TopoWidth)
	p.PrintD(2, "Number of blocks: %d\n", ext.Blocks)
}

func (o PrintObserver) Block(st BlockStats) {
	p := o.P
	p.PrintD(2, "Processing block: %d\n", st.Index)
	p.PrintD(2, "  - line start: %d\n", st.LineStart)
	p.PrintD(2, "  - line end  : %d\n", st.LineEnd)
	p.PrintD(2, "  - dopplers near mid far: %g %g %g\n", st.DopplerNear, st.DopplerMid, st.DopplerFar)
	p.PrintD(2, "  - converged: %d of %d\n", st.Converged, st.Points)
	p.PrintD(3, "  - azimuth offset mean/min/max: %.6f %.6f %.6f\n", st.AzOffMean, st.AzOffMin, st.AzOffMax)
	p.PrintD(3, "  - range offset mean/min/max: %.6f %.6f %.6f\n", st.RgOffMean, st.RgOffMin, st.RgOffMax)
}

func (o PrintObserver) Done(s ConvergenceSummary) {
	o.P.PrintD(1, "Total convergence: %d out of %d\n", s.Converged, s.Total)
}
