// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Block is a run of full-width rows [LineStart, LineStart+Length) of the topo raster.
// It owns its input and output buffers, all row-major of size Width*Length.
type Block struct {
	Index     int
	LineStart int
	Length    int
	Width     int

	X      []float64
	Y      []float64
	Height []float64
	AzOff  []float64
	RgOff  []float64
}

func NewBlock(index, lineStart, length, width int) *Block {
	n := length * width
	return &Block{
		Index:     index,
		LineStart: lineStart,
		Length:    length,
		Width:     width,
		X:         make([]float64, n),
		Y:         make([]float64, n),
		Height:    make([]float64, n),
		AzOff:     make([]float64, n),
		RgOff:     make([]float64, n),
	}
}

func (b *Block) Size() int {
	return b.Length * b.Width
}

func (b *Block) LineEnd() int {
	return b.LineStart + b.Length
}

func (b *Block) check() error {
	n := b.Size()
	if b.Length <= 0 || b.Width <= 0 {
		return fmt.Errorf("%w: block %d is %dx%d", ErrInvalidConfiguration, b.Index, b.Length, b.Width)
	}
	for _, s := range [][]float64{b.X, b.Y, b.Height, b.AzOff, b.RgOff} {
		if len(s) != n {
			return fmt.Errorf("%w: block %d buffer of %d values, want %d", ErrInvalidConfiguration, b.Index, len(s), n)
		}
	}
	return nil
}

// Evaluator applies Geo2rdrPoint to every point of a block.
// All fields are read-only during EvaluateBlock and shared by the workers.
type Evaluator struct {
	Orbit      Trajectory
	Doppler    DopplerModel
	Projection Projection
	Wavelength float64
	Interval   SearchInterval // Initial guess is its midpoint
	T0         float64        // Azimuth time of line 0 including the azimuth shift
	R0         float64        // Slant range of sample 0 including the range shift
	PRF        float64
	Spacing    float64 // Range pixel spacing
	Params     SolverParams
	Workers    int // Goroutines per block, 0 = GOMAXPROCS, 1 = sequential
}

func (e *Evaluator) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Offsets of one point, line and sample are absolute topo raster indices
func (e *Evaluator) evaluatePoint(x, y, h float64, line, sample int) (azoff, rgoff float64, converged bool) {
	target, err := e.Projection.ToXYZ(x, y, h)
	if err != nil {
		return NullValue, NullValue, false
	}
	rslt := Geo2rdrPoint(target, e.Orbit, e.Doppler, e.Wavelength, e.Interval, e.Params)
	azoff = (rslt.AzimuthTime-e.T0)*e.PRF - float64(line)
	rgoff = (rslt.SlantRange-e.R0)/e.Spacing - float64(sample)
	if math.IsNaN(azoff) || math.IsInf(azoff, 0) {
		azoff = NullValue
	}
	if math.IsNaN(rgoff) || math.IsInf(rgoff, 0) {
		rgoff = NullValue
	}
	return azoff, rgoff, rslt.Converged
}

// Rows [r0, r1) of the block, returns the number of converged points
func (e *Evaluator) evaluateRows(ctx context.Context, b *Block, r0, r1 int) (int, error) {
	conv := 0
	for row := r0; row < r1; row++ {
		if err := ctx.Err(); err != nil {
			return conv, err
		}
		line := b.LineStart + row
		for col := 0; col < b.Width; col++ {
			k := row*b.Width + col
			az, rg, ok := e.evaluatePoint(b.X[k], b.Y[k], b.Height[k], line, col)
			b.AzOff[k] = az
			b.RgOff[k] = rg
			if ok {
				conv += 1
			}
		}
	}
	return conv, nil
}

// EvaluateBlock fills AzOff and RgOff of the block and returns the number of converged points.
// Rows are split among the workers, each counting its own points; the counts are summed afterwards.
// Only a cancelled context or a malformed block is reported as an error.
func (e *Evaluator) EvaluateBlock(ctx context.Context, b *Block) (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}

	nw := min(e.workers(), b.Length)
	if nw <= 1 {
		return e.evaluateRows(ctx, b, 0, b.Length)
	}

	counts := make([]int, nw)
	g, gctx := errgroup.WithContext(ctx)
	rowsPer := (b.Length + nw - 1) / nw
	for w := 0; w < nw; w++ {
		w := w
		r0 := w * rowsPer
		r1 := min(r0+rowsPer, b.Length)
		if r0 >= r1 {
			continue
		}
		g.Go(func() error {
			n, err := e.evaluateRows(gctx, b, r0, r1)
			counts[w] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}
