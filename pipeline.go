// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Row range of one block
type BlockExtent struct {
	Index     int
	LineStart int
	Length    int
}

// Partition length rows into ceil(length/linesPerBlock) blocks in increasing row order.
// Only the last block may be shorter.
func Partition(length, linesPerBlock int) ([]BlockExtent, error) {
	if linesPerBlock <= 0 {
		return nil, fmt.Errorf("%w: lines per block %d must be positive", ErrInvalidConfiguration, linesPerBlock)
	}
	if length <= 0 {
		return nil, fmt.Errorf("%w: image length %d must be positive", ErrInvalidConfiguration, length)
	}
	nBlocks := length / linesPerBlock
	if length%linesPerBlock != 0 {
		nBlocks += 1
	}
	blocks := make([]BlockExtent, nBlocks)
	for i := range blocks {
		lineStart := i * linesPerBlock
		blockLength := linesPerBlock
		if i == nBlocks-1 {
			blockLength = length - lineStart
		}
		blocks[i] = BlockExtent{Index: i, LineStart: lineStart, Length: blockLength}
	}
	return blocks, nil
}

type Option func(*Geo2rdr)

func WithThreshold(threshold float64) Option {
	return func(g *Geo2rdr) { g.params.Threshold = threshold }
}

func WithMaxIter(n int) Option {
	return func(g *Geo2rdr) { g.params.MaxIter = n }
}

func WithLinesPerBlock(n int) Option {
	return func(g *Geo2rdr) { g.linesPerBlock = n }
}

// Goroutines per block, 0 = GOMAXPROCS, 1 = sequential
func WithWorkers(n int) Option {
	return func(g *Geo2rdr) { g.workers = n }
}

func WithObserver(o Observer) Option {
	return func(g *Geo2rdr) {
		if o == nil {
			o = NopObserver{}
		}
		g.observer = o
	}
}

func WithEllipsoid(e Ellipsoid) Option {
	return func(g *Geo2rdr) { g.ellipsoid = e }
}

// Geo2rdr computes azimuth and range offsets of a topo raster against a radar grid.
// Its collaborators are read-only during a run.
type Geo2rdr struct {
	grid      RadarGridParameters
	orbit     Trajectory
	doppler   DopplerModel
	ellipsoid Ellipsoid

	params        SolverParams
	linesPerBlock int
	workers       int
	observer      Observer
}

func New(grid RadarGridParameters, orbit Trajectory, doppler DopplerModel, opts ...Option) (*Geo2rdr, error) {
	if orbit == nil || doppler == nil {
		return nil, fmt.Errorf("%w: orbit and doppler are required", ErrInvalidConfiguration)
	}
	g := &Geo2rdr{
		grid:          grid,
		orbit:         orbit,
		doppler:       doppler,
		ellipsoid:     WGS84,
		params:        DefaultSolverParams(),
		linesPerBlock: DefaultLinesPerBlock,
		workers:       1,
		observer:      NopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Geo2rdr) validate() error {
	if err := g.grid.Validate(); err != nil {
		return err
	}
	if err := g.params.Validate(); err != nil {
		return err
	}
	if g.linesPerBlock <= 0 {
		return fmt.Errorf("%w: lines per block %d must be positive", ErrInvalidConfiguration, g.linesPerBlock)
	}
	if g.workers < 0 {
		return fmt.Errorf("%w: workers %d must not be negative", ErrInvalidConfiguration, g.workers)
	}
	return nil
}

func (g *Geo2rdr) RadarGrid() RadarGridParameters { return g.grid }
func (g *Geo2rdr) Threshold() float64             { return g.params.Threshold }
func (g *Geo2rdr) MaxIter() int                   { return g.params.MaxIter }
func (g *Geo2rdr) LinesPerBlock() int             { return g.linesPerBlock }

func (g *Geo2rdr) checkRasters(topo, azoff, rgoff Raster) (Projection, error) {
	if topo == nil || azoff == nil || rgoff == nil {
		return nil, fmt.Errorf("%w: topo and output rasters are required", ErrInvalidConfiguration)
	}
	if topo.NumBands() < BandHeight {
		return nil, fmt.Errorf("%w: topo raster has %d bands, need x, y and height", ErrInvalidConfiguration, topo.NumBands())
	}
	if topo.Width() <= 0 || topo.Length() <= 0 {
		return nil, fmt.Errorf("%w: empty topo raster", ErrInvalidConfiguration)
	}
	if !MatchRaster(topo, azoff) || !MatchRaster(topo, rgoff) {
		return nil, fmt.Errorf("%w: output rasters %dx%d and %dx%d do not match topo %dx%d", ErrInvalidConfiguration,
			azoff.Width(), azoff.Length(), rgoff.Width(), rgoff.Length(), topo.Width(), topo.Length())
	}
	return NewProjection(topo.EPSG(), g.ellipsoid)
}

// Shifted grid extents: first and last azimuth time, near and far range
func (g *Geo2rdr) origin(azshift, rgshift float64) (t0, tend, r0, rend float64) {
	dtaz := g.grid.AzimuthTimeInterval()
	t0 = g.grid.SensingStart - azshift*dtaz
	tend = t0 + float64(g.grid.Length-1)*dtaz
	r0 = g.grid.StartingRange - rgshift*g.grid.RangePixelSpacing
	rend = r0 + float64(g.grid.Width-1)*g.grid.RangePixelSpacing
	return
}

// Point inverts a single geodetic position and returns its fractional radar line and sample.
// A non-converged inversion still returns the last estimate together with ErrNonConvergence.
func (g *Geo2rdr) Point(llh PosLLH, azshift, rgshift float64) (line, sample float64, rslt InversionResult, err error) {
	t0, tend, r0, _ := g.origin(azshift, rgshift)
	tmid := 0.5 * (t0 + tend)
	if _, _, err := g.orbit.Interpolate(tmid); err != nil {
		return math.NaN(), math.NaN(), rslt, fmt.Errorf("orbit check at mid-scene time %.6f: %w", tmid, err)
	}

	rslt = Geo2rdrPoint(g.ellipsoid.ToXYZ(llh), g.orbit, g.doppler, g.grid.Wavelength,
		SearchInterval{Start: t0, End: tend}, g.params)
	line = (rslt.AzimuthTime - t0) * g.grid.PRF
	sample = (rslt.SlantRange - r0) / g.grid.RangePixelSpacing
	return line, sample, rslt, rslt.Err()
}

// Run streams the topo raster block by block, writing the azimuth offsets [lines] and the
// range offsets [pixels] to the single band of azoff and rgoff.
// azshift and rgshift are constant shifts in lines and pixels applied to the radar grid.
// Read and write failures abort the run with ErrIO, and an orbit that cannot be interpolated
// at mid-scene aborts it with ErrOutOfBoundsTime before any I/O. Outputs of an aborted run
// are undefined.
func (g *Geo2rdr) Run(ctx context.Context, topo, azoff, rgoff Raster, azshift, rgshift float64) (ConvergenceSummary, error) {
	var summary ConvergenceSummary

	proj, err := g.checkRasters(topo, azoff, rgoff)
	if err != nil {
		return summary, err
	}
	width, length := topo.Width(), topo.Length()
	blocks, err := Partition(length, g.linesPerBlock)
	if err != nil {
		return summary, err
	}

	grid := g.grid
	dtaz := grid.AzimuthTimeInterval()
	dmrg := grid.RangePixelSpacing
	t0, tend, r0, rngend := g.origin(azshift, rgshift)
	tmid := 0.5 * (t0 + tend)

	g.observer.Extents(Extents{
		T0: t0, TEnd: tend, AzimuthInterval: dtaz,
		R0: r0, REnd: rngend, RangeSpacing: dmrg,
		Grid: grid, TopoWidth: width, TopoLength: length, Blocks: len(blocks),
	})

	// Interpolate orbit to middle of the scene as a test
	if _, _, err := g.orbit.Interpolate(tmid); err != nil {
		return summary, fmt.Errorf("orbit check at mid-scene time %.6f: %w", tmid, err)
	}

	eval := &Evaluator{
		Orbit:      g.orbit,
		Doppler:    g.doppler,
		Projection: proj,
		Wavelength: grid.Wavelength,
		Interval:   SearchInterval{Start: t0, End: tend},
		T0:         t0,
		R0:         r0,
		PRF:        grid.PRF,
		Spacing:    dmrg,
		Params:     g.params,
		Workers:    g.workers,
	}

	// Doppler diagnostics are the same for every block
	nearRange := grid.StartingRange
	midRange := grid.MidRange()
	farRange := grid.EndingRange()

	for _, be := range blocks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		b := NewBlock(be.Index, be.LineStart, be.Length, width)

		// Read block of topo data
		for _, in := range []struct {
			buf  []float64
			band int
		}{{b.X, BandX}, {b.Y, BandY}, {b.Height, BandHeight}} {
			if err := topo.GetBlock(in.buf, 0, b.LineStart, width, b.Length, in.band); err != nil {
				return summary, fmt.Errorf("%w: block %d band %d: %w", ErrIO, b.Index, in.band, err)
			}
		}

		conv, err := eval.EvaluateBlock(ctx, b)
		if err != nil {
			return summary, err
		}

		// Write block of data
		if err := rgoff.SetBlock(b.RgOff, 0, b.LineStart, width, b.Length, 1); err != nil {
			return summary, fmt.Errorf("%w: range offsets block %d: %w", ErrIO, b.Index, err)
		}
		if err := azoff.SetBlock(b.AzOff, 0, b.LineStart, width, b.Length, 1); err != nil {
			return summary, fmt.Errorf("%w: azimuth offsets block %d: %w", ErrIO, b.Index, err)
		}

		summary.Converged += conv
		summary.Total += b.Size()

		st := BlockStats{
			Index:       b.Index,
			LineStart:   b.LineStart,
			LineEnd:     b.LineEnd(),
			DopplerNear: g.doppler.Eval(nearRange),
			DopplerMid:  g.doppler.Eval(midRange),
			DopplerFar:  g.doppler.Eval(farRange),
			Converged:   conv,
			Points:      b.Size(),
		}
		blockOffsetStats(b, &st)
		g.observer.Block(st)
	}

	g.observer.Done(summary)
	return summary, nil
}

// RunToDir creates azimuth.off and range.off in outdir, with the size and EPSG of topo, and runs geo2rdr.
func (g *Geo2rdr) RunToDir(ctx context.Context, topo Raster, outdir string, azshift, rgshift float64) (summary ConvergenceSummary, err error) {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrIO, err)
	}
	rgoff, err := CreateFileRaster(filepath.Join(outdir, RangeOffsetFile), topo.Width(), topo.Length(), 1, topo.EPSG())
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		err = errors.Join(err, rgoff.Close())
	}()
	azoff, err := CreateFileRaster(filepath.Join(outdir, AzimuthOffsetFile), topo.Width(), topo.Length(), 1, topo.EPSG())
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		err = errors.Join(err, azoff.Close())
	}()
	return g.Run(ctx, topo, azoff, rgoff, azshift, rgshift)
}
