// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		length, lines int
		want          []BlockExtent
	}{
		{10, 10, []BlockExtent{{0, 0, 10}}},
		{10, 100, []BlockExtent{{0, 0, 10}}},
		{10, 4, []BlockExtent{{0, 0, 4}, {1, 4, 4}, {2, 8, 2}}},
		{1, 1, []BlockExtent{{0, 0, 1}}},
	}
	for _, tt := range tests {
		got, err := Partition(tt.length, tt.lines)
		require.NoError(t, err)
		assert.True(t, cmp.Equal(tt.want, got), cmp.Diff(tt.want, got))
	}

	blocks, err := Partition(1050, 100)
	require.NoError(t, err)
	require.Len(t, blocks, 11)
	assert.Equal(t, BlockExtent{Index: 10, LineStart: 1000, Length: 50}, blocks[10])
	total := 0
	for i, b := range blocks {
		assert.Equal(t, total, b.LineStart, "block %d", i)
		total += b.Length
	}
	assert.Equal(t, 1050, total)

	_, err = Partition(10, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = Partition(0, 10)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func newTestGeo2rdr(t *testing.T, opts ...Option) *Geo2rdr {
	t.Helper()
	g, err := New(testGrid(), newTestOrbit(t), ZeroDoppler, opts...)
	require.NoError(t, err)
	return g
}

func TestRunOffsets(t *testing.T) {
	grid := testGrid()
	// Point (i, j) is seen at radar line 10i+2 and sample 5j+1
	topo := testTopo(t, grid, 30, 45, 10, 5, 2, 1)
	azoff, rgoff := newOutputs(t, topo)
	obs := &recordingObserver{}

	g := newTestGeo2rdr(t, WithLinesPerBlock(10), WithObserver(obs))
	summary, err := g.Run(context.Background(), topo, azoff, rgoff, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ConvergenceSummary{Converged: 30 * 45, Total: 30 * 45}, summary)
	assert.Equal(t, 1.0, summary.Ratio())

	for i := 0; i < 45; i++ {
		for j := 0; j < 30; j++ {
			assert.InDelta(t, 9*float64(i)+2, azoff.At(1, i, j), 1e-5, "line %d sample %d", i, j)
			assert.InDelta(t, 4*float64(j)+1, rgoff.At(1, i, j), 1e-5, "line %d sample %d", i, j)
		}
	}

	require.Len(t, obs.extents, 1)
	assert.Equal(t, 5, obs.extents[0].Blocks)
	assert.InDelta(t, 9.99, obs.extents[0].TEnd, 1e-12)
	require.Len(t, obs.blocks, 5)
	assert.Equal(t, 40, obs.blocks[4].LineStart)
	assert.Equal(t, 45, obs.blocks[4].LineEnd)
	assert.Equal(t, 150, obs.blocks[4].Points)
	assert.Equal(t, 0.0, obs.blocks[4].DopplerMid)
	assert.InDelta(t, 4*29+1, obs.blocks[0].RgOffMax, 1e-5)
	require.Len(t, obs.done, 1)
	assert.Equal(t, summary, obs.done[0])
}

func TestRunShifts(t *testing.T) {
	grid := testGrid()
	topo := testTopo(t, grid, 6, 7, 1, 1, 0, 0)
	azoff, rgoff := newOutputs(t, topo)

	// Shifting the grid by (azshift, rgshift) adds them to the offsets
	g := newTestGeo2rdr(t)
	_, err := g.Run(context.Background(), topo, azoff, rgoff, 2.5, -1.5)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		for j := 0; j < 6; j++ {
			assert.InDelta(t, 2.5, azoff.At(1, i, j), 1e-5)
			assert.InDelta(t, -1.5, rgoff.At(1, i, j), 1e-5)
		}
	}
}

// Outputs do not depend on the block size or the number of workers
func TestRunBlockSizeInvariance(t *testing.T) {
	grid := testGrid()
	topo := testTopo(t, grid, 13, 37, 25, 30, 0.3, 0.7)

	run := func(opts ...Option) (*MemRaster, *MemRaster, ConvergenceSummary) {
		azoff, rgoff := newOutputs(t, topo)
		summary, err := newTestGeo2rdr(t, opts...).Run(context.Background(), topo, azoff, rgoff, 0, 0)
		require.NoError(t, err)
		return azoff, rgoff, summary
	}
	az1, rg1, s1 := run(WithLinesPerBlock(1000))
	for _, opts := range [][]Option{
		{WithLinesPerBlock(1)},
		{WithLinesPerBlock(7)},
		{WithLinesPerBlock(36)},
		{WithLinesPerBlock(5), WithWorkers(4)},
		{WithLinesPerBlock(37), WithWorkers(0)},
	} {
		az, rg, s := run(opts...)
		assert.Equal(t, s1, s)
		assert.True(t, cmp.Equal(az1.Band(1), az.Band(1)))
		assert.True(t, cmp.Equal(rg1.Band(1), rg.Band(1)))
	}
}

func TestRunMixedConvergence(t *testing.T) {
	grid := testGrid()
	// Lines 0-2 are seen at 0, 5 and 10 s, lines 3-5 at 20, 25 and 30 s after the orbit ends
	topo := testTopo(t, grid, 4, 6, 500, 1, 0, 0)
	for i := 3; i < 6; i++ {
		for j := 0; j < 4; j++ {
			p := testTarget(float64(i)*5+5, grid.SlantRange(float64(j)))
			topo.Set(BandX, i, j, p.X)
			topo.Set(BandY, i, j, p.Y)
			topo.Set(BandHeight, i, j, p.Z)
		}
	}
	azoff, rgoff := newOutputs(t, topo)
	obs := &recordingObserver{}

	g := newTestGeo2rdr(t, WithLinesPerBlock(2), WithObserver(obs))
	summary, err := g.Run(context.Background(), topo, azoff, rgoff, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ConvergenceSummary{Converged: 12, Total: 24}, summary)

	require.Len(t, obs.blocks, 3)
	assert.Equal(t, 8, obs.blocks[0].Converged)
	assert.Equal(t, 4, obs.blocks[1].Converged)
	assert.Equal(t, 0, obs.blocks[2].Converged)

	// Converged points carry their offsets
	assert.InDelta(t, 998, azoff.At(1, 2, 0), 1e-5)

	// The others keep the last time the orbit was evaluated at, the initial guess of 4.995 s,
	// together with the range at that time
	for i := 3; i < 6; i++ {
		for j := 0; j < 4; j++ {
			target := testTarget(float64(i)*5+5, grid.SlantRange(float64(j)))
			rng := r3.Norm(r3.Sub(target, testPosition(4.995)))
			assert.InDelta(t, 499.5-float64(i), azoff.At(1, i, j), 1e-6, "line %d sample %d", i, j)
			assert.InDelta(t, (rng-grid.StartingRange)/grid.RangePixelSpacing-float64(j), rgoff.At(1, i, j), 1e-6,
				"line %d sample %d", i, j)
		}
	}
	// Block statistics include those estimates
	assert.InDelta(t, 495.0, obs.blocks[2].AzOffMean, 1e-6)
}

func TestRunOrbitCheckBeforeIO(t *testing.T) {
	grid := testGrid()
	grid.SensingStart = 100
	topo := testTopo(t, testGrid(), 3, 5, 1, 1, 0, 0)
	azoff, rgoff := newOutputs(t, topo)
	rtopo := &recordingRaster{Raster: topo}
	raz := &recordingRaster{Raster: azoff}
	rrg := &recordingRaster{Raster: rgoff}

	g, err := New(grid, newTestOrbit(t), ZeroDoppler)
	require.NoError(t, err)
	_, err = g.Run(context.Background(), rtopo, raz, rrg, 0, 0)
	assert.True(t, errors.Is(err, ErrOutOfBoundsTime))
	assert.Equal(t, 0, rtopo.reads)
	assert.Equal(t, 0, raz.writes+rrg.writes)

	// The shift moves the grid back into the orbit
	_, err = g.Run(context.Background(), rtopo, raz, rrg, 100/grid.AzimuthTimeInterval(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, rtopo.reads)
}

func TestRunIOFailures(t *testing.T) {
	grid := testGrid()
	topo := testTopo(t, grid, 3, 5, 1, 1, 0, 0)
	azoff, rgoff := newOutputs(t, topo)
	g := newTestGeo2rdr(t, WithLinesPerBlock(2))

	_, err := g.Run(context.Background(), &recordingRaster{Raster: topo, failGet: errDisk}, azoff, rgoff, 0, 0)
	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, errDisk))

	raz := &recordingRaster{Raster: azoff, failSet: errDisk}
	_, err = g.Run(context.Background(), topo, raz, rgoff, 0, 0)
	assert.True(t, errors.Is(err, ErrIO))
	assert.Equal(t, 1, raz.writes)
}

func TestRunInvalid(t *testing.T) {
	grid := testGrid()
	topo := testTopo(t, grid, 3, 5, 1, 1, 0, 0)
	azoff, rgoff := newOutputs(t, topo)
	g := newTestGeo2rdr(t)
	ctx := context.Background()

	small, err := NewMemRaster(3, 4, 1, 4978)
	require.NoError(t, err)
	_, err = g.Run(ctx, topo, small, rgoff, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	twoBands, err := NewMemRaster(3, 5, 2, 4978)
	require.NoError(t, err)
	_, err = g.Run(ctx, twoBands, azoff, rgoff, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	webMercator, err := NewMemRaster(3, 5, 3, 3857)
	require.NoError(t, err)
	_, err = g.Run(ctx, webMercator, azoff, rgoff, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = New(grid, newTestOrbit(t), ZeroDoppler, WithLinesPerBlock(0))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = New(grid, newTestOrbit(t), ZeroDoppler, WithThreshold(-1))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = New(grid, newTestOrbit(t), ZeroDoppler, WithMaxIter(0))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = New(grid, nil, ZeroDoppler)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	bad := grid
	bad.PRF = 0
	_, err = New(bad, newTestOrbit(t), ZeroDoppler)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestRunCancelled(t *testing.T) {
	grid := testGrid()
	topo := testTopo(t, grid, 3, 5, 1, 1, 0, 0)
	azoff, rgoff := newOutputs(t, topo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestGeo2rdr(t).Run(ctx, topo, azoff, rgoff, 0, 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunToDir(t *testing.T) {
	grid := testGrid()
	mem := testTopo(t, grid, 8, 9, 50, 20, 0.5, 0.5)

	dir := t.TempDir()
	topoPath := filepath.Join(dir, "topo.rdr")
	topo, err := CreateFileRaster(topoPath, 8, 9, 3, 4978)
	require.NoError(t, err)
	for band := 1; band <= 3; band++ {
		require.NoError(t, topo.SetBlock(mem.Band(band), 0, 0, 8, 9, band))
	}

	var log bytes.Buffer
	g := newTestGeo2rdr(t, WithLinesPerBlock(4), WithObserver(PrintObserver{P: NewPrinter(&log, 2)}))
	outdir := filepath.Join(dir, "out")
	summary, err := g.RunToDir(context.Background(), topo, outdir, 0, 0)
	require.NoError(t, err)
	require.NoError(t, topo.Close())
	assert.Equal(t, 72, summary.Converged)
	assert.Contains(t, log.String(), "Total convergence: 72 out of 72")
	assert.Contains(t, log.String(), "Processing block: 2")

	azoff, err := OpenFileRaster(filepath.Join(outdir, AzimuthOffsetFile), false)
	require.NoError(t, err)
	defer azoff.Close()
	rgoff, err := OpenFileRaster(filepath.Join(outdir, RangeOffsetFile), false)
	require.NoError(t, err)
	defer rgoff.Close()
	assert.Equal(t, 4978, azoff.EPSG())

	row := make([]float64, 8)
	require.NoError(t, azoff.GetBlock(row, 0, 6, 8, 1, 1))
	for j := range row {
		assert.InDelta(t, 49*6+0.5, row[j], 1e-5)
	}
	require.NoError(t, rgoff.GetBlock(row, 0, 6, 8, 1, 1))
	for j := range row {
		assert.InDelta(t, 19*float64(j)+0.5, row[j], 1e-5)
	}
}

func TestPoint(t *testing.T) {
	g := newTestGeo2rdr(t)
	llh := WGS84.ToLLH(testTarget(3.21, 753000))

	line, sample, rslt, err := g.Point(llh, 0, 0)
	require.NoError(t, err)
	assert.True(t, rslt.Converged)
	assert.InDelta(t, 321, line, 1e-3)
	assert.InDelta(t, 300, sample, 1e-3)

	line, sample, _, err = g.Point(llh, 10, -2)
	require.NoError(t, err)
	assert.InDelta(t, 331, line, 1e-3)
	assert.InDelta(t, 298, sample, 1e-3)

	grid := testGrid()
	grid.SensingStart = 100
	g, err = New(grid, newTestOrbit(t), ZeroDoppler)
	require.NoError(t, err)
	_, _, _, err = g.Point(llh, 0, 0)
	assert.True(t, errors.Is(err, ErrOutOfBoundsTime))
}
