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
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvergenceSummaryRatio(t *testing.T) {
	assert.Equal(t, 0.0, ConvergenceSummary{}.Ratio())
	assert.Equal(t, 0.25, ConvergenceSummary{Converged: 1, Total: 4}.Ratio())
}

func TestBlockOffsetStats(t *testing.T) {
	b := NewBlock(0, 0, 2, 2)
	copy(b.AzOff, []float64{1, NullValue, 3, 5})
	copy(b.RgOff, []float64{-2, 7, 0, 2})

	var st BlockStats
	blockOffsetStats(b, &st)
	assert.Equal(t, 3.0, st.AzOffMean)
	assert.Equal(t, 1.0, st.AzOffMin)
	assert.Equal(t, 5.0, st.AzOffMax)
	assert.Equal(t, 0.0, st.RgOffMean)
	assert.Equal(t, -2.0, st.RgOffMin)
	assert.Equal(t, 2.0, st.RgOffMax)

	for k := range b.AzOff {
		b.AzOff[k] = NullValue
	}
	blockOffsetStats(b, &st)
	assert.True(t, math.IsNaN(st.AzOffMean))
	assert.True(t, math.IsNaN(st.RgOffMax))
}

func TestMultiObserver(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	m := MultiObserver{a, NopObserver{}, b}
	m.Extents(Extents{Blocks: 2})
	m.Block(BlockStats{Index: 1})
	m.Done(ConvergenceSummary{Converged: 3, Total: 4})

	for _, o := range []*recordingObserver{a, b} {
		require.Len(t, o.extents, 1)
		assert.Equal(t, 2, o.extents[0].Blocks)
		require.Len(t, o.blocks, 1)
		assert.Equal(t, 1, o.blocks[0].Index)
		assert.Equal(t, []ConvergenceSummary{{Converged: 3, Total: 4}}, o.done)
	}
}

func TestPrintObserverLevels(t *testing.T) {
	ext := Extents{T0: 1, TEnd: 2, AzimuthInterval: 0.01, R0: 750000, REnd: 755000, RangeSpacing: 10, Blocks: 3}
	st := BlockStats{Index: 2, LineStart: 20, LineEnd: 25, Converged: 4, Points: 5}
	sum := ConvergenceSummary{Converged: 9, Total: 10}

	run := func(level int) string {
		var buf bytes.Buffer
		o := PrintObserver{P: NewPrinter(&buf, level)}
		o.Extents(ext)
		o.Block(st)
		o.Done(sum)
		return buf.String()
	}

	assert.Empty(t, run(0))

	out := run(1)
	assert.Contains(t, out, "Near range (m): 750000.000\n")
	assert.Contains(t, out, "Total convergence: 9 out of 10\n")
	assert.NotContains(t, out, "Processing block")

	out = run(2)
	assert.Contains(t, out, "Number of blocks: 3\n")
	assert.Contains(t, out, "Processing block: 2\n")
	assert.Contains(t, out, "  - converged: 4 of 5\n")
	assert.NotContains(t, out, "offset mean")

	out = run(3)
	assert.Equal(t, 2, strings.Count(out, "offset mean/min/max"))
}

func TestPlotObserverSave(t *testing.T) {
	o := NewPlotObserver()
	dir := t.TempDir()
	assert.Error(t, o.Save(dir))

	o.Extents(Extents{Blocks: 3})
	o.Block(BlockStats{Index: 0, Converged: 10, Points: 10, AzOffMean: 1, RgOffMean: 2})
	o.Block(BlockStats{Index: 1, Converged: 0, Points: 10, AzOffMean: math.NaN(), RgOffMean: math.NaN()})
	o.Block(BlockStats{Index: 2, Converged: 5, Points: 10, AzOffMean: 3, RgOffMean: 4})
	o.Done(ConvergenceSummary{Converged: 15, Total: 30})
	require.Len(t, o.Blocks(), 3)

	out := filepath.Join(dir, "plots")
	require.NoError(t, o.Save(out))
	for _, name := range []string{ConvergencePlotFile, OffsetPlotFile} {
		st, err := os.Stat(filepath.Join(out, name))
		require.NoError(t, err, name)
		assert.Greater(t, st.Size(), int64(0), name)
	}

	// A new run starts from an empty record
	o.Extents(Extents{})
	assert.Empty(t, o.Blocks())
}

// Blocks reach the plot observer through a run
func TestPlotObserverRun(t *testing.T) {
	grid := testGrid()
	topo := testTopo(t, grid, 6, 9, 10, 5, 0, 0)
	azoff, rgoff := newOutputs(t, topo)
	o := NewPlotObserver()

	g := newTestGeo2rdr(t, WithLinesPerBlock(4), WithObserver(o))
	_, err := g.Run(context.Background(), topo, azoff, rgoff, 0, 0)
	require.NoError(t, err)
	blocks := o.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, 8, blocks[2].LineStart)
	assert.Equal(t, 6, blocks[2].Points)
}
