// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// Straight-line test orbit P(t) = P0 + V t, sampled every second over [-10, 11]
var (
	testP0    = r3.Vec{X: 7000e3, Y: 0, Z: 0}
	testV     = r3.Vec{X: 0, Y: 7500, Z: 0}
	testEpoch = DateTime{Sec: 1577836800} // 2020-01-01T00:00:00
)

const (
	testOrbitStart = -10
	testOrbitEnd   = 11
	testLookAngle  = 0.41 // Angle of the look vector from -X towards +Z [rad]
)

func testPosition(t float64) r3.Vec {
	return r3.Add(testP0, r3.Scale(t, testV))
}

func testStateVectors() []StateVector {
	svs := []StateVector{}
	for t := testOrbitStart; t <= testOrbitEnd; t++ {
		svs = append(svs, StateVector{
			Time:     testEpoch.Add(TimeDelta(t)),
			Position: testPosition(float64(t)),
			Velocity: testV,
		})
	}
	return svs
}

func newTestOrbit(t *testing.T, opts ...OrbitOption) *Orbit {
	t.Helper()
	orbit, err := NewOrbit(testStateVectors(), testEpoch, opts...)
	require.NoError(t, err)
	return orbit
}

// Target seen at zero Doppler at time tc and slant range rng.
// The look vector is perpendicular to V.
func testTarget(tc, rng float64) r3.Vec {
	d := r3.Vec{X: -math.Cos(testLookAngle), Y: 0, Z: math.Sin(testLookAngle)}
	return r3.Add(testPosition(tc), r3.Scale(rng, d))
}

func testGrid() RadarGridParameters {
	return RadarGridParameters{
		SensingStart:      0,
		RefEpoch:          testEpoch,
		Wavelength:        0.24,
		PRF:               100,
		StartingRange:     750000,
		RangePixelSpacing: 10,
		LookSide:          Right,
		Length:            1000,
		Width:             500,
	}
}

// Geocentric topo raster whose point (line, sample) is seen at the radar pixel
// (line*lineStep + azOff, sample*sampleStep + rgOff)
func testTopo(t *testing.T, grid RadarGridParameters, width, length int, lineStep, sampleStep, azOff, rgOff float64) *MemRaster {
	t.Helper()
	topo, err := NewMemRaster(width, length, 3, 4978)
	require.NoError(t, err)
	for i := 0; i < length; i++ {
		for j := 0; j < width; j++ {
			tc := grid.SensingTime(float64(i)*lineStep + azOff)
			rng := grid.SlantRange(float64(j)*sampleStep + rgOff)
			p := testTarget(tc, rng)
			topo.Set(BandX, i, j, p.X)
			topo.Set(BandY, i, j, p.Y)
			topo.Set(BandHeight, i, j, p.Z)
		}
	}
	return topo
}

func newOutputs(t *testing.T, topo Raster) (azoff, rgoff *MemRaster) {
	t.Helper()
	azoff, err := NewMemRaster(topo.Width(), topo.Length(), 1, topo.EPSG())
	require.NoError(t, err)
	rgoff, err = NewMemRaster(topo.Width(), topo.Length(), 1, topo.EPSG())
	require.NoError(t, err)
	return azoff, rgoff
}

// Raster wrapper counting block reads and failing on demand
type recordingRaster struct {
	Raster
	reads   int
	writes  int
	failGet error
	failSet error
}

func (r *recordingRaster) GetBlock(buf []float64, xOff, yOff, nx, ny, band int) error {
	r.reads += 1
	if r.failGet != nil {
		return r.failGet
	}
	return r.Raster.GetBlock(buf, xOff, yOff, nx, ny, band)
}

func (r *recordingRaster) SetBlock(buf []float64, xOff, yOff, nx, ny, band int) error {
	r.writes += 1
	if r.failSet != nil {
		return r.failSet
	}
	return r.Raster.SetBlock(buf, xOff, yOff, nx, ny, band)
}

var errDisk = errors.New("disk failure")

// Observer keeping every event
type recordingObserver struct {
	extents []Extents
	blocks  []BlockStats
	done    []ConvergenceSummary
}

func (o *recordingObserver) Extents(ext Extents)         { o.extents = append(o.extents, ext) }
func (o *recordingObserver) Block(st BlockStats)         { o.blocks = append(o.blocks, st) }
func (o *recordingObserver) Done(sum ConvergenceSummary) { o.done = append(o.done, sum) }
