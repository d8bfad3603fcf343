// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

// DopplerModel gives the Doppler centroid [Hz] at a slant range [m].
type DopplerModel interface {
	Eval(slantRange float64) float64
}

// DopplerDerivative is implemented by models with an analytic d(Doppler)/d(range).
type DopplerDerivative interface {
	Derivative(slantRange float64) float64
}

// Step of the central difference for models without Derivative [m]
const dopplerStep = 1.0

// Derivative of the model at slantRange, analytic when available
func dopplerSlope(m DopplerModel, slantRange float64) float64 {
	if d, ok := m.(DopplerDerivative); ok {
		return d.Derivative(slantRange)
	}
	return fd.Derivative(m.Eval, slantRange, &fd.Settings{Formula: fd.Central, Step: dopplerStep})
}

//-------------------------------------------------------------------
// ConstantDoppler
//-------------------------------------------------------------------

type ConstantDoppler float64

func (c ConstantDoppler) Eval(float64) float64       { return float64(c) }
func (c ConstantDoppler) Derivative(float64) float64 { return 0 }

// Zero-Doppler geometry
var ZeroDoppler = ConstantDoppler(0)

//-------------------------------------------------------------------
// LUT1d
//-------------------------------------------------------------------

// LUT1d interpolates linearly between samples and extrapolates with the edge slopes.
type LUT1d struct {
	coords []float64
	values []float64
	lin    interp.PiecewiseLinear
}

func NewLUT1d(coords, values []float64) (*LUT1d, error) {
	if len(coords) != len(values) {
		return nil, fmt.Errorf("%w: LUT1d has %d coordinates and %d values", ErrInvalidConfiguration, len(coords), len(values))
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("%w: LUT1d needs at least 2 samples", ErrInvalidConfiguration)
	}
	for i := 1; i < len(coords); i++ {
		if coords[i] <= coords[i-1] {
			return nil, fmt.Errorf("%w: LUT1d coordinates are not strictly increasing", ErrInvalidConfiguration)
		}
	}
	l := &LUT1d{coords: slices.Clone(coords), values: slices.Clone(values)}
	l.lin.Fit(l.coords, l.values)
	return l, nil
}

func (l *LUT1d) Size() int         { return len(l.coords) }
func (l *LUT1d) Coords() []float64 { return slices.Clone(l.coords) }
func (l *LUT1d) Values() []float64 { return slices.Clone(l.values) }

// Index of the segment [coords[i], coords[i+1]] used for x
func (l *LUT1d) segment(x float64) int {
	i, _ := slices.BinarySearch(l.coords, x)
	i -= 1
	if i < 0 {
		i = 0
	}
	if i > len(l.coords)-2 {
		i = len(l.coords) - 2
	}
	return i
}

func (l *LUT1d) Eval(x float64) float64 {
	n := len(l.coords)
	switch {
	case x < l.coords[0]:
		return l.values[0] + l.Derivative(x)*(x-l.coords[0])
	case x > l.coords[n-1]:
		return l.values[n-1] + l.Derivative(x)*(x-l.coords[n-1])
	}
	return l.lin.Predict(x)
}

func (l *LUT1d) Derivative(x float64) float64 {
	i := l.segment(x)
	return (l.values[i+1] - l.values[i]) / (l.coords[i+1] - l.coords[i])
}

//-------------------------------------------------------------------
// LUT2d
//-------------------------------------------------------------------

// LUT2d is a regular grid over azimuth time (rows) and slant range (columns),
// evaluated bilinearly and clamped at the edges.
type LUT2d struct {
	XStart   float64 // First slant range [m]
	XSpacing float64
	YStart   float64 // First azimuth time [s]
	YSpacing float64
	Data     *mat.Dense
}

func NewLUT2d(xStart, xSpacing, yStart, ySpacing float64, data *mat.Dense) (*LUT2d, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: LUT2d without data", ErrInvalidConfiguration)
	}
	if r, c := data.Dims(); r < 1 || c < 1 {
		return nil, fmt.Errorf("%w: empty LUT2d", ErrInvalidConfiguration)
	}
	if xSpacing <= 0 || ySpacing <= 0 {
		return nil, fmt.Errorf("%w: LUT2d spacing must be positive", ErrInvalidConfiguration)
	}
	return &LUT2d{XStart: xStart, XSpacing: xSpacing, YStart: yStart, YSpacing: ySpacing, Data: data}, nil
}

// Fractional index clamped to [0, n-1]
func clampIndex(v float64, n int) (i int, frac float64) {
	if v <= 0 || n == 1 {
		return 0, 0
	}
	if v >= float64(n-1) {
		return n - 2, 1
	}
	f := math.Floor(v)
	return int(f), v - f
}

// Value at azimuth time y and slant range x
func (l *LUT2d) Eval(y, x float64) float64 {
	rows, cols := l.Data.Dims()
	i, fy := clampIndex((y-l.YStart)/l.YSpacing, rows)
	j, fx := clampIndex((x-l.XStart)/l.XSpacing, cols)
	at := func(r, c int) float64 {
		return l.Data.At(min(r, rows-1), min(c, cols-1))
	}
	v0 := at(i, j)*(1-fx) + at(i, j+1)*fx
	v1 := at(i+1, j)*(1-fx) + at(i+1, j+1)*fx
	return v0*(1-fy) + v1*fy
}

// Collapse a 2D Doppler to range only by averaging over azimuth
func AvgLUT2dToLUT1d(l *LUT2d) (*LUT1d, error) {
	rows, cols := l.Data.Dims()
	if cols < 2 {
		return nil, fmt.Errorf("%w: LUT2d needs at least 2 range samples", ErrInvalidConfiguration)
	}
	coords := make([]float64, cols)
	values := make([]float64, cols)
	for j := 0; j < cols; j++ {
		coords[j] = l.XStart + float64(j)*l.XSpacing
		values[j] = mat.Sum(l.Data.ColView(j)) / float64(rows)
	}
	return NewLUT1d(coords, values)
}
