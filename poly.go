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

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Poly1d evaluates sum_i Coeffs[i] * ((x - Mean) / Norm)^i
type Poly1d struct {
	Coeffs []float64
	Mean   float64
	Norm   float64
}

func NewPoly1d(coeffs []float64, mean, norm float64) (*Poly1d, error) {
	if len(coeffs) == 0 {
		return nil, fmt.Errorf("%w: polynomial without coefficients", ErrInvalidConfiguration)
	}
	if norm == 0 {
		return nil, fmt.Errorf("%w: polynomial norm must not be zero", ErrInvalidConfiguration)
	}
	return &Poly1d{Coeffs: coeffs, Mean: mean, Norm: norm}, nil
}

func (p *Poly1d) Order() int { return len(p.Coeffs) - 1 }

// Horner's method
func (p *Poly1d) Eval(x float64) float64 {
	u := (x - p.Mean) / p.Norm
	v := 0.0
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		v = v*u + p.Coeffs[i]
	}
	return v
}

func (p *Poly1d) Derivative(x float64) float64 {
	u := (x - p.Mean) / p.Norm
	v := 0.0
	for i := len(p.Coeffs) - 1; i >= 1; i-- {
		v = v*u + float64(i)*p.Coeffs[i]
	}
	return v / p.Norm
}

// Fit a polynomial of the given order to samples, optionally weighted (nil weights = 1).
// The abscissa is centred on its mean and scaled by its standard deviation.
func FitPoly1d(xs, ys, weights []float64, order int) (*Poly1d, error) {
	n := len(xs)
	if len(ys) != n || (weights != nil && len(weights) != n) {
		return nil, fmt.Errorf("invalid sample size. xs(%d), ys(%d), weights(%d)", n, len(ys), len(weights))
	}
	if order < 0 || n < order+1 {
		return nil, fmt.Errorf("%d samples are not enough for order %d", n, order)
	}

	mean, std := stat.MeanStdDev(xs, nil)
	if std == 0 || n == 1 {
		std = 1
	}

	// Design matrix
	G := mat.NewDense(n, order+1, nil)
	for i, x := range xs {
		u := (x - mean) / std
		v := 1.0
		for j := 0; j <= order; j++ {
			G.Set(i, j, v)
			v *= u
		}
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
		if weights != nil {
			w[i] = weights[i]
		}
	}
	coeffs, err := solveWeightedLS(G, ys, w)
	if err != nil {
		return nil, fmt.Errorf("polynomial fit failed: %w", err)
	}
	return NewPoly1d(coeffs, mean, std)
}

// Weighted least squares for the coefficients of G c = y. Rows are scaled by
// sqrt(w) and the overdetermined system is solved by QR.
func solveWeightedLS(G *mat.Dense, ys, w []float64) ([]float64, error) {
	n, m := G.Dims()
	if len(ys) != n || len(w) != n {
		return nil, fmt.Errorf("invalid sample size. G(%d x %d), ys(%d), weights(%d)", n, m, len(ys), len(w))
	}

	A := mat.NewDense(n, m, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if w[i] < 0 || math.IsNaN(w[i]) {
			return nil, fmt.Errorf("invalid weight %g at sample %d", w[i], i)
		}
		s := math.Sqrt(w[i])
		for j := 0; j < m; j++ {
			A.Set(i, j, s*G.At(i, j))
		}
		b.SetVec(i, s*ys[i])
	}

	var c mat.VecDense
	if err := c.SolveVec(A, b); err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, &c), nil
}
