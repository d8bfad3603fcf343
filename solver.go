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

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/spatial/r3"
)

// Azimuth time interval [Start, End] whose midpoint is the initial guess
type SearchInterval struct {
	Start float64
	End   float64
}

func (s SearchInterval) Mid() float64 {
	return 0.5 * (s.Start + s.End)
}

type SolverParams struct {
	Threshold float64 // Convergence threshold on the Newton step [s]
	MaxIter   int     // Iteration budget
}

func DefaultSolverParams() SolverParams {
	return SolverParams{Threshold: DefaultThreshold, MaxIter: DefaultMaxIter}
}

func (p SolverParams) Validate() error {
	if !(p.Threshold > 0) {
		return fmt.Errorf("%w: threshold %g must be positive", ErrInvalidConfiguration, p.Threshold)
	}
	if p.MaxIter <= 0 {
		return fmt.Errorf("%w: iteration budget %d must be positive", ErrInvalidConfiguration, p.MaxIter)
	}
	return nil
}

// InversionResult of one ground point.
// A non-converged result keeps the last estimate, an azimuth time with the range at that
// time, or NaN for both when the orbit was never evaluated. Callers must check Converged.
type InversionResult struct {
	AzimuthTime float64 // Seconds since the orbit reference epoch
	SlantRange  float64 // [m]
	Converged   bool
	Iterations  int
}

func (r InversionResult) Err() error {
	if r.Converged {
		return nil
	}
	return fmt.Errorf("%w after %d iterations (t=%.9f, r=%.3f)", ErrNonConvergence, r.Iterations, r.AzimuthTime, r.SlantRange)
}

// Sensor acceleration from the trajectory, or by difference of its velocity.
// The difference is central inside the trajectory and one-sided at its edges.
func trajectoryAcceleration(orbit Trajectory, t float64) (r3.Vec, error) {
	if a, ok := orbit.(Accelerator); ok {
		return a.Acceleration(t)
	}
	formula := fd.Central
	if _, _, err := orbit.Interpolate(t + accelerationStep); err != nil {
		formula = fd.Backward
	} else if _, _, err := orbit.Interpolate(t - accelerationStep); err != nil {
		formula = fd.Forward
	}

	var ferr error
	settings := &fd.Settings{Formula: formula, Step: accelerationStep}
	var acc [3]float64
	for k := 0; k < 3; k++ {
		k := k
		acc[k] = fd.Derivative(func(x float64) float64 {
			_, v, err := orbit.Interpolate(x)
			if err != nil {
				ferr = err
			}
			return component(v, k)
		}, t, settings)
	}
	return r3.Vec{X: acc[0], Y: acc[1], Z: acc[2]}, ferr
}

// Geo2rdrPoint solves the range-Doppler equations for one ECEF target by Newton-Raphson.
//
// With dr = target - pos(t), R = |dr| and fdop = wavelength/2 * doppler(R), the residual is
//
//	f(t)  = dr.v - fdop R
//	f'(t) = -v.v + dr.a + (fdop/R + fdop'(R)) dr.v
//
// f = 0 is the zero-Doppler condition 2 v.dr / (wavelength R) = doppler(R) scaled by wavelength R / 2.
// The iteration stops when the step |f/f'| drops below params.Threshold seconds.
// It never fails: interpolation errors end the iteration with Converged=false and the
// result holds the last time at which the orbit was evaluated, with its range.
func Geo2rdrPoint(target r3.Vec, orbit Trajectory, doppler DopplerModel, wavelength float64,
	interval SearchInterval, params SolverParams) InversionResult {

	// Until a time is evaluated there is no estimate
	rslt := InversionResult{AzimuthTime: math.NaN(), SlantRange: math.NaN()}
	t := interval.Mid()
	halfWvl := 0.5 * wavelength

	for rslt.Iterations < params.MaxIter {
		rslt.Iterations += 1

		pos, vel, err := orbit.Interpolate(t)
		if err != nil {
			return rslt
		}
		acc, err := trajectoryAcceleration(orbit, t)
		if err != nil {
			return rslt
		}
		dr := r3.Sub(target, pos)
		rng := r3.Norm(dr)
		rslt.AzimuthTime = t
		rslt.SlantRange = rng

		fdop := halfWvl * doppler.Eval(rng)
		fdopDer := halfWvl * dopplerSlope(doppler, rng)
		drv := r3.Dot(dr, vel)

		fn := drv - fdop*rng
		fnprime := -r3.Dot(vel, vel) + r3.Dot(dr, acc) + (fdop/rng+fdopDer)*drv
		if fnprime == 0 || math.IsNaN(fnprime) || math.IsInf(fnprime, 0) {
			return rslt
		}

		step := fn / fnprime
		t -= step
		if math.IsNaN(t) {
			return rslt
		}

		if math.Abs(step) < params.Threshold {
			// Range at the converged time
			pos, _, err = orbit.Interpolate(t)
			if err != nil {
				return rslt
			}
			rslt.AzimuthTime = t
			rslt.SlantRange = r3.Norm(r3.Sub(target, pos))
			rslt.Converged = true
			return rslt
		}
	}

	// Out of iterations: the time of the last step, with its range when the orbit covers it
	if pos, _, err := orbit.Interpolate(t); err == nil {
		rslt.AzimuthTime = t
		rslt.SlantRange = r3.Norm(r3.Sub(target, pos))
	}
	return rslt
}
