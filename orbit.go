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
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/spatial/r3"
)

// Trajectory gives the sensor position and velocity at a time in seconds
// since its reference epoch.
type Trajectory interface {
	Interpolate(t float64) (pos, vel r3.Vec, err error)
}

// Accelerator is implemented by trajectories that supply their own acceleration.
type Accelerator interface {
	Acceleration(t float64) (r3.Vec, error)
}

type StateVector struct {
	Time     DateTime
	Position r3.Vec // ECEF [m]
	Velocity r3.Vec // ECEF [m/s]
}

func (sv *StateVector) String() string {
	return fmt.Sprintf("%s %.6f %.6f %.6f %.9f %.9f %.9f", sv.Time,
		sv.Position.X, sv.Position.Y, sv.Position.Z, sv.Velocity.X, sv.Velocity.Y, sv.Velocity.Z)
}

type OrbitInterpMethod int

const (
	Hermite OrbitInterpMethod = iota
	Legendre
)

func (m OrbitInterpMethod) String() string {
	switch m {
	case Hermite:
		return "Hermite"
	case Legendre:
		return "Legendre"
	default:
		return "UNKNOWN!"
	}
}

func (m OrbitInterpMethod) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(m.String())), nil
}

// Number of state vectors used by one Legendre interpolation
const legendreOrder = 9

// Step of the central difference for acceleration [s]
const accelerationStep = 1e-3

type OrbitOption func(*Orbit)

func WithInterpMethod(m OrbitInterpMethod) OrbitOption {
	return func(o *Orbit) { o.method = m }
}

// Allow linear extrapolation up to margin seconds beyond the sampled span
func WithMargin(margin float64) OrbitOption {
	return func(o *Orbit) { o.margin = math.Abs(margin) }
}

// Orbit is an immutable, time-ordered set of state vectors.
// Times are held in seconds since the reference epoch.
type Orbit struct {
	refEpoch DateTime
	time     []float64
	pos      []r3.Vec
	vel      []r3.Vec
	method   OrbitInterpMethod
	margin   float64

	hermite [3]interp.PiecewiseCubic // X, Y, Z
}

func NewOrbit(svs []StateVector, refEpoch DateTime, opts ...OrbitOption) (*Orbit, error) {
	o := &Orbit{refEpoch: refEpoch, margin: DefaultOrbitMargin}
	for _, opt := range opts {
		opt(o)
	}

	minSize := 2
	if o.method == Legendre {
		minSize = legendreOrder
	}
	if len(svs) < minSize {
		return nil, fmt.Errorf("%w: %s interpolation needs at least %d state vectors, got %d",
			ErrInvalidConfiguration, o.method, minSize, len(svs))
	}

	o.time = make([]float64, len(svs))
	o.pos = make([]r3.Vec, len(svs))
	o.vel = make([]r3.Vec, len(svs))
	for i := range svs {
		o.time[i] = svs[i].Time.SecondsSinceEpoch(refEpoch)
		o.pos[i] = svs[i].Position
		o.vel[i] = svs[i].Velocity
	}
	for i := 1; i < len(o.time); i++ {
		if o.time[i] <= o.time[i-1] {
			return nil, fmt.Errorf("%w: state vector times are not strictly increasing at %s",
				ErrInvalidConfiguration, svs[i].Time)
		}
	}

	if o.method == Hermite {
		xs := make([]float64, len(svs))
		vs := make([]float64, len(svs))
		for k := 0; k < 3; k++ {
			for i := range svs {
				xs[i] = component(o.pos[i], k)
				vs[i] = component(o.vel[i], k)
			}
			o.hermite[k].FitWithDerivatives(o.time, xs, vs)
		}
	}
	return o, nil
}

func component(v r3.Vec, k int) float64 {
	switch k {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func (o *Orbit) ReferenceEpoch() DateTime        { return o.refEpoch }
func (o *Orbit) InterpMethod() OrbitInterpMethod { return o.method }
func (o *Orbit) Size() int                       { return len(o.time) }
func (o *Orbit) StartTime() float64              { return o.time[0] }
func (o *Orbit) EndTime() float64                { return o.time[len(o.time)-1] }
func (o *Orbit) MidTime() float64                { return 0.5 * (o.StartTime() + o.EndTime()) }

func (o *Orbit) StartDateTime() DateTime {
	return o.refEpoch.Add(TimeDelta(o.StartTime()))
}

func (o *Orbit) EndDateTime() DateTime {
	return o.refEpoch.Add(TimeDelta(o.EndTime()))
}

func (o *Orbit) StateVectors() []StateVector {
	svs := make([]StateVector, len(o.time))
	for i := range o.time {
		svs[i] = StateVector{Time: o.refEpoch.Add(TimeDelta(o.time[i])), Position: o.pos[i], Velocity: o.vel[i]}
	}
	return svs
}

func (o *Orbit) checkTime(t float64) error {
	if math.IsNaN(t) || t < o.StartTime()-o.margin || t > o.EndTime()+o.margin {
		return fmt.Errorf("%w: %.6f not in [%.6f, %.6f] (margin %.3f)",
			ErrOutOfBoundsTime, t, o.StartTime(), o.EndTime(), o.margin)
	}
	return nil
}

// Position and velocity at t seconds since the reference epoch
func (o *Orbit) Interpolate(t float64) (pos, vel r3.Vec, err error) {
	if err = o.checkTime(t); err != nil {
		return
	}

	// Inside the margin, extrapolate linearly from the edge state vector
	if t < o.StartTime() {
		return r3.Add(o.pos[0], r3.Scale(t-o.StartTime(), o.vel[0])), o.vel[0], nil
	}
	if last := len(o.time) - 1; t > o.EndTime() {
		return r3.Add(o.pos[last], r3.Scale(t-o.EndTime(), o.vel[last])), o.vel[last], nil
	}

	switch o.method {
	case Legendre:
		pos, vel = o.legendre(t)
	default:
		pos = r3.Vec{X: o.hermite[0].Predict(t), Y: o.hermite[1].Predict(t), Z: o.hermite[2].Predict(t)}
		vel = r3.Vec{X: o.hermite[0].PredictDerivative(t), Y: o.hermite[1].PredictDerivative(t), Z: o.hermite[2].PredictDerivative(t)}
	}
	return
}

// Acceleration by second-order central difference of the interpolated velocity.
// Inside one Hermite segment the velocity is quadratic in t, so the difference is exact there.
func (o *Orbit) Acceleration(t float64) (r3.Vec, error) {
	if err := o.checkTime(t); err != nil {
		return r3.Vec{}, err
	}
	// Keep the stencil inside the valid span
	h := accelerationStep
	lo, hi := o.StartTime()-o.margin, o.EndTime()+o.margin
	tc := math.Min(math.Max(t, lo+h), hi-h)

	var acc [3]float64
	settings := &fd.Settings{Formula: fd.Central, Step: h}
	for k := 0; k < 3; k++ {
		k := k
		acc[k] = fd.Derivative(func(x float64) float64 {
			_, v, _ := o.Interpolate(x)
			return component(v, k)
		}, tc, settings)
	}
	return r3.Vec{X: acc[0], Y: acc[1], Z: acc[2]}, nil
}

// Lagrange polynomial through the legendreOrder state vectors nearest to t
func (o *Orbit) legendre(t float64) (pos, vel r3.Vec) {
	i, _ := slices.BinarySearch(o.time, t)
	first := i - legendreOrder/2
	if first < 0 {
		first = 0
	}
	if first+legendreOrder > len(o.time) {
		first = len(o.time) - legendreOrder
	}
	for j := first; j < first+legendreOrder; j++ {
		if t == o.time[j] {
			return o.pos[j], o.vel[j]
		}
		w := 1.0
		for m := first; m < first+legendreOrder; m++ {
			if m != j {
				w *= (t - o.time[m]) / (o.time[j] - o.time[m])
			}
		}
		pos = r3.Add(pos, r3.Scale(w, o.pos[j]))
		vel = r3.Add(vel, r3.Scale(w, o.vel[j]))
	}
	return
}

func (o *Orbit) String() string {
	return fmt.Sprintf("orbit: %s - %s (%d state vectors, %s)",
		o.StartDateTime(), o.EndDateTime(), o.Size(), o.method)
}
