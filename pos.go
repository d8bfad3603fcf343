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
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

//-------------------------------------------------------------------
// Ellipsoid
//-------------------------------------------------------------------

type Ellipsoid struct {
	A  float64 // Semi-major axis [m]
	E2 float64 // Eccentricity squared
}

var WGS84 = Ellipsoid{A: Re, E2: Fe * (2 - Fe)}

func NewEllipsoid(a, e2 float64) (Ellipsoid, error) {
	if a <= 0 || e2 < 0 || e2 >= 1 {
		return Ellipsoid{}, fmt.Errorf("%w: ellipsoid a=%g e2=%g", ErrInvalidConfiguration, a, e2)
	}
	return Ellipsoid{A: a, E2: e2}, nil
}

// Semi-minor axis
func (e Ellipsoid) B() float64 {
	return e.A * math.Sqrt(1-e.E2)
}

// Radius of curvature in the prime vertical
func (e Ellipsoid) RN(lat float64) float64 {
	return e.A / math.Sqrt(1-e.E2*SQ(math.Sin(lat)))
}

func (e Ellipsoid) ToXYZ(llh PosLLH) r3.Vec {
	n := e.RN(llh.Lat)
	return r3.Vec{
		X: (n + llh.Hei) * math.Cos(llh.Lat) * math.Cos(llh.Lon),
		Y: (n + llh.Hei) * math.Cos(llh.Lat) * math.Sin(llh.Lon),
		Z: (n*(1-e.E2) + llh.Hei) * math.Sin(llh.Lat),
	}
}

// Bowring's method
func (e Ellipsoid) ToLLH(pos r3.Vec) PosLLH {
	// In case of origin
	if pos.X == 0 && pos.Y == 0 && pos.Z == 0 {
		return PosLLH{Lat: 0, Lon: 0, Hei: -e.A}
	}

	a := e.A
	b := e.B()
	h := a*a - b*b
	p := math.Hypot(pos.X, pos.Y)
	t := math.Atan2(pos.Z*a, p*b)
	sint := math.Sin(t)
	cost := math.Cos(t)

	lat := math.Atan2(pos.Z+h/b*sint*sint*sint, p-h/a*cost*cost*cost)
	lon := math.Atan2(pos.Y, pos.X)
	n := e.RN(lat)
	var hei float64
	if math.Abs(math.Cos(lat)) > 1e-10 {
		hei = p/math.Cos(lat) - n
	} else { // At the poles
		hei = math.Abs(pos.Z) - b
	}
	return PosLLH{Lat: lat, Lon: lon, Hei: hei}
}

//-------------------------------------------------------------------
// PosLLH
//-------------------------------------------------------------------

// Geodetic position, latitude and longitude in radians
type PosLLH struct {
	Lat float64
	Lon float64
	Hei float64
}

// Read "lat lon hei" in degrees
func (llh *PosLLH) Set(s string) error {
	f := strings.Fields(s)
	if len(f) != 3 {
		return fmt.Errorf("expected \"lat lon hei\", got %q", s)
	}
	var v [3]float64
	for i := range v {
		var err error
		v[i], err = strconv.ParseFloat(f[i], 64)
		if err != nil {
			return err
		}
	}
	llh.Lat = ToRad(v[0])
	llh.Lon = ToRad(v[1])
	llh.Hei = v[2]
	return nil
}

// Degrees for display
func (llh *PosLLH) String() string {
	return fmt.Sprintf("%.8f %.8f %.4f", ToDeg(llh.Lat), ToDeg(llh.Lon), llh.Hei)
}
