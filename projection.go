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

	"gonum.org/v1/gonum/spatial/r3"
)

// Projection converts the map coordinates of a topo raster to and from ECEF.
type Projection interface {
	EPSG() int
	ToXYZ(x, y, h float64) (r3.Vec, error)
	FromXYZ(xyz r3.Vec) (x, y, h float64, err error)
}

// Projection for an EPSG code: 4326, 4978 and WGS84 UTM zones (326xx north, 327xx south)
func NewProjection(epsg int, ell Ellipsoid) (Projection, error) {
	switch {
	case epsg == 4326:
		return LonLat{Ell: ell}, nil
	case epsg == 4978:
		return Geocentric{}, nil
	case epsg > 32600 && epsg <= 32660:
		return NewUTM(epsg-32600, true, ell), nil
	case epsg > 32700 && epsg <= 32760:
		return NewUTM(epsg-32700, false, ell), nil
	}
	return nil, fmt.Errorf("%w: unsupported EPSG code %d", ErrInvalidConfiguration, epsg)
}

//-------------------------------------------------------------------
// LonLat (EPSG:4326), x=longitude, y=latitude in degrees
//-------------------------------------------------------------------

type LonLat struct {
	Ell Ellipsoid
}

func (LonLat) EPSG() int { return 4326 }

func (p LonLat) ToXYZ(x, y, h float64) (r3.Vec, error) {
	if math.Abs(y) > 90 {
		return r3.Vec{}, fmt.Errorf("latitude out of range: %g", y)
	}
	return p.Ell.ToXYZ(PosLLH{Lat: ToRad(y), Lon: ToRad(x), Hei: h}), nil
}

func (p LonLat) FromXYZ(xyz r3.Vec) (float64, float64, float64, error) {
	llh := p.Ell.ToLLH(xyz)
	return ToDeg(llh.Lon), ToDeg(llh.Lat), llh.Hei, nil
}

//-------------------------------------------------------------------
// Geocentric (EPSG:4978), the topo bands are already ECEF
//-------------------------------------------------------------------

type Geocentric struct{}

func (Geocentric) EPSG() int { return 4978 }

func (Geocentric) ToXYZ(x, y, h float64) (r3.Vec, error) {
	return r3.Vec{X: x, Y: y, Z: h}, nil
}

func (Geocentric) FromXYZ(xyz r3.Vec) (float64, float64, float64, error) {
	return xyz.X, xyz.Y, xyz.Z, nil
}

//-------------------------------------------------------------------
// UTM, Krueger series to third order in n (sub-millimetre inside a zone)
//-------------------------------------------------------------------

type UTM struct {
	Zone  int
	North bool
	Ell   Ellipsoid

	lon0  float64
	a     float64 // Rectifying radius times k0
	alpha [3]float64
	beta  [3]float64
	delta [3]float64
	c     float64 // 2 sqrt(n) / (1 + n)
}

const (
	utmK0       = 0.9996
	utmEasting0 = 500000.0
	utmNorthing = 10000000.0 // False northing of the southern hemisphere
)

func NewUTM(zone int, north bool, ell Ellipsoid) *UTM {
	f := 1 - math.Sqrt(1-ell.E2)
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	u := &UTM{
		Zone:  zone,
		North: north,
		Ell:   ell,
		lon0:  ToRad(float64(zone)*6 - 183),
		a:     utmK0 * ell.A / (1 + n) * (1 + n2/4 + n2*n2/64),
		c:     2 * math.Sqrt(n) / (1 + n),
	}
	u.alpha = [3]float64{n/2 - 2*n2/3 + 5*n3/16, 13*n2/48 - 3*n3/5, 61 * n3 / 240}
	u.beta = [3]float64{n/2 - 2*n2/3 + 37*n3/96, n2/48 + n3/15, 17 * n3 / 480}
	u.delta = [3]float64{2*n - 2*n2/3 - 2*n3, 7*n2/3 - 8*n3/5, 56 * n3 / 15}
	return u
}

func (u *UTM) EPSG() int {
	if u.North {
		return 32600 + u.Zone
	}
	return 32700 + u.Zone
}

func (u *UTM) northing0() float64 {
	if u.North {
		return 0
	}
	return utmNorthing
}

// Latitude and longitude [rad] to easting and northing [m]
func (u *UTM) Forward(lat, lon float64) (e, n float64) {
	dl := lon - u.lon0
	sinp := math.Sin(lat)
	t := math.Sinh(math.Atanh(sinp) - u.c*math.Atanh(u.c*sinp))
	xi := math.Atan2(t, math.Cos(dl))
	eta := math.Atanh(math.Sin(dl) / math.Sqrt(1+t*t))
	e, n = eta, xi
	for j := 0; j < 3; j++ {
		k := 2 * float64(j+1)
		e += u.alpha[j] * math.Cos(k*xi) * math.Sinh(k*eta)
		n += u.alpha[j] * math.Sin(k*xi) * math.Cosh(k*eta)
	}
	return utmEasting0 + u.a*e, u.northing0() + u.a*n
}

// Easting and northing [m] to latitude and longitude [rad]
func (u *UTM) Inverse(e, n float64) (lat, lon float64) {
	xi := (n - u.northing0()) / u.a
	eta := (e - utmEasting0) / u.a
	xi1, eta1 := xi, eta
	for j := 0; j < 3; j++ {
		k := 2 * float64(j+1)
		xi1 -= u.beta[j] * math.Sin(k*xi) * math.Cosh(k*eta)
		eta1 -= u.beta[j] * math.Cos(k*xi) * math.Sinh(k*eta)
	}
	chi := math.Asin(math.Sin(xi1) / math.Cosh(eta1))
	lat = chi
	for j := 0; j < 3; j++ {
		lat += u.delta[j] * math.Sin(2*float64(j+1)*chi)
	}
	lon = u.lon0 + math.Atan2(math.Sinh(eta1), math.Cos(xi1))
	return
}

func (u *UTM) ToXYZ(x, y, h float64) (r3.Vec, error) {
	lat, lon := u.Inverse(x, y)
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return r3.Vec{}, fmt.Errorf("cannot invert UTM zone %d coordinates (%g, %g)", u.Zone, x, y)
	}
	return u.Ell.ToXYZ(PosLLH{Lat: lat, Lon: lon, Hei: h}), nil
}

func (u *UTM) FromXYZ(xyz r3.Vec) (float64, float64, float64, error) {
	llh := u.Ell.ToLLH(xyz)
	e, n := u.Forward(llh.Lat, llh.Lon)
	return e, n, llh.Hei, nil
}
