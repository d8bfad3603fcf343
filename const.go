// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

const (
	PI = 3.1415926535897932  // Pi
	Re = 6378137.0           // WGS84 semi-major axis [m]
	Fe = 1.0 / 298.257223563 // WGS84 flattening
)

// Defaults of the range-Doppler inversion
const (
	DefaultThreshold     = 1.0e-9 // Newton step below which a point is converged [s]
	DefaultMaxIter       = 25     // Iteration budget per point
	DefaultLinesPerBlock = 1000   // Rows read and written per block
	DefaultOrbitMargin   = 0.0    // Extrapolation allowed beyond the sampled orbit span [s]
)

// Value written where no offset can be computed (ground point not projectable)
const NullValue = -1.0e6

// Output file names created by RunToDir
const (
	AzimuthOffsetFile = "azimuth.off"
	RangeOffsetFile   = "range.off"
)

// Band indices of the topo raster (1-based)
const (
	BandX      = 1
	BandY      = 2
	BandHeight = 3
)
