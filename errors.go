// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import "errors"

var (
	// Orbit interpolation requested outside its valid span
	ErrOutOfBoundsTime = errors.New("out of bounds time")

	// Iteration budget exhausted for a ground point.
	// Only produced by InversionResult.Err, the pipeline records it instead.
	ErrNonConvergence = errors.New("geo2rdr did not converge")

	// Block read or write failure
	ErrIO = errors.New("raster i/o failure")

	// Bad block height, mismatched rasters or invalid radar grid
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
