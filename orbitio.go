// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"
)

// Read state vectors, one per line:
//
//	2023-06-01T12:00:00.000000 x y z vx vy vz
//
// Blank lines and lines starting with '#' are skipped. The result is sorted by time.
func ReadStateVectors(r io.Reader) ([]StateVector, error) {
	svs := []StateVector{}
	s := bufio.NewScanner(r)
	ln := 0
	for s.Scan() {
		ln += 1
		line := strings.TrimSpace(s.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 7 {
			return nil, fmt.Errorf("line %d: expected 7 fields, got %d", ln, len(f))
		}
		t, err := ParseDateTime(f[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln, err)
		}
		var v [6]float64
		for i := range v {
			v[i], err = strconv.ParseFloat(f[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ln, err)
			}
		}
		svs = append(svs, StateVector{
			Time:     t,
			Position: r3.Vec{X: v[0], Y: v[1], Z: v[2]},
			Velocity: r3.Vec{X: v[3], Y: v[4], Z: v[5]},
		})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	slices.SortStableFunc(svs, func(a, b StateVector) int {
		switch {
		case a.Time.Before(b.Time):
			return -1
		case b.Time.Before(a.Time):
			return 1
		}
		return 0
	})
	return svs, nil
}

// Read state vectors and build an orbit.
// A zero refEpoch selects the whole second of the first state vector.
func ReadOrbit(r io.Reader, refEpoch DateTime, opts ...OrbitOption) (*Orbit, error) {
	svs, err := ReadStateVectors(r)
	if err != nil {
		return nil, err
	}
	if len(svs) == 0 {
		return nil, fmt.Errorf("%w: no state vectors", ErrInvalidConfiguration)
	}
	if refEpoch == (DateTime{}) {
		refEpoch = DateTime{Sec: svs[0].Time.Sec}
	}
	return NewOrbit(svs, refEpoch, opts...)
}

// Write state vectors in the format read by ReadStateVectors
func WriteStateVectors(w io.Writer, svs []StateVector) error {
	for i := range svs {
		if _, err := fmt.Fprintln(w, svs[i].String()); err != nil {
			return err
		}
	}
	return nil
}
