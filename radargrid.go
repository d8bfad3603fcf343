// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"errors"
	"fmt"
	"strings"
)

type LookSide int

const (
	Right LookSide = -1
	Left  LookSide = 1
)

func (p LookSide) String() string {
	switch p {
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return "UNKNOWN!"
	}
}

func (p LookSide) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(p.String())), nil
}

// RadarGridParameters describes the sampling of a radar image.
// Derived quantities are computed on demand and never stored.
type RadarGridParameters struct {
	SensingStart      float64  // Azimuth time of the first line, seconds since RefEpoch
	RefEpoch          DateTime // Reference epoch of azimuth times
	Wavelength        float64  // [m]
	PRF               float64  // Pulse repetition frequency [Hz]
	StartingRange     float64  // Slant range of the first sample [m]
	RangePixelSpacing float64  // [m]
	LookSide          LookSide
	Length            int // Lines
	Width             int // Samples
}

func (g *RadarGridParameters) Validate() error {
	var errs []error
	if g.Length <= 0 {
		errs = append(errs, fmt.Errorf("length %d", g.Length))
	}
	if g.Width <= 0 {
		errs = append(errs, fmt.Errorf("width %d", g.Width))
	}
	if !(g.PRF > 0) {
		errs = append(errs, fmt.Errorf("prf %g", g.PRF))
	}
	if !(g.RangePixelSpacing > 0) {
		errs = append(errs, fmt.Errorf("range pixel spacing %g", g.RangePixelSpacing))
	}
	if !(g.Wavelength > 0) {
		errs = append(errs, fmt.Errorf("wavelength %g", g.Wavelength))
	}
	if !(g.StartingRange >= 0) {
		errs = append(errs, fmt.Errorf("starting range %g", g.StartingRange))
	}
	if g.LookSide != Left && g.LookSide != Right {
		errs = append(errs, fmt.Errorf("look side %d", g.LookSide))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: radar grid: %w", ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// Azimuth line spacing [s]
func (g *RadarGridParameters) AzimuthTimeInterval() float64 {
	return 1.0 / g.PRF
}

// Azimuth time of the last line
func (g *RadarGridParameters) SensingStop() float64 {
	return g.SensingStart + float64(g.Length-1)/g.PRF
}

func (g *RadarGridParameters) SensingMid() float64 {
	return 0.5 * (g.SensingStart + g.SensingStop())
}

// Azimuth time of a line
func (g *RadarGridParameters) SensingTime(line float64) float64 {
	return g.SensingStart + line/g.PRF
}

func (g *RadarGridParameters) SensingDateTime(line float64) DateTime {
	return g.RefEpoch.Add(TimeDelta(g.SensingTime(line)))
}

// Slant range of a sample
func (g *RadarGridParameters) SlantRange(sample float64) float64 {
	return g.StartingRange + sample*g.RangePixelSpacing
}

func (g *RadarGridParameters) EndingRange() float64 {
	return g.SlantRange(float64(g.Width - 1))
}

func (g *RadarGridParameters) MidRange() float64 {
	return 0.5 * (g.StartingRange + g.EndingRange())
}

// Sub-grid of lines [lineStart, lineStart+length) and samples [sampleStart, sampleStart+width)
func (g *RadarGridParameters) Offset(lineStart, length, sampleStart, width int) (RadarGridParameters, error) {
	if lineStart < 0 || sampleStart < 0 || length <= 0 || width <= 0 ||
		lineStart+length > g.Length || sampleStart+width > g.Width {
		return RadarGridParameters{}, fmt.Errorf("%w: sub-grid [%d+%d, %d+%d] outside %dx%d",
			ErrInvalidConfiguration, lineStart, length, sampleStart, width, g.Length, g.Width)
	}
	sub := *g
	sub.SensingStart = g.SensingTime(float64(lineStart))
	sub.StartingRange = g.SlantRange(float64(sampleStart))
	sub.Length = length
	sub.Width = width
	return sub, nil
}

func (g *RadarGridParameters) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Starting acquisition time: %s\n", g.SensingDateTime(0)))
	sb.WriteString(fmt.Sprintf("Stop acquisition time: %s\n", g.SensingDateTime(float64(g.Length-1))))
	sb.WriteString(fmt.Sprintf("Azimuth line spacing in seconds: %g\n", g.AzimuthTimeInterval()))
	sb.WriteString(fmt.Sprintf("Slant range spacing in meters: %g\n", g.RangePixelSpacing))
	sb.WriteString(fmt.Sprintf("Near range (m): %.3f\n", g.StartingRange))
	sb.WriteString(fmt.Sprintf("Far range (m): %.3f\n", g.EndingRange()))
	sb.WriteString(fmt.Sprintf("Radar image length: %d\n", g.Length))
	sb.WriteString(fmt.Sprintf("Radar image width: %d\n", g.Width))
	sb.WriteString(fmt.Sprintf("Wavelength (m): %g, look side: %s\n", g.Wavelength, g.LookSide))
	return sb.String()
}
