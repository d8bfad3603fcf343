// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ------------------------------------
// Mini functions
// ------------------------------------

func SQ(x float64) float64 {
	return x * x
}

func ToDeg(rad float64) float64 {
	return rad / PI * 180.0
}

func ToRad(deg float64) float64 {
	return deg / 180.0 * PI
}

// ------------------------------------
// Debug print
// ------------------------------------

// Printer writes diagnostics gated by a debug level.
// 0(OFF), 1(summary), 2(per block), 3(more detailed)
type Printer struct {
	W     io.Writer
	Level int
}

func NewPrinter(w io.Writer, level int) *Printer {
	if w == nil {
		w = os.Stderr
	}
	return &Printer{W: w, Level: level}
}

func (p *Printer) PrintA(format string, a ...any) {
	fmt.Fprintf(p.W, format, a...)
}

func (p *Printer) PrintAIf(cond bool, format string, a ...any) {
	if cond {
		p.PrintA(format, a...)
	}
}

// Print when the debug level is v or more
func (p *Printer) PrintD(v int, format string, a ...any) {
	p.PrintAIf(p.Level >= v, format, a...)
}

func (p *Printer) PrintE(err error) {
	fmt.Fprintf(p.W, "err=%s\n", err.Error())
}

// ------------------------------------
// For command argument parsing
// ------------------------------------

func (p *LookSide) Set(s string) error {
	switch strings.ToLower(s) {
	case "left", "l", "1":
		*p = Left
	case "right", "r", "-1":
		*p = Right
	default:
		return fmt.Errorf("invalid look side %q", s)
	}
	return nil
}

func (p *OrbitInterpMethod) Set(s string) error {
	switch strings.ToLower(s) {
	case "hermite":
		*p = Hermite
	case "legendre":
		*p = Legendre
	default:
		return fmt.Errorf("invalid orbit interpolation method %q", s)
	}
	return nil
}

// For yaml and flag.TextVar
func (p *LookSide) UnmarshalText(text []byte) error {
	return p.Set(string(text))
}

func (p *OrbitInterpMethod) UnmarshalText(text []byte) error {
	return p.Set(string(text))
}
