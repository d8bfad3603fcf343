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
	"time"
)

// Time difference in seconds
type TimeDelta float64

func (d TimeDelta) Seconds() float64 {
	return float64(d)
}

func (d TimeDelta) Duration() time.Duration {
	return time.Duration(math.Round(float64(d) * 1e9))
}

// DateTime is a UTC time point with sub-nanosecond resolution.
// Sec is the whole seconds since 1970/1/1 00:00:00 and Frac the fraction in [0, 1).
type DateTime struct {
	Sec  int64
	Frac float64
}

func NewDateTime(t time.Time) DateTime {
	return DateTime{
		Sec:  t.Unix(),
		Frac: float64(t.Nanosecond()) / 1e9,
	}
}

func (p DateTime) ToTime() time.Time {
	return time.Unix(p.Sec, int64(p.Frac*1e9)).UTC()
}

// Keep Frac in [0, 1)
func normalize(sec int64, frac float64) DateTime {
	i := math.Floor(frac)
	sec += int64(i)
	frac -= i
	if frac >= 1 { // rounding of frac-i
		sec += 1
		frac = 0
	}
	return DateTime{Sec: sec, Frac: frac}
}

func (p DateTime) Add(d TimeDelta) DateTime {
	i := math.Trunc(float64(d))
	return normalize(p.Sec+int64(i), p.Frac+(float64(d)-i))
}

// Time elapsed from b to p
func (p DateTime) Sub(b DateTime) TimeDelta {
	return TimeDelta(float64(p.Sec-b.Sec) + (p.Frac - b.Frac))
}

// Seconds elapsed since the reference epoch
func (p DateTime) SecondsSinceEpoch(epoch DateTime) float64 {
	return p.Sub(epoch).Seconds()
}

func (p DateTime) Before(b DateTime) bool {
	if p.Sec == b.Sec {
		return p.Frac < b.Frac
	}
	return p.Sec < b.Sec
}

func (p DateTime) After(b DateTime) bool {
	return b.Before(p)
}

func (p DateTime) Equal(b DateTime) bool {
	return p.Sec == b.Sec && p.Frac == b.Frac
}

// Parse "2006-01-02T15:04:05.123456789012" (fraction of any length, 'T' or ' ' separator)
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "Z"))
	s = strings.Replace(s, " ", "T", 1)
	whole, frac, hasFrac := strings.Cut(s, ".")
	t, err := time.Parse("2006-01-02T15:04:05", whole)
	if err != nil {
		return DateTime{}, fmt.Errorf("invalid date time %q: %w", s, err)
	}
	dt := DateTime{Sec: t.Unix()}
	if hasFrac {
		if len(frac) == 0 || strings.Trim(frac, "0123456789") != "" {
			return DateTime{}, fmt.Errorf("invalid fractional seconds in %q", s)
		}
		f, err := strconv.ParseFloat("0."+frac, 64)
		if err != nil {
			return DateTime{}, fmt.Errorf("invalid fractional seconds in %q: %w", s, err)
		}
		dt.Frac = f
	}
	return dt, nil
}

// ISO-8601 with 9 fractional digits
func (p DateTime) String() string {
	ns := int64(math.Round(p.Frac * 1e9))
	sec := p.Sec
	if ns >= 1e9 {
		sec += 1
		ns -= 1e9
	}
	return time.Unix(sec, 0).UTC().Format("2006-01-02T15:04:05") + fmt.Sprintf(".%09d", ns)
}

func (p DateTime) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *DateTime) UnmarshalText(text []byte) error {
	dt, err := ParseDateTime(string(text))
	if err != nil {
		return err
	}
	*p = dt
	return nil
}
