// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const maxConfigSize = 1 * 1024 * 1024

// RunConfig is the YAML run configuration of the geo2rdr command.
// Optional processing values are pointers, nil selects the default.
type RunConfig struct {
	Input      InputConfig      `yaml:"input"`
	RadarGrid  RadarGridConfig  `yaml:"radar_grid"`
	Doppler    DopplerConfig    `yaml:"doppler"`
	Orbit      OrbitConfig      `yaml:"orbit"`
	Processing ProcessingConfig `yaml:"processing"`
	Output     OutputConfig     `yaml:"output"`
}

type InputConfig struct {
	TopoRaster     string    `yaml:"topo_raster"`               // x, y, height bands
	OrbitFile      string    `yaml:"orbit_file"`                // State vector text file
	ReferenceEpoch *DateTime `yaml:"reference_epoch,omitempty"` // Default: first state vector
}

type RadarGridConfig struct {
	SensingStart      DateTime `yaml:"sensing_start"`
	Wavelength        float64  `yaml:"wavelength"`
	PRF               float64  `yaml:"prf"`
	StartingRange     float64  `yaml:"starting_range"`
	RangePixelSpacing float64  `yaml:"range_pixel_spacing"`
	LookSide          LookSide `yaml:"look_side"`
	Length            int      `yaml:"length"`
	Width             int      `yaml:"width"`
}

// Doppler centroid model, one of constant, lut, lut2d or poly.
// A lut2d is averaged over azimuth time into a lut.
type DopplerConfig struct {
	Type   string    `yaml:"type"`
	Value  float64   `yaml:"value,omitempty"`  // constant [Hz]
	Coords []float64 `yaml:"coords,omitempty"` // lut slant ranges [m]
	Values []float64 `yaml:"values,omitempty"` // lut [Hz]
	Coeffs []float64 `yaml:"coeffs,omitempty"` // poly
	Mean   float64   `yaml:"mean,omitempty"`   // poly
	Norm   *float64  `yaml:"norm,omitempty"`   // poly, default 1

	RangeStart   float64     `yaml:"range_start,omitempty"`   // lut2d first column [m]
	RangeSpacing float64     `yaml:"range_spacing,omitempty"` // lut2d
	TimeStart    float64     `yaml:"time_start,omitempty"`    // lut2d first row [s]
	TimeSpacing  float64     `yaml:"time_spacing,omitempty"`  // lut2d
	Data         [][]float64 `yaml:"data,omitempty"`          // lut2d rows [Hz]
}

type OrbitConfig struct {
	InterpMethod *OrbitInterpMethod `yaml:"interp_method,omitempty"`
	Margin       *float64           `yaml:"margin,omitempty"` // Extrapolation allowed beyond the state vectors [s]
}

type ProcessingConfig struct {
	Geo2rdr Geo2rdrConfig `yaml:"geo2rdr"`
}

type Geo2rdrConfig struct {
	Threshold     *float64 `yaml:"threshold,omitempty"`
	MaxIter       *int     `yaml:"maxiter,omitempty"`
	LinesPerBlock *int     `yaml:"lines_per_block,omitempty"`
	Workers       *int     `yaml:"workers,omitempty"`
	AzimuthShift  float64  `yaml:"azimuth_shift,omitempty"` // [lines]
	RangeShift    float64  `yaml:"range_shift,omitempty"`   // [pixels]
}

type OutputConfig struct {
	Dir  string `yaml:"dir"`
	Plot bool   `yaml:"plot,omitempty"`
}

func (c *Geo2rdrConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

func (c *Geo2rdrConfig) GetMaxIter() int {
	if c.MaxIter == nil {
		return DefaultMaxIter
	}
	return *c.MaxIter
}

func (c *Geo2rdrConfig) GetLinesPerBlock() int {
	if c.LinesPerBlock == nil {
		return DefaultLinesPerBlock
	}
	return *c.LinesPerBlock
}

func (c *Geo2rdrConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

func (c *OrbitConfig) GetInterpMethod() OrbitInterpMethod {
	if c.InterpMethod == nil {
		return Hermite
	}
	return *c.InterpMethod
}

func (c *OrbitConfig) GetMargin() float64 {
	if c.Margin == nil {
		return DefaultOrbitMargin
	}
	return *c.Margin
}

// LoadRunConfig reads a YAML run configuration.
// Relative input and output paths are resolved against the directory of the file.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := strings.ToLower(filepath.Ext(cleanPath)); ext != ".yml" && ext != ".yaml" {
		return nil, fmt.Errorf("config file must have .yml or .yaml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseRunConfig(data)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(cleanPath))
	return cfg, nil
}

// ParseRunConfig decodes and validates a YAML run configuration. Unknown keys are rejected.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	cfg := &RunConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config YAML: %w", ErrInvalidConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *RunConfig) resolvePaths(dir string) {
	for _, p := range []*string{&c.Input.TopoRaster, &c.Input.OrbitFile, &c.Output.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate checks the values that do not need the input files.
func (c *RunConfig) Validate() error {
	var errs []error
	if c.Input.TopoRaster == "" {
		errs = append(errs, errors.New("input.topo_raster is required"))
	}
	if c.Input.OrbitFile == "" {
		errs = append(errs, errors.New("input.orbit_file is required"))
	}
	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output.dir is required"))
	}
	if err := c.Doppler.validate(); err != nil {
		errs = append(errs, err)
	}

	g := &c.Processing.Geo2rdr
	if err := (SolverParams{Threshold: g.GetThreshold(), MaxIter: g.GetMaxIter()}).Validate(); err != nil {
		errs = append(errs, err)
	}
	if g.GetLinesPerBlock() <= 0 {
		errs = append(errs, fmt.Errorf("lines_per_block must be positive, got %d", g.GetLinesPerBlock()))
	}
	if g.GetWorkers() < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", g.GetWorkers()))
	}
	if c.Orbit.GetMargin() < 0 {
		errs = append(errs, fmt.Errorf("orbit margin must not be negative, got %g", c.Orbit.GetMargin()))
	}

	// The epoch is not known yet, any will do for the shape checks
	grid := c.RadarGrid.toGrid(c.RadarGrid.SensingStart)
	if err := grid.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

func (c *DopplerConfig) validate() error {
	switch strings.ToLower(c.Type) {
	case "", "constant":
	case "lut":
		if len(c.Coords) < 2 || len(c.Coords) != len(c.Values) {
			return fmt.Errorf("doppler lut needs at least 2 coords with matching values, got %d and %d", len(c.Coords), len(c.Values))
		}
	case "lut2d":
		if len(c.Data) == 0 || len(c.Data[0]) < 2 {
			return errors.New("doppler lut2d needs at least 1 row of 2 values")
		}
		for i, row := range c.Data {
			if len(row) != len(c.Data[0]) {
				return fmt.Errorf("doppler lut2d row %d has %d values, want %d", i, len(row), len(c.Data[0]))
			}
		}
		if c.RangeSpacing <= 0 || c.TimeSpacing <= 0 {
			return errors.New("doppler lut2d spacing must be positive")
		}
	case "poly":
		if len(c.Coeffs) == 0 {
			return errors.New("doppler poly needs coefficients")
		}
		if c.Norm != nil && *c.Norm == 0 {
			return errors.New("doppler poly norm must not be zero")
		}
	default:
		return fmt.Errorf("unknown doppler type %q", c.Type)
	}
	return nil
}

// Doppler model of the configuration
func (c *DopplerConfig) Build() (DopplerModel, error) {
	switch strings.ToLower(c.Type) {
	case "", "constant":
		return ConstantDoppler(c.Value), nil
	case "lut":
		lut, err := NewLUT1d(c.Coords, c.Values)
		if err != nil {
			return nil, err
		}
		return lut, nil
	case "lut2d":
		data := mat.NewDense(len(c.Data), len(c.Data[0]), nil)
		for i, row := range c.Data {
			data.SetRow(i, row)
		}
		lut2d, err := NewLUT2d(c.RangeStart, c.RangeSpacing, c.TimeStart, c.TimeSpacing, data)
		if err != nil {
			return nil, err
		}
		lut, err := AvgLUT2dToLUT1d(lut2d)
		if err != nil {
			return nil, err
		}
		return lut, nil
	case "poly":
		norm := 1.0
		if c.Norm != nil {
			norm = *c.Norm
		}
		poly, err := NewPoly1d(c.Coeffs, c.Mean, norm)
		if err != nil {
			return nil, err
		}
		return poly, nil
	}
	return nil, fmt.Errorf("%w: unknown doppler type %q", ErrInvalidConfiguration, c.Type)
}

func (c *RadarGridConfig) toGrid(epoch DateTime) RadarGridParameters {
	return RadarGridParameters{
		SensingStart:      c.SensingStart.SecondsSinceEpoch(epoch),
		RefEpoch:          epoch,
		Wavelength:        c.Wavelength,
		PRF:               c.PRF,
		StartingRange:     c.StartingRange,
		RangePixelSpacing: c.RangePixelSpacing,
		LookSide:          c.LookSide,
		Length:            c.Length,
		Width:             c.Width,
	}
}

// Radar grid with azimuth times relative to epoch, the reference epoch of the orbit
func (c *RunConfig) BuildRadarGrid(epoch DateTime) (RadarGridParameters, error) {
	grid := c.RadarGrid.toGrid(epoch)
	if err := grid.Validate(); err != nil {
		return grid, err
	}
	return grid, nil
}

// Read the orbit file
func (c *RunConfig) BuildOrbit() (*Orbit, error) {
	f, err := os.Open(c.Input.OrbitFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open orbit file: %w", err)
	}
	defer f.Close()

	var epoch DateTime
	if c.Input.ReferenceEpoch != nil {
		epoch = *c.Input.ReferenceEpoch
	}
	orbit, err := ReadOrbit(f, epoch, WithInterpMethod(c.Orbit.GetInterpMethod()), WithMargin(c.Orbit.GetMargin()))
	if err != nil {
		return nil, fmt.Errorf("orbit file %s: %w", c.Input.OrbitFile, err)
	}
	return orbit, nil
}

// Geo2rdr options of the processing section, followed by extra
func (c *RunConfig) Options(extra ...Option) []Option {
	g := &c.Processing.Geo2rdr
	opts := []Option{
		WithThreshold(g.GetThreshold()),
		WithMaxIter(g.GetMaxIter()),
		WithLinesPerBlock(g.GetLinesPerBlock()),
		WithWorkers(g.GetWorkers()),
	}
	return append(opts, extra...)
}

// Build the orbit, Doppler model and radar grid and the Geo2rdr using them
func (c *RunConfig) Build(extra ...Option) (*Geo2rdr, error) {
	orbit, err := c.BuildOrbit()
	if err != nil {
		return nil, err
	}
	doppler, err := c.Doppler.Build()
	if err != nil {
		return nil, err
	}
	grid, err := c.BuildRadarGrid(orbit.ReferenceEpoch())
	if err != nil {
		return nil, err
	}
	return New(grid, orbit, doppler, c.Options(extra...)...)
}
