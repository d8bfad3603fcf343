// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package geo2rdr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Raster is a multi-band float64 image read and written by rectangular blocks.
// Bands are numbered from 1.
type Raster interface {
	Width() int
	Length() int
	NumBands() int
	EPSG() int
	// Read nx*ny values starting at column xOff and row yOff into buf (row-major)
	GetBlock(buf []float64, xOff, yOff, nx, ny, band int) error
	// Write nx*ny values of buf starting at column xOff and row yOff
	SetBlock(buf []float64, xOff, yOff, nx, ny, band int) error
}

func checkBlock(r Raster, buf []float64, xOff, yOff, nx, ny, band int) error {
	if band < 1 || band > r.NumBands() {
		return fmt.Errorf("band %d not in [1, %d]", band, r.NumBands())
	}
	if xOff < 0 || yOff < 0 || nx <= 0 || ny <= 0 || xOff+nx > r.Width() || yOff+ny > r.Length() {
		return fmt.Errorf("block (%d, %d, %d x %d) outside %d x %d raster", xOff, yOff, nx, ny, r.Width(), r.Length())
	}
	if len(buf) < nx*ny {
		return fmt.Errorf("buffer of %d values for %d x %d block", len(buf), nx, ny)
	}
	return nil
}

// Same width and length
func MatchRaster(a, b Raster) bool {
	return a.Width() == b.Width() && a.Length() == b.Length()
}

//-------------------------------------------------------------------
// MemRaster
//-------------------------------------------------------------------

type MemRaster struct {
	width  int
	length int
	epsg   int
	bands  [][]float64
}

func NewMemRaster(width, length, numBands, epsg int) (*MemRaster, error) {
	if width <= 0 || length <= 0 || numBands <= 0 {
		return nil, fmt.Errorf("%w: raster %d x %d with %d bands", ErrInvalidConfiguration, width, length, numBands)
	}
	r := &MemRaster{width: width, length: length, epsg: epsg, bands: make([][]float64, numBands)}
	for i := range r.bands {
		r.bands[i] = make([]float64, width*length)
	}
	return r, nil
}

func (r *MemRaster) Width() int    { return r.width }
func (r *MemRaster) Length() int   { return r.length }
func (r *MemRaster) NumBands() int { return len(r.bands) }
func (r *MemRaster) EPSG() int     { return r.epsg }

// Whole band, shared with the raster
func (r *MemRaster) Band(band int) []float64 {
	return r.bands[band-1]
}

func (r *MemRaster) At(band, line, sample int) float64 {
	return r.bands[band-1][line*r.width+sample]
}

func (r *MemRaster) Set(band, line, sample int, v float64) {
	r.bands[band-1][line*r.width+sample] = v
}

func (r *MemRaster) GetBlock(buf []float64, xOff, yOff, nx, ny, band int) error {
	if err := checkBlock(r, buf, xOff, yOff, nx, ny, band); err != nil {
		return err
	}
	b := r.bands[band-1]
	for j := 0; j < ny; j++ {
		k := (yOff+j)*r.width + xOff
		copy(buf[j*nx:(j+1)*nx], b[k:k+nx])
	}
	return nil
}

func (r *MemRaster) SetBlock(buf []float64, xOff, yOff, nx, ny, band int) error {
	if err := checkBlock(r, buf, xOff, yOff, nx, ny, band); err != nil {
		return err
	}
	b := r.bands[band-1]
	for j := 0; j < ny; j++ {
		k := (yOff+j)*r.width + xOff
		copy(b[k:k+nx], buf[j*nx:(j+1)*nx])
	}
	return nil
}

//-------------------------------------------------------------------
// FileRaster
//-------------------------------------------------------------------

// Sidecar header of a FileRaster, stored as <path>.yml
type RasterHeader struct {
	Width     int    `yaml:"width"`
	Length    int    `yaml:"length"`
	Bands     int    `yaml:"bands"`
	EPSG      int    `yaml:"epsg"`
	DataType  string `yaml:"data_type"`
	ByteOrder string `yaml:"byte_order"`
}

const (
	rasterDataType  = "float64"
	rasterByteOrder = "little_endian"
)

// FileRaster stores little-endian float64 values, band sequential, without a file header.
type FileRaster struct {
	path   string
	header RasterHeader
	f      *os.File
}

func headerPath(path string) string {
	return path + ".yml"
}

// Create a raster file of zeros and its header
func CreateFileRaster(path string, width, length, numBands, epsg int) (*FileRaster, error) {
	if width <= 0 || length <= 0 || numBands <= 0 {
		return nil, fmt.Errorf("%w: raster %d x %d with %d bands", ErrInvalidConfiguration, width, length, numBands)
	}
	h := RasterHeader{
		Width: width, Length: length, Bands: numBands, EPSG: epsg,
		DataType: rasterDataType, ByteOrder: rasterByteOrder,
	}
	hb, err := yaml.Marshal(&h)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(headerPath(path), hb, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write raster header: %w", err)
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create raster: %w", err)
	}
	if err := f.Truncate(int64(width) * int64(length) * int64(numBands) * 8); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to size raster: %w", err)
	}
	return &FileRaster{path: path, header: h, f: f}, nil
}

// Open an existing raster, writable if update is true
func OpenFileRaster(path string, update bool) (*FileRaster, error) {
	hb, err := os.ReadFile(headerPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read raster header: %w", err)
	}
	var h RasterHeader
	dec := yaml.NewDecoder(bytes.NewReader(hb))
	dec.KnownFields(true)
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("invalid raster header %s: %w", headerPath(path), err)
	}
	if h.DataType != rasterDataType || h.ByteOrder != rasterByteOrder {
		return nil, fmt.Errorf("unsupported raster %s/%s", h.DataType, h.ByteOrder)
	}
	if h.Width <= 0 || h.Length <= 0 || h.Bands <= 0 {
		return nil, fmt.Errorf("invalid raster size %d x %d x %d", h.Width, h.Length, h.Bands)
	}
	flag := os.O_RDONLY
	if update {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(filepath.Clean(path), flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open raster: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if want := int64(h.Width) * int64(h.Length) * int64(h.Bands) * 8; st.Size() != want {
		f.Close()
		return nil, fmt.Errorf("raster %s has %d bytes, header says %d", path, st.Size(), want)
	}
	return &FileRaster{path: path, header: h, f: f}, nil
}

func (r *FileRaster) Path() string  { return r.path }
func (r *FileRaster) Width() int    { return r.header.Width }
func (r *FileRaster) Length() int   { return r.header.Length }
func (r *FileRaster) NumBands() int { return r.header.Bands }
func (r *FileRaster) EPSG() int     { return r.header.EPSG }

func (r *FileRaster) Close() error {
	return r.f.Close()
}

func (r *FileRaster) offset(x, y, band int) int64 {
	return ((int64(band-1)*int64(r.header.Length)+int64(y))*int64(r.header.Width) + int64(x)) * 8
}

func (r *FileRaster) GetBlock(buf []float64, xOff, yOff, nx, ny, band int) error {
	if err := checkBlock(r, buf, xOff, yOff, nx, ny, band); err != nil {
		return err
	}
	row := make([]byte, nx*8)
	for j := 0; j < ny; j++ {
		if _, err := r.f.ReadAt(row, r.offset(xOff, yOff+j, band)); err != nil {
			return fmt.Errorf("read %s line %d: %w", r.path, yOff+j, err)
		}
		for i := 0; i < nx; i++ {
			buf[j*nx+i] = math.Float64frombits(binary.LittleEndian.Uint64(row[i*8:]))
		}
	}
	return nil
}

func (r *FileRaster) SetBlock(buf []float64, xOff, yOff, nx, ny, band int) error {
	if err := checkBlock(r, buf, xOff, yOff, nx, ny, band); err != nil {
		return err
	}
	row := make([]byte, nx*8)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			binary.LittleEndian.PutUint64(row[i*8:], math.Float64bits(buf[j*nx+i]))
		}
		if _, err := r.f.WriteAt(row, r.offset(xOff, yOff+j, band)); err != nil {
			return fmt.Errorf("write %s line %d: %w", r.path, yOff+j, err)
		}
	}
	return nil
}
