package volume

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/volplay/internal/playback"
)

var (
	// ErrInvalidDims indicates a volume with a non-positive extent.
	ErrInvalidDims = errors.New("volume: invalid dimensions")

	// ErrFrameOutOfRange indicates a time index outside [0, T).
	ErrFrameOutOfRange = errors.New("volume: frame index out of range")
)

// Dims is the extent of a multi-channel time-lapse volume.
type Dims struct {
	X        int `yaml:"x" json:"x"`
	Y        int `yaml:"y" json:"y"`
	Z        int `yaml:"z" json:"z"`
	T        int `yaml:"t" json:"t"`
	Channels int `yaml:"channels" json:"channels"`
}

func (d Dims) Validate() error {
	if d.X <= 0 || d.Y <= 0 || d.Z <= 0 || d.T <= 0 || d.Channels <= 0 {
		return fmt.Errorf("%w: %dx%dx%d t=%d c=%d", ErrInvalidDims, d.X, d.Y, d.Z, d.T, d.Channels)
	}
	return nil
}

// Extent returns the number of indices along axis, or 0 for None.
func (d Dims) Extent(axis playback.Axis) int {
	switch axis {
	case playback.X:
		return d.X
	case playback.Y:
		return d.Y
	case playback.Z:
		return d.Z
	case playback.T:
		return d.T
	}
	return 0
}

// FrameBytes is the size of one timepoint with all channels at 8 bits.
func (d Dims) FrameBytes() int {
	return d.X * d.Y * d.Z * d.Channels
}

// Offset returns the byte offset of a voxel within a frame. Channels are
// the slowest-varying dimension.
func (d Dims) Offset(c, x, y, z int) int {
	return ((c*d.Z+z)*d.Y+y)*d.X + x
}

// Source provides whole timepoints. Implementations must be safe for
// concurrent use.
type Source interface {
	Dims() Dims
	Frame(ctx context.Context, t int) ([]byte, error)
}

// Synthetic is a procedural source: each channel holds a Gaussian blob that
// orbits the volume centre as time advances.
type Synthetic struct {
	dims Dims
	seed int64
}

func NewSynthetic(d Dims, seed int64) (*Synthetic, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Synthetic{dims: d, seed: seed}, nil
}

func (s *Synthetic) Dims() Dims { return s.dims }

func (s *Synthetic) Frame(ctx context.Context, t int) ([]byte, error) {
	d := s.dims
	if t < 0 || t >= d.T {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrFrameOutOfRange, t, d.T)
	}
	buf := make([]byte, d.FrameBytes())
	sigma := 0.18 * float64(min(d.X, d.Y, d.Z))
	if sigma < 1 {
		sigma = 1
	}
	inv := 1 / (2 * sigma * sigma)

	for c := 0; c < d.Channels; c++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		phase := 2*math.Pi*float64(t)/float64(d.T) + float64(c)*2*math.Pi/float64(d.Channels) + float64(s.seed%360)*math.Pi/180
		cx := float64(d.X)/2 + 0.25*float64(d.X)*math.Cos(phase)
		cy := float64(d.Y)/2 + 0.25*float64(d.Y)*math.Sin(phase)
		cz := float64(d.Z) / 2
		for z := 0; z < d.Z; z++ {
			dz := float64(z) - cz
			for y := 0; y < d.Y; y++ {
				dy := float64(y) - cy
				for x := 0; x < d.X; x++ {
					dx := float64(x) - cx
					v := 255 * math.Exp(-(dx*dx+dy*dy+dz*dz)*inv)
					buf[d.Offset(c, x, y, z)] = byte(v)
				}
			}
		}
	}
	return buf, nil
}

// Slice extracts the 2D plane of channel c perpendicular to axis at index.
// The result is row-major with the returned width. Planes are:
// X -> (Z rows, Y cols), Y -> (Z rows, X cols), Z -> (Y rows, X cols).
func Slice(frame []byte, d Dims, axis playback.Axis, index, c int) (plane []byte, w, h int, err error) {
	if len(frame) != d.FrameBytes() {
		return nil, 0, 0, fmt.Errorf("volume: frame has %d bytes, want %d", len(frame), d.FrameBytes())
	}
	if c < 0 || c >= d.Channels {
		return nil, 0, 0, fmt.Errorf("volume: channel %d out of range", c)
	}
	if !axis.Spatial() {
		return nil, 0, 0, fmt.Errorf("%w: %v is not spatial", playback.ErrUnknownAxis, axis)
	}
	index = clamp(index, d.Extent(axis))

	switch axis {
	case playback.X:
		w, h = d.Y, d.Z
	case playback.Y:
		w, h = d.X, d.Z
	default:
		w, h = d.X, d.Y
	}
	plane = make([]byte, w*h)
	for r := 0; r < h; r++ {
		for col := 0; col < w; col++ {
			var off int
			switch axis {
			case playback.X:
				off = d.Offset(c, index, col, r)
			case playback.Y:
				off = d.Offset(c, col, index, r)
			default:
				off = d.Offset(c, col, r, index)
			}
			plane[r*w+col] = frame[off]
		}
	}
	return plane, w, h, nil
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
