package volume

import (
	"fmt"

	"github.com/san-kum/volplay/internal/playback"
)

// Cursor holds the displayed index along every axis. Advance is the only
// path playback uses to move it.
type Cursor struct {
	dims Dims
	pos  map[playback.Axis]int
}

func NewCursor(d Dims) *Cursor {
	return &Cursor{dims: d, pos: make(map[playback.Axis]int, len(playback.Axes))}
}

func (c *Cursor) Dims() Dims { return c.dims }

func (c *Cursor) Index(axis playback.Axis) int { return c.pos[axis] }

// Peek returns the index the next Advance on axis would land on.
func (c *Cursor) Peek(axis playback.Axis) int {
	n := c.dims.Extent(axis)
	if n == 0 {
		return 0
	}
	return (c.pos[axis] + 1) % n
}

// Advance moves axis forward by one, wrapping at the end.
func (c *Cursor) Advance(axis playback.Axis) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: %v", playback.ErrUnknownAxis, axis)
	}
	c.pos[axis] = c.Peek(axis)
	return nil
}

// Set moves axis to i, clamped to the volume.
func (c *Cursor) Set(axis playback.Axis, i int) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: %v", playback.ErrUnknownAxis, axis)
	}
	c.pos[axis] = clamp(i, c.dims.Extent(axis))
	return nil
}

func (c *Cursor) String() string {
	return fmt.Sprintf("x=%d/%d y=%d/%d z=%d/%d t=%d/%d",
		c.pos[playback.X], c.dims.X, c.pos[playback.Y], c.dims.Y,
		c.pos[playback.Z], c.dims.Z, c.pos[playback.T], c.dims.T)
}
