package playback

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAxis is returned when an axis name or value is not recognised.
var ErrUnknownAxis = errors.New("playback: unknown axis")

// Axis identifies the dimension being animated. The zero value None means
// nothing is playing.
type Axis uint8

const (
	None Axis = iota
	X
	Y
	Z
	T
)

// Axes lists the playable axes in display order.
var Axes = []Axis{X, Y, Z, T}

func (a Axis) String() string {
	switch a {
	case None:
		return "none"
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	case T:
		return "t"
	default:
		return fmt.Sprintf("axis(%d)", uint8(a))
	}
}

// Spatial reports whether a is one of X, Y or Z.
func (a Axis) Spatial() bool { return a == X || a == Y || a == Z }

// Valid reports whether a can be played.
func (a Axis) Valid() bool { return a.Spatial() || a == T }

func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "x":
		return X, nil
	case "y":
		return Y, nil
	case "z":
		return Z, nil
	case "t", "time":
		return T, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownAxis, s)
}

// MarshalText lets axes round-trip through YAML and JSON as names.
func (a Axis) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Axis) UnmarshalText(b []byte) error {
	v, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
