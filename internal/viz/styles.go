package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statsStyle  = lipgloss.NewStyle().Padding(0, 2).Width(44)
	headerStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Width(10)
	helpStyle   = lipgloss.NewStyle().Italic(true).MarginTop(1)
)

// shades maps intensity to glyph density, darkest first.
const shades = " .:-=+*#%@"

// renderPlane draws a slice with a shade ramp, nearest-neighbour resampled
// to fit within maxW x maxH cells. Terminal cells are about twice as tall as
// wide, so each row covers two source rows when there is room.
func renderPlane(plane []byte, w, h, maxW, maxH int, color lipgloss.Color) string {
	if w == 0 || h == 0 {
		return ""
	}
	outW := min(w, maxW)
	outH := min((h+1)/2, maxH)
	if outH < 1 {
		outH = 1
	}

	ramp := []rune(shades)
	var b strings.Builder
	for r := 0; r < outH; r++ {
		sy := r * h / outH
		for c := 0; c < outW; c++ {
			sx := c * w / outW
			v := int(plane[sy*w+sx])
			b.WriteRune(ramp[v*(len(ramp)-1)/255])
		}
		if r < outH-1 {
			b.WriteByte('\n')
		}
	}
	return lipgloss.NewStyle().Foreground(color).Render(b.String())
}

// rowProfile returns the mean intensity of every row of a plane.
func rowProfile(plane []byte, w, h int) []float64 {
	out := make([]float64, h)
	if w == 0 {
		return out
	}
	for r := 0; r < h; r++ {
		sum := 0
		for _, v := range plane[r*w : (r+1)*w] {
			sum += int(v)
		}
		out[r] = float64(sum) / float64(w)
	}
	return out
}
