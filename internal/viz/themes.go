package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines color scheme for the TUI
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Playing lipgloss.Color
	Waiting lipgloss.Color
	Held    lipgloss.Color
	// Channels colors successive fluorescence channels.
	Channels []lipgloss.Color
}

// Available themes
var (
	ThemeMinimal = Theme{
		Name:     "minimal",
		Primary:  lipgloss.Color("#ffffff"),
		Accent:   lipgloss.Color("#0088ff"),
		Text:     lipgloss.Color("#dddddd"),
		Muted:    lipgloss.Color("#777777"),
		Playing:  lipgloss.Color("#00ff88"),
		Waiting:  lipgloss.Color("#ffaa00"),
		Held:     lipgloss.Color("#88aaff"),
		Channels: []lipgloss.Color{"#ffffff", "#bbbbbb", "#888888"},
	}

	ThemeFluorescence = Theme{
		Name:     "fluorescence",
		Primary:  lipgloss.Color("#39ff14"),
		Accent:   lipgloss.Color("#ff00ff"),
		Text:     lipgloss.Color("#e0ffe0"),
		Muted:    lipgloss.Color("#4a6a4a"),
		Playing:  lipgloss.Color("#39ff14"),
		Waiting:  lipgloss.Color("#ffd700"),
		Held:     lipgloss.Color("#00e5ff"),
		Channels: []lipgloss.Color{"#39ff14", "#ff00ff", "#00e5ff"}, // GFP, mCherry, DAPI-ish
	}

	ThemeOcean = Theme{
		Name:     "ocean",
		Primary:  lipgloss.Color("#0077be"),
		Accent:   lipgloss.Color("#ffd700"),
		Text:     lipgloss.Color("#e0f0ff"),
		Muted:    lipgloss.Color("#4488aa"),
		Playing:  lipgloss.Color("#00ff88"),
		Waiting:  lipgloss.Color("#ffcc00"),
		Held:     lipgloss.Color("#00a8cc"),
		Channels: []lipgloss.Color{"#00a8cc", "#ffd700", "#ff6b6b"},
	}

	ThemeRetroGreen = Theme{
		Name:     "retro",
		Primary:  lipgloss.Color("#00ff00"),
		Accent:   lipgloss.Color("#88ff88"),
		Text:     lipgloss.Color("#00ff00"),
		Muted:    lipgloss.Color("#005500"),
		Playing:  lipgloss.Color("#88ff88"),
		Waiting:  lipgloss.Color("#ffff00"),
		Held:     lipgloss.Color("#00cc00"),
		Channels: []lipgloss.Color{"#00ff00", "#00cc00", "#009900"},
	}

	// Default theme
	CurrentTheme = ThemeMinimal

	// All available themes
	Themes = []Theme{
		ThemeMinimal,
		ThemeFluorescence,
		ThemeOcean,
		ThemeRetroGreen,
	}
)

// GetTheme returns a theme by name
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeMinimal
}

// SetTheme changes the current theme
func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = Themes[0]
}

// ThemeNames returns list of available theme names
func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// ChannelColor returns the color for channel c, cycling if the theme has
// fewer colors than the volume has channels.
func (t Theme) ChannelColor(c int) lipgloss.Color {
	if len(t.Channels) == 0 {
		return t.Text
	}
	return t.Channels[c%len(t.Channels)]
}
