package config

import (
	"sort"
	"time"

	"github.com/san-kum/volplay/internal/playback"
	"github.com/san-kum/volplay/internal/volume"
)

var Presets = map[string]*Config{
	"small": {
		Volume:   VolumeConfig{Dims: volume.Dims{X: 24, Y: 24, Z: 12, T: 8, Channels: 1}},
		Playback: PlaybackConfig{Interval: playback.DefaultStepInterval},
		Loader:   LoaderConfig{CacheFrames: 4, Prefetch: 1},
	},
	"timelapse": {
		Volume:   VolumeConfig{Dims: volume.Dims{X: 64, Y: 64, Z: 16, T: 96, Channels: 3}},
		Playback: PlaybackConfig{Interval: 80 * time.Millisecond, Autoplay: playback.T},
		Loader:   LoaderConfig{CacheFrames: 12, Prefetch: 4},
	},
	"slow-load": {
		Volume:   VolumeConfig{Dims: volume.Dims{X: 48, Y: 48, Z: 24, T: 32, Channels: 2}},
		Playback: PlaybackConfig{Interval: playback.DefaultStepInterval, Autoplay: playback.T},
		Loader:   LoaderConfig{Latency: 400 * time.Millisecond, CacheFrames: 3, Prefetch: 0},
	},
}

// GetPreset returns a copy of the named preset layered over the defaults,
// or nil if it does not exist.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Volume = p.Volume
	cfg.Playback = p.Playback
	cfg.Loader = p.Loader
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
