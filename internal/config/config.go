package config

import (
	"fmt"
	"os"
	"time"

	"github.com/san-kum/volplay/internal/playback"
	"github.com/san-kum/volplay/internal/volume"
	"gopkg.in/yaml.v3"
)

const (
	DefaultX           = 64
	DefaultY           = 64
	DefaultZ           = 32
	DefaultT           = 24
	DefaultChannels    = 2
	DefaultCacheFrames = 8
	DefaultPrefetch    = 2
	DefaultTheme       = "minimal"
	DefaultLogLevel    = "info"
	DefaultLogMaxSize  = 10
	DefaultLogMaxAge   = 7
)

type Config struct {
	Volume   VolumeConfig   `yaml:"volume"`
	Playback PlaybackConfig `yaml:"playback"`
	Loader   LoaderConfig   `yaml:"loader"`
	Log      LogConfig      `yaml:"log"`
	Theme    string         `yaml:"theme"`
}

type VolumeConfig struct {
	Dims volume.Dims `yaml:"dims"`
	Seed int64       `yaml:"seed"`
}

type PlaybackConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Autoplay starts playback on this axis when the viewer opens.
	Autoplay playback.Axis `yaml:"autoplay"`
}

type LoaderConfig struct {
	Latency     time.Duration `yaml:"latency"`
	CacheFrames int           `yaml:"cache_frames"`
	Prefetch    int           `yaml:"prefetch"`
}

type LogConfig struct {
	File    string `yaml:"file"`
	Level   string `yaml:"level"`
	MaxSize int    `yaml:"max_size"` // megabytes
	MaxAge  int    `yaml:"max_age"`  // days
}

func DefaultConfig() *Config {
	return &Config{
		Volume: VolumeConfig{
			Dims: volume.Dims{X: DefaultX, Y: DefaultY, Z: DefaultZ, T: DefaultT, Channels: DefaultChannels},
		},
		Playback: PlaybackConfig{
			Interval: playback.DefaultStepInterval,
		},
		Loader: LoaderConfig{
			CacheFrames: DefaultCacheFrames,
			Prefetch:    DefaultPrefetch,
		},
		Log: LogConfig{
			Level:   DefaultLogLevel,
			MaxSize: DefaultLogMaxSize,
			MaxAge:  DefaultLogMaxAge,
		},
		Theme: DefaultTheme,
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto decodes the file at path over cfg, so keys the file leaves out
// keep their current values, then validates the result.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.Volume.Dims.Validate(); err != nil {
		return err
	}
	if c.Playback.Interval < 0 {
		return fmt.Errorf("playback interval must not be negative, got %v", c.Playback.Interval)
	}
	if c.Loader.Latency < 0 {
		return fmt.Errorf("loader latency must not be negative, got %v", c.Loader.Latency)
	}
	if c.Loader.CacheFrames < 1 {
		return fmt.Errorf("loader cache must hold at least one frame, got %d", c.Loader.CacheFrames)
	}
	if c.Loader.Prefetch < 0 || c.Loader.Prefetch >= c.Loader.CacheFrames {
		return fmt.Errorf("prefetch %d must be in [0,%d)", c.Loader.Prefetch, c.Loader.CacheFrames)
	}
	return nil
}
