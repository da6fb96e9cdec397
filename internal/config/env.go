package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/san-kum/volplay/internal/playback"
)

// Environment overrides, applied after the config file and before flags.
const (
	EnvInterval = "VOLPLAY_INTERVAL"
	EnvAutoplay = "VOLPLAY_AXIS"
	EnvLogFile  = "VOLPLAY_LOG_FILE"
	EnvLogLevel = "VOLPLAY_LOG_LEVEL"
	EnvTheme    = "VOLPLAY_THEME"
)

// LoadEnv reads the given .env files into the process environment, skipping
// files that do not exist, then applies VOLPLAY_* variables to cfg. Variables
// already set in the environment win over .env files.
func LoadEnv(cfg *Config, files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return ApplyEnv(cfg)
}

func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInterval, err)
		}
		cfg.Playback.Interval = d
	}
	if v := os.Getenv(EnvAutoplay); v != "" {
		axis, err := playback.ParseAxis(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAutoplay, err)
		}
		cfg.Playback.Autoplay = axis
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvTheme); v != "" {
		cfg.Theme = v
	}
	return nil
}
