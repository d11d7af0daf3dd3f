// Package config resolves the daemon configuration from the config file,
// environment, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// Config is the resolved daemon configuration. Environment variables
// override file values.
type Config struct {
	// Listen is the transport boundary bind address. Loopback only by
	// default; the API has no authentication.
	Listen string `env:"VOXHOST_LISTEN"`

	// ResourcesDir holds the per-engine binary subdirectories. Empty means
	// "resources" beside the executable (the unpacked/dev layout).
	ResourcesDir string `env:"VOXHOST_RESOURCES_DIR"`

	// DataDir is the per-user application data root for model caches.
	DataDir string `env:"VOXHOST_DATA_DIR"`

	// StartupTimeout bounds the health wait after a spawn; first-run model
	// loading can take minutes.
	StartupTimeout time.Duration `env:"VOXHOST_STARTUP_TIMEOUT"`
	PollInterval   time.Duration `env:"VOXHOST_POLL_INTERVAL"`

	// AudioMaxAge bounds how long generated audio files are kept.
	AudioMaxAge time.Duration `env:"VOXHOST_AUDIO_MAX_AGE"`

	Debug bool `env:"VOXHOST_DEBUG"`
}

// Load builds the configuration from viper (already bound to the config
// file and flags by the CLI layer) with env overrides on top.
func Load() (Config, error) {
	cfg := Config{
		Listen:         viper.GetString("listen"),
		ResourcesDir:   viper.GetString("resources"),
		DataDir:        viper.GetString("data-dir"),
		StartupTimeout: viper.GetDuration("startup-timeout"),
		PollInterval:   viper.GetDuration("poll-interval"),
		AudioMaxAge:    viper.GetDuration("audio-max-age"),
		Debug:          viper.GetBool("debug"),
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config from environment: %w", err)
	}

	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:4770"
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 120 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.AudioMaxAge <= 0 {
		cfg.AudioMaxAge = time.Hour
	}

	var err error
	if cfg.ResourcesDir, err = resolveResourcesDir(cfg.ResourcesDir); err != nil {
		return Config{}, err
	}
	if cfg.DataDir, err = resolveDataDir(cfg.DataDir); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveResourcesDir expands a configured path, or falls back to the
// "resources" directory beside the running executable.
func resolveResourcesDir(configured string) (string, error) {
	if configured != "" {
		expanded, err := homedir.Expand(configured)
		if err != nil {
			return "", fmt.Errorf("invalid resources dir: %w", err)
		}
		return expanded, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("unable to locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "resources"), nil
}

// resolveDataDir expands a configured path, or uses the per-user data
// scope.
func resolveDataDir(configured string) (string, error) {
	if configured != "" {
		expanded, err := homedir.Expand(configured)
		if err != nil {
			return "", fmt.Errorf("invalid data dir: %w", err)
		}
		return expanded, nil
	}

	scope := gap.NewScope(gap.User, "voxhost")
	dir, err := scope.DataPath("")
	if err != nil {
		return "", fmt.Errorf("unable to resolve data directory: %w", err)
	}
	return dir, nil
}
