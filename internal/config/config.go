package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/overlays"
)

type contextKey string

const configKey contextKey = "config"

// DefaultAddr is where `capforge serve` listens unless configured otherwise
const DefaultAddr = "127.0.0.1:8790"

// Environment overrides, applied after the config file
const (
	EnvFFmpeg  = "CAPFORGE_FFMPEG"
	EnvFFprobe = "CAPFORGE_FFPROBE"
	EnvThreads = "CAPFORGE_THREADS"
	EnvFont    = "CAPFORGE_FONT"
	EnvAddr    = "CAPFORGE_ADDR"
)

// Config holds all application configuration
type Config struct {
	// Render defaults for new projects and compose
	Render media.RenderConfig `yaml:"render"`

	// Background music defaults
	Audio audio.Config `yaml:"audio"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Overlay settings
	Overlays OverlayConfig `yaml:"overlays"`

	// HTTP editor surface
	Server ServerConfig `yaml:"server"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
}

type OverlayConfig struct {
	// Font is a TTF file name or path; missing fonts fall back to Go Bold
	Font string `yaml:"font"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads configuration from file or returns defaults. Environment
// overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a render
func (c *Config) Validate() error {
	if err := c.Render.Validate(); err != nil {
		return err
	}
	if c.Audio.Gain < 0 {
		return fmt.Errorf("audio gain cannot be negative, got %g", c.Audio.Gain)
	}
	if c.FFmpeg.Threads < 0 {
		return fmt.Errorf("ffmpeg threads cannot be negative, got %d", c.FFmpeg.Threads)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvFFmpeg); v != "" {
		c.FFmpeg.BinaryPath = v
	}
	if v := os.Getenv(EnvFFprobe); v != "" {
		c.FFmpeg.ProbePath = v
	}
	if v := os.Getenv(EnvThreads); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreads, err)
		}
		c.FFmpeg.Threads = n
	}
	if v := os.Getenv(EnvFont); v != "" {
		c.Overlays.Font = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Render: media.DefaultRenderConfig(),
		Audio: audio.Config{
			Gain: audio.DefaultGain,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Overlays: OverlayConfig{
			Font: overlays.DefaultFont,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./capforge.yaml",
		"./capforge.yml",
		filepath.Join(os.Getenv("HOME"), ".capforge", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
