package media

import "time"

// Render defaults
const (
	DefaultHeight    = 1080
	DefaultFPS       = 30
	DefaultCrossfade = 0.5
)

// RenderConfig controls output geometry, timing and transitions
type RenderConfig struct {
	// Height is the output frame height in pixels; 0 keeps each source's height
	Height int `yaml:"height" json:"height"`
	// FPS is the output frame rate
	FPS int `yaml:"fps" json:"fps"`
	// Crossfade is the transition length in seconds; 0 disables transitions
	Crossfade float64 `yaml:"crossfade" json:"crossfade"`
}

// DefaultRenderConfig returns the stock 1080p30 config with a half-second crossfade
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Height:    DefaultHeight,
		FPS:       DefaultFPS,
		Crossfade: DefaultCrossfade,
	}
}

// Validate checks the config against the pipeline's domain
func (c RenderConfig) Validate() error {
	if c.FPS <= 0 {
		return invalidf("fps must be positive, got %d", c.FPS)
	}
	if c.Height < 0 {
		return invalidf("height cannot be negative, got %d", c.Height)
	}
	if c.Crossfade < 0 {
		return invalidf("crossfade cannot be negative, got %g", c.Crossfade)
	}
	return nil
}

// CrossfadeDuration returns Crossfade as a duration
func (c RenderConfig) CrossfadeDuration() time.Duration {
	return Seconds(c.Crossfade)
}
