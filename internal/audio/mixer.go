package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultGain is the background music level used when none is configured
const DefaultGain = 0.35

// Config selects the optional background track
type Config struct {
	BackgroundPath string  `yaml:"background_path" json:"background_path"`
	Gain           float64 `yaml:"gain" json:"gain"`
}

// Decoder turns an audio file into a canonical PCM track, reading at most
// limit of it when limit is positive. It returns a nil track when the file
// has no audio stream.
type Decoder interface {
	DecodeAudio(ctx context.Context, path string, limit time.Duration) (*Track, error)
}

// Mixer lays the background track under the composite's native audio
type Mixer struct {
	logger  zerolog.Logger
	decoder Decoder
}

// NewMixer creates a mixer that decodes background tracks with dec
func NewMixer(logger zerolog.Logger, dec Decoder) *Mixer {
	return &Mixer{
		logger:  logger.With().Str("component", "audio-mixer").Logger(),
		decoder: dec,
	}
}

// Mix returns the final audio for a composite of the given duration.
//
// Without a background path the native track is returned as-is (possibly
// nil). Otherwise at most duration of the background is decoded, multiplied by cfg.Gain and cut
// to duration; a shorter background simply ends early. The result is the sum
// of native and background, or the background alone when native is nil.
// No normalization or clipping protection is applied.
func (m *Mixer) Mix(ctx context.Context, native *Track, duration time.Duration, cfg Config) (*Track, error) {
	if cfg.BackgroundPath == "" {
		return native, nil
	}

	bg, err := m.decoder.DecodeAudio(ctx, cfg.BackgroundPath, duration)
	if err != nil {
		return nil, fmt.Errorf("decode background track: %w", err)
	}
	if bg == nil {
		m.logger.Warn().Str("path", cfg.BackgroundPath).Msg("background file has no audio stream, skipping")
		return native, nil
	}

	bg = bg.Gain(cfg.Gain).Truncate(duration)

	m.logger.Info().
		Str("path", cfg.BackgroundPath).
		Float64("gain", cfg.Gain).
		Dur("background", bg.Duration()).
		Dur("composite", duration).
		Bool("has_native", native != nil).
		Msg("mixing background track")

	if native == nil {
		return bg, nil
	}
	return native.Overlay(bg)
}
