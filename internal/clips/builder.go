package clips

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/overlays"
)

// Builder turns clip specs into composable streams
type Builder struct {
	decoder  media.Decoder
	overlays *overlays.Renderer
	logger   zerolog.Logger
}

// NewBuilder creates a builder reading sources through dec and drawing
// captions with ov
func NewBuilder(logger zerolog.Logger, dec media.Decoder, ov *overlays.Renderer) *Builder {
	return &Builder{
		decoder:  dec,
		overlays: ov,
		logger:   logger.With().Str("component", "clips").Logger(),
	}
}

// Build opens spec's source and applies, in order: scaling to cfg.Height,
// trimming, the caption overlay and conforming to cfg.FPS. The returned clip
// owns the source handle; callers must Close it.
func (b *Builder) Build(ctx context.Context, spec Spec, cfg media.RenderConfig) (*Built, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src, err := b.decoder.Open(ctx, spec.Path)
	if err != nil {
		if !errors.Is(err, media.ErrSourceUnreadable) {
			err = media.Unreadable(spec.Path, err)
		}
		return nil, err
	}

	built, err := b.build(ctx, src, spec, cfg)
	if err != nil {
		src.Close()
		return nil, err
	}
	return built, nil
}

func (b *Builder) build(ctx context.Context, src media.Source, spec Spec, cfg media.RenderConfig) (*Built, error) {
	info := src.Info()
	var stream media.Stream = src

	size := src.Size()
	if cfg.Height > 0 && cfg.Height != size.Y {
		size = ScaledSize(size.X, size.Y, cfg.Height)
		stream = newScaled(stream, size)
	}

	start, end, ok := Resolve(spec, stream.Duration())
	if ok {
		stream = newTrimmed(stream, start, end)
	} else {
		b.logger.Debug().
			Str("path", spec.Path).
			Float64("start", spec.Start).
			Dur("duration", stream.Duration()).
			Msg("empty trim interval, keeping full clip")
	}

	track, err := src.Audio(ctx, start, end)
	if err != nil {
		if !errors.Is(err, media.ErrSourceUnreadable) {
			err = media.Unreadable(spec.Path, err)
		}
		return nil, err
	}

	if spec.Text != "" && b.overlays != nil {
		if img, drawn := b.overlays.Render(size.X, size.Y, spec.Text, spec.Scale(), spec.TextAnchor); drawn {
			stream = newOverlaid(stream, img)
		}
	}

	stream = newConformed(stream, cfg.FPS)

	b.logger.Info().
		Str("path", spec.Path).
		Int("width", size.X).
		Int("height", size.Y).
		Int("native_height", info.Height).
		Dur("duration", stream.Duration()).
		Bool("audio", track != nil).
		Msg("clip built")

	return &Built{Stream: stream, Spec: spec, FPS: cfg.FPS, Audio: track}, nil
}
