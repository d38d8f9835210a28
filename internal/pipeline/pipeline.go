// Package pipeline runs a project through the whole render chain: build
// every clip, composite, mix and export.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/clips"
	"github.com/keagan/capforge/internal/config"
	"github.com/keagan/capforge/internal/export"
	"github.com/keagan/capforge/internal/ffmpeg"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/overlays"
	"github.com/keagan/capforge/internal/timeline"
)

// Deps are the codec ports the pipeline renders through
type Deps struct {
	Decoder  media.Decoder
	Audio    audio.Decoder
	Sink     media.Sink
	Overlays *overlays.Renderer
}

// Pipeline orchestrates the render workflow. It holds no per-render state
// and may run several exports concurrently.
type Pipeline struct {
	logger     zerolog.Logger
	sink       media.Sink
	builder    *clips.Builder
	compositor *timeline.Compositor
	mixer      *audio.Mixer
}

// New creates a pipeline backed by ffmpeg as configured in appCfg
func New(logger zerolog.Logger, appCfg *config.Config) (*Pipeline, error) {
	exec, err := ffmpeg.New(logger, ffmpeg.Options{
		FFmpegPath:  appCfg.FFmpeg.BinaryPath,
		FFprobePath: appCfg.FFmpeg.ProbePath,
		Threads:     appCfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	dec := ffmpeg.NewDecoder(exec)
	return NewWithDeps(logger, Deps{
		Decoder:  dec,
		Audio:    dec,
		Sink:     ffmpeg.NewEncoder(exec),
		Overlays: overlays.NewRenderer(logger, appCfg.Overlays.Font),
	}), nil
}

// NewWithDeps creates a pipeline over explicit ports
func NewWithDeps(logger zerolog.Logger, deps Deps) *Pipeline {
	return &Pipeline{
		logger:     logger.With().Str("component", "pipeline").Logger(),
		sink:       deps.Sink,
		builder:    clips.NewBuilder(logger, deps.Decoder, deps.Overlays),
		compositor: timeline.NewCompositor(logger),
		mixer:      audio.NewMixer(logger, deps.Audio),
	}
}

// Export renders project to dest, or to project.Output when dest is empty.
// An empty timeline fails with media.ErrEmptyTimeline before any file is
// opened. Every decoder handle is released before Export returns.
func (p *Pipeline) Export(ctx context.Context, project *Project, dest string, progress export.ProgressFunc) (*export.Result, error) {
	if project == nil || project.Len() == 0 {
		return nil, media.ErrEmptyTimeline
	}
	if err := project.Render.Validate(); err != nil {
		return nil, err
	}
	if dest == "" {
		dest = project.Output
	}

	p.logger.Info().
		Int("clips", project.Len()).
		Str("output", dest).
		Int("height", project.Render.Height).
		Int("fps", project.Render.FPS).
		Float64("crossfade", project.Render.Crossfade).
		Msg("starting render pipeline")
	start := time.Now()

	// Stage 1: build every clip
	built, err := p.buildAll(ctx, project)
	if err != nil {
		return nil, err
	}

	// Stage 2: stitch them together; the composite owns the clips from here
	comp, err := p.compositor.Composite(built, project.Render.CrossfadeDuration())
	if err != nil {
		closeAll(built)
		return nil, err
	}
	defer comp.Close()

	// Stage 3: background music
	track, err := p.mixer.Mix(ctx, comp.Audio(), comp.Duration(), project.Audio)
	if err != nil {
		return nil, err
	}

	// Stage 4: encode
	exp := export.New(p.logger, p.sink)
	exp.OnProgress(progress)
	res, err := exp.Export(ctx, comp, track, project.Render, dest)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("output", res.Path).
		Dur("duration", res.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("render pipeline complete")
	return res, nil
}

func (p *Pipeline) buildAll(ctx context.Context, project *Project) ([]*clips.Built, error) {
	built := make([]*clips.Built, 0, project.Len())
	for i, spec := range project.Clips {
		if err := ctx.Err(); err != nil {
			closeAll(built)
			return nil, err
		}
		c, err := p.builder.Build(ctx, spec, project.Render)
		if err != nil {
			closeAll(built)
			return nil, fmt.Errorf("clip %d: %w", i, err)
		}
		built = append(built, c)
	}
	return built, nil
}

func closeAll(built []*clips.Built) {
	for _, c := range built {
		_ = c.Close()
	}
}
