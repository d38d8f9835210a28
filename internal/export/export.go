// Package export encodes a composited stream to its destination file.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/pkg/util"
)

// DefaultExt is the container used when the destination has no extension
const DefaultExt = ".mp4"

// ProgressFunc receives the number of frames encoded so far
type ProgressFunc func(done, total int)

// Result describes a finished export
type Result struct {
	Path     string
	Frames   int
	Bytes    int64
	Duration time.Duration
	Elapsed  time.Duration
}

// Exporter writes streams through a Sink. Output is encoded into a hidden
// temp file next to the destination and renamed into place only on success,
// so a failed or cancelled export never leaves a partial file at dest.
type Exporter struct {
	sink     media.Sink
	logger   zerolog.Logger
	progress ProgressFunc
}

// New creates an exporter encoding through sink
func New(logger zerolog.Logger, sink media.Sink) *Exporter {
	return &Exporter{
		sink:   sink,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// OnProgress registers fn to be called after every encoded frame
func (e *Exporter) OnProgress(fn ProgressFunc) {
	e.progress = fn
}

// Export encodes stream at cfg.FPS with track as its audio (nil for none)
func (e *Exporter) Export(ctx context.Context, stream media.Stream, track *audio.Track, cfg media.RenderConfig, dest string) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dest == "" {
		return nil, media.EncodeFailed(dest, errors.New("no destination path"))
	}

	dir := filepath.Dir(dest)
	if err := util.EnsureDir(dir); err != nil {
		return nil, media.EncodeFailed(dest, err)
	}
	ext := filepath.Ext(dest)
	if ext == "" {
		ext = DefaultExt
	}
	tmp, err := util.TempFile(dir, "."+strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))+"-", ext)
	if err != nil {
		return nil, media.EncodeFailed(dest, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	start := time.Now()
	duration := stream.Duration()
	total := media.FrameCount(duration, cfg.FPS)
	size := stream.Size()

	if track != nil {
		track = track.Truncate(duration)
	}

	e.logger.Info().
		Str("output", dest).
		Int("frames", total).
		Int("fps", cfg.FPS).
		Str("size", fmt.Sprintf("%dx%d", size.X, size.Y)).
		Bool("audio", track != nil).
		Msg("export started")

	var frameErr error
	job := media.EncodeJob{
		Path:   tmpPath,
		Width:  size.X,
		Height: size.Y,
		FPS:    cfg.FPS,
		Audio:  track,
		Frames: func(emit func(*image.RGBA) error) error {
			for i := 0; i < total; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				img, err := stream.Frame(media.FrameTime(i, cfg.FPS))
				if err != nil {
					frameErr = err
					return err
				}
				if err := emit(img); err != nil {
					return err
				}
				if e.progress != nil {
					e.progress(i+1, total)
				}
			}
			return nil
		},
	}

	if err := e.sink.Encode(ctx, job); err != nil {
		util.CleanupFiles(tmpPath)
		switch {
		case frameErr != nil:
			err = frameErr
		case ctx.Err() != nil:
			err = media.EncodeFailed(dest, ctx.Err())
		case !errors.Is(err, media.ErrEncodeFailure):
			err = media.EncodeFailed(dest, err)
		}
		e.logger.Error().Err(err).Str("output", dest).Msg("export failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		util.CleanupFiles(tmpPath)
		return nil, media.EncodeFailed(dest, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		util.CleanupFiles(tmpPath)
		return nil, media.EncodeFailed(dest, err)
	}

	res := &Result{Path: dest, Frames: total, Duration: duration, Elapsed: time.Since(start)}
	if info, err := os.Stat(dest); err == nil {
		res.Bytes = info.Size()
	}

	e.logger.Info().
		Str("output", dest).
		Int("frames", total).
		Str("bytes", humanize.Bytes(uint64(res.Bytes))).
		Dur("elapsed", res.Elapsed).
		Msg("export complete")

	return res, nil
}
