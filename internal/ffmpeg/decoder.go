package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/media"
)

// fallbackFPS is used when a file reports no usable frame rate
const fallbackFPS = 30

// seekAhead is how many frames ahead a request may be before the decoder
// restarts with a seek instead of reading through
const seekAhead = 90

// Decoder opens media files as frame sources backed by ffmpeg
type Decoder struct {
	exec   *Executor
	logger zerolog.Logger
}

// NewDecoder creates a decoder using exec
func NewDecoder(exec *Executor) *Decoder {
	return &Decoder{
		exec:   exec,
		logger: exec.logger.With().Str("stage", "decode").Logger(),
	}
}

// Open probes path and returns a lazily decoding source
func (d *Decoder) Open(ctx context.Context, path string) (media.Source, error) {
	info, err := d.exec.ProbeVideo(ctx, path)
	if err != nil {
		return nil, media.Unreadable(path, err)
	}
	if !info.HasVideo || info.Width <= 0 || info.Height <= 0 {
		return nil, media.Unreadable(path, errors.New("no video stream"))
	}
	if info.Duration <= 0 {
		return nil, media.Unreadable(path, errors.New("unknown duration"))
	}

	fps := int(math.Round(info.FPS))
	if fps <= 0 {
		fps = fallbackFPS
	}

	d.logger.Debug().
		Str("path", path).
		Int("width", info.Width).
		Int("height", info.Height).
		Int("fps", fps).
		Dur("duration", info.Duration).
		Bool("audio", info.HasAudio).
		Msg("source opened")

	return &source{
		dec:  d,
		ctx:  ctx,
		info: *info,
		fps:  fps,
		size: image.Pt(info.Width, info.Height),
		last: -1,
	}, nil
}

// DecodeAudio decodes the first audio stream of path to the canonical PCM
// layout, stopping after limit when it is positive. Files without an audio
// stream yield a nil track.
func (d *Decoder) DecodeAudio(ctx context.Context, path string, limit time.Duration) (*audio.Track, error) {
	info, err := d.exec.ProbeVideo(ctx, path)
	if err != nil {
		return nil, media.Unreadable(path, err)
	}
	if !info.HasAudio {
		return nil, nil
	}
	return d.decodePCM(ctx, path, 0, limit)
}

// pcmArgs decodes dur of path's audio starting at from; a zero dur reads to
// the end. The window is set on the input, before -i.
func pcmArgs(path string, from, dur time.Duration) []string {
	var args []string
	if from > 0 {
		args = append(args, "-ss", seconds(from))
	}
	if dur > 0 {
		args = append(args, "-t", seconds(dur))
	}
	return append(args,
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"pipe:1",
	)
}

func (d *Decoder) decodePCM(ctx context.Context, path string, from, dur time.Duration) (*audio.Track, error) {
	proc, err := d.exec.Pipe(ctx, pcmArgs(path, from, dur))
	if err != nil {
		return nil, media.Unreadable(path, err)
	}
	defer proc.Close()

	track, readErr := audio.ReadPCM(proc.Stdout, dur)
	if err := proc.Wait(); err != nil {
		return nil, media.Unreadable(path, err)
	}
	if readErr != nil {
		return nil, media.Unreadable(path, readErr)
	}
	d.logger.Debug().
		Str("path", path).
		Dur("from", from).
		Dur("duration", track.Duration()).
		Msg("audio decoded")
	return track, nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

// source streams rawvideo RGBA frames from one ffmpeg process, reading
// forward sequentially and restarting with a seek when asked to go back or
// jump far ahead
type source struct {
	dec  *Decoder
	ctx  context.Context
	info VideoInfo
	fps  int
	size image.Point

	mu     sync.Mutex
	proc   *Process
	next   int // index of the next frame proc will produce
	last   int // index of the cached frame
	frame  *image.RGBA
	closed bool
}

func (s *source) Info() media.SourceInfo {
	return media.SourceInfo{
		Path:     s.info.FilePath,
		Width:    s.info.Width,
		Height:   s.info.Height,
		Duration: s.info.Duration,
		FPS:      float64(s.fps),
		HasAudio: s.info.HasAudio,
	}
}

func (s *source) Size() image.Point       { return s.size }
func (s *source) Duration() time.Duration { return s.info.Duration }

func (s *source) Audio(ctx context.Context, from, to time.Duration) (*audio.Track, error) {
	if !s.info.HasAudio {
		return nil, nil
	}
	from = max(from, 0)
	to = min(to, s.info.Duration)
	if to <= from {
		return audio.NewTrack(nil), nil
	}
	return s.dec.decodePCM(ctx, s.info.FilePath, from, to-from)
}

func (s *source) Frame(t time.Duration) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("read from closed source %s", s.info.FilePath)
	}

	idx := media.FrameIndex(media.Clamp(t, s.info.Duration), s.fps)
	if idx == s.last && s.frame != nil {
		return s.frame, nil
	}

	if s.proc == nil || idx < s.next || idx-s.next > seekAhead {
		if err := s.restart(idx); err != nil {
			return nil, err
		}
	}

	for s.next <= idx {
		img, err := s.read()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// probed duration overshoots the stream; hold the last frame
			if s.frame != nil {
				s.last = idx
				return s.frame, nil
			}
			return nil, media.Unreadable(s.info.FilePath, fmt.Errorf("no frame at %v", t))
		}
		if err != nil {
			return nil, media.Unreadable(s.info.FilePath, err)
		}
		s.frame = img
		s.last = s.next
		s.next++
	}
	return s.frame, nil
}

func (s *source) restart(idx int) error {
	s.stop()

	args := []string{
		"-ss", seconds(media.FrameTime(idx, s.fps)),
		"-i", s.info.FilePath,
		"-an", "-sn",
		"-vf", NewFilterBuilder().FPS(s.fps).Build(),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}
	proc, err := s.dec.exec.Pipe(s.ctx, args)
	if err != nil {
		return media.Unreadable(s.info.FilePath, err)
	}
	s.proc = proc
	s.next = idx
	return nil
}

func (s *source) read() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rectangle{Max: s.size})
	if _, err := io.ReadFull(s.proc.Stdout, img.Pix); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if werr := s.proc.Wait(); werr != nil {
				return nil, werr
			}
		}
		return nil, err
	}
	return img, nil
}

func (s *source) stop() {
	if s.proc != nil {
		s.proc.Close()
		s.proc = nil
	}
}

func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	s.closed = true
	s.frame = nil
	return nil
}
