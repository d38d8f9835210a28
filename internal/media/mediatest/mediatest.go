// Package mediatest provides in-memory sources, decoders and sinks for
// exercising the render pipeline without ffmpeg.
package mediatest

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"sync"
	"time"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/media"
)

// Source is a synthetic media file. Each frame is filled with a solid colour
// encoding its native frame index, see Index. Blue tags frames of this source
// without affecting the index.
type Source struct {
	Width    int
	Height   int
	Dur      time.Duration
	FPS      int
	Blue     uint8
	Track    *audio.Track
	AudioErr error

	// AudioWindows records each [from, to) passed to Audio
	AudioWindows [][2]time.Duration

	mu     sync.Mutex
	frames int
	closed bool
}

// NewSource returns a silent source of the given geometry at 30fps
func NewSource(w, h int, d time.Duration) *Source {
	return &Source{Width: w, Height: h, Dur: d, FPS: 30}
}

// WithAudio attaches a constant-valued canonical track covering the source
func (s *Source) WithAudio(v float32) *Source {
	tr := audio.Silence(s.Dur)
	for i := range tr.Samples {
		tr.Samples[i] = v
	}
	s.Track = tr
	return s
}

func (s *Source) Info() media.SourceInfo {
	return media.SourceInfo{
		Width:    s.Width,
		Height:   s.Height,
		Duration: s.Dur,
		FPS:      float64(s.FPS),
		HasAudio: s.Track != nil,
	}
}

func (s *Source) Size() image.Point       { return image.Pt(s.Width, s.Height) }
func (s *Source) Duration() time.Duration { return s.Dur }

func (s *Source) Frame(t time.Duration) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("mediatest: frame read after close")
	}
	s.frames++
	idx := media.FrameIndex(media.Clamp(t, s.Dur), s.FPS)
	c := IndexColor(idx)
	c.B = s.Blue
	return Solid(s.Size(), c), nil
}

func (s *Source) Audio(_ context.Context, from, to time.Duration) (*audio.Track, error) {
	s.mu.Lock()
	s.AudioWindows = append(s.AudioWindows, [2]time.Duration{from, to})
	s.mu.Unlock()
	if s.AudioErr != nil {
		return nil, s.AudioErr
	}
	if s.Track == nil {
		return nil, nil
	}
	return s.Track.Slice(from, to), nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IndexColor is the colour Source paints native frame idx with
func IndexColor(idx int) color.RGBA {
	return color.RGBA{R: uint8(idx), G: uint8(idx >> 8), B: 0, A: 255}
}

// Index decodes the native frame index from the pixel at p
func Index(img *image.RGBA, p image.Point) int {
	c := img.RGBAAt(p.X, p.Y)
	return int(c.R) | int(c.G)<<8
}

// Solid returns an image of the given size filled with c
func Solid(size image.Point, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// Decoder serves Sources by path
type Decoder struct {
	mu      sync.Mutex
	Sources map[string]*Source
	Opened  []string
}

// NewDecoder creates a decoder over the given path → source map
func NewDecoder(sources map[string]*Source) *Decoder {
	return &Decoder{Sources: sources}
}

func (d *Decoder) Open(_ context.Context, path string) (media.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	src, ok := d.Sources[path]
	if !ok {
		return nil, media.Unreadable(path, os.ErrNotExist)
	}
	d.Opened = append(d.Opened, path)
	return src, nil
}

// DecodeAudio satisfies audio.Decoder from the same source map
func (d *Decoder) DecodeAudio(ctx context.Context, path string, limit time.Duration) (*audio.Track, error) {
	d.mu.Lock()
	src, ok := d.Sources[path]
	d.mu.Unlock()
	if !ok {
		return nil, media.Unreadable(path, os.ErrNotExist)
	}
	to := src.Dur
	if limit > 0 {
		to = limit
	}
	return src.Audio(ctx, 0, to)
}

// Sink records encode jobs instead of writing real containers. It still
// creates a small file at the job path so callers can rename it.
type Sink struct {
	Err error
	// FailAfter aborts the job with Err once this many frames were consumed
	FailAfter int

	Jobs   []media.EncodeJob
	Frames int
	First  *image.RGBA
	Last   *image.RGBA
	Sizes  map[image.Point]int
}

func (s *Sink) Encode(ctx context.Context, job media.EncodeJob) error {
	s.Jobs = append(s.Jobs, job)
	s.Sizes = map[image.Point]int{}
	s.Frames = 0

	f, err := os.Create(job.Path)
	if err != nil {
		return media.EncodeFailed(job.Path, err)
	}
	defer f.Close()

	err = job.Frames(func(img *image.RGBA) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Err != nil && s.Frames >= s.FailAfter {
			return s.Err
		}
		if s.Frames == 0 {
			s.First = media.Clone(img)
		}
		s.Last = media.Clone(img)
		s.Sizes[img.Bounds().Size()]++
		s.Frames++
		_, werr := f.Write([]byte{0})
		return werr
	})
	if err != nil {
		return media.EncodeFailed(job.Path, err)
	}
	if s.Err != nil {
		return media.EncodeFailed(job.Path, s.Err)
	}
	return nil
}
