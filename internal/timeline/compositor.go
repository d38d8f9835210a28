package timeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/clips"
	"github.com/keagan/capforge/internal/media"
)

// Layout is the placement of clips on the composite time axis
type Layout struct {
	// Offsets[i] is the composite time at which clip i starts
	Offsets []time.Duration
	// Overlaps[i] is the crossfade between clip i and clip i+1
	Overlaps []time.Duration
	Duration time.Duration
}

// Arrange places clips of the given durations back to back, each one
// starting crossfade before its predecessor ends. Every overlap is clamped to
// the shorter of its two neighbours.
func Arrange(durations []time.Duration, crossfade time.Duration) Layout {
	n := len(durations)
	l := Layout{Offsets: make([]time.Duration, n)}
	if n == 0 {
		return l
	}
	if n > 1 {
		l.Overlaps = make([]time.Duration, n-1)
	}
	for i := 0; i < n-1; i++ {
		if crossfade > 0 {
			l.Overlaps[i] = min(crossfade, durations[i], durations[i+1])
		}
		l.Offsets[i+1] = l.Offsets[i] + durations[i] - l.Overlaps[i]
	}
	l.Duration = l.Offsets[n-1] + durations[n-1]
	return l
}

// Visible returns how long clip i plays before the next clip starts
func (l Layout) Visible(i int, d time.Duration) time.Duration {
	if i < len(l.Overlaps) {
		return d - l.Overlaps[i]
	}
	return d
}

// Compositor stitches built clips into a single stream
type Compositor struct {
	logger zerolog.Logger
}

// NewCompositor creates a compositor
func NewCompositor(logger zerolog.Logger) *Compositor {
	return &Compositor{logger: logger.With().Str("component", "timeline").Logger()}
}

// Composite is the continuous stream of all clips. The canvas is as large as
// the largest clip; smaller clips are centered on black.
type Composite struct {
	clips  []*clips.Built
	layout Layout
	size   image.Point
	audio  *audio.Track
}

// Composite arranges clips in order with the given crossfade. It takes
// ownership of the clips: closing the composite closes them.
func (c *Compositor) Composite(built []*clips.Built, crossfade time.Duration) (*Composite, error) {
	if len(built) == 0 {
		return nil, media.ErrEmptyTimeline
	}

	durations := make([]time.Duration, len(built))
	var size image.Point
	for i, b := range built {
		durations[i] = b.Duration()
		s := b.Size()
		size.X = max(size.X, s.X)
		size.Y = max(size.Y, s.Y)
	}
	layout := Arrange(durations, crossfade)

	track, err := concatAudio(built, layout)
	if err != nil {
		return nil, fmt.Errorf("composite audio: %w", err)
	}

	c.logger.Info().
		Int("clips", len(built)).
		Dur("duration", layout.Duration).
		Dur("crossfade", crossfade).
		Int("width", size.X).
		Int("height", size.Y).
		Msg("timeline composited")

	return &Composite{clips: built, layout: layout, size: size, audio: track}, nil
}

// concatAudio joins each clip's audio for its visible span. Clips without
// audio contribute silence; nil is returned when no clip has audio.
func concatAudio(built []*clips.Built, layout Layout) (*audio.Track, error) {
	hasAudio := false
	for _, b := range built {
		if b.Audio != nil {
			hasAudio = true
			break
		}
	}
	if !hasAudio {
		return nil, nil
	}

	parts := make([]*audio.Track, len(built))
	for i, b := range built {
		span := layout.Visible(i, b.Duration())
		if b.Audio == nil {
			parts[i] = audio.Silence(span)
			continue
		}
		parts[i] = b.Audio.Truncate(span).PadTo(span)
	}
	return audio.Concat(parts...)
}

func (c *Composite) Size() image.Point       { return c.size }
func (c *Composite) Duration() time.Duration { return c.layout.Duration }

// Audio returns the concatenated native audio, nil when no clip has any
func (c *Composite) Audio() *audio.Track { return c.audio }

// Frame renders the composite at t. During a crossfade the incoming clip is
// drawn over the outgoing one with opacity rising linearly from 0 to 1.
func (c *Composite) Frame(t time.Duration) (*image.RGBA, error) {
	t = media.Clamp(t, c.layout.Duration)
	canvas := media.Blank(c.size)

	drawn := 0
	for i, clip := range c.clips {
		start := c.layout.Offsets[i]
		if t < start || t >= start+clip.Duration() {
			continue
		}
		img, err := clip.Frame(t - start)
		if err != nil {
			return nil, fmt.Errorf("clip %d frame at %v: %w", i, t-start, err)
		}

		alpha := 1.0
		if drawn > 0 && i > 0 && c.layout.Overlaps[i-1] > 0 {
			alpha = float64(t-start) / float64(c.layout.Overlaps[i-1])
		}
		c.blend(canvas, img, alpha, drawn == 0)
		drawn++
	}
	return canvas, nil
}

func (c *Composite) blend(canvas, img *image.RGBA, alpha float64, base bool) {
	sz := img.Bounds().Size()
	at := image.Pt((c.size.X-sz.X)/2, (c.size.Y-sz.Y)/2)
	r := image.Rectangle{Min: at, Max: at.Add(sz)}

	switch {
	case base || alpha >= 1:
		draw.Draw(canvas, r, img, img.Bounds().Min, draw.Over)
	case alpha > 0:
		mask := image.NewUniform(color.Alpha{A: uint8(math.Round(alpha * 255))})
		draw.DrawMask(canvas, r, img, img.Bounds().Min, mask, image.Point{}, draw.Over)
	}
}

// Close releases every clip
func (c *Composite) Close() error {
	var errs []error
	for _, clip := range c.clips {
		if err := clip.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
