package clips

import (
	"image"
	"image/draw"
	"math"
	"time"

	"github.com/nfnt/resize"

	"github.com/keagan/capforge/internal/media"
)

// ScaledSize returns the frame size of a w×h source scaled to height,
// keeping the aspect ratio
func ScaledSize(w, h, height int) image.Point {
	if h <= 0 || height <= 0 || h == height {
		return image.Pt(w, h)
	}
	width := int(math.Round(float64(w) * float64(height) / float64(h)))
	if width < 1 {
		width = 1
	}
	return image.Pt(width, height)
}

// scaled resizes every frame of its source
type scaled struct {
	media.Stream
	size image.Point
}

func newScaled(src media.Stream, size image.Point) *scaled {
	return &scaled{Stream: src, size: size}
}

func (s *scaled) Size() image.Point { return s.size }

func (s *scaled) Frame(t time.Duration) (*image.RGBA, error) {
	img, err := s.Stream.Frame(t)
	if err != nil {
		return nil, err
	}
	out := resize.Resize(uint(s.size.X), uint(s.size.Y), img, resize.Bilinear)
	return media.ToRGBA(out), nil
}

// trimmed exposes the [start, end) window of its source
type trimmed struct {
	media.Stream
	start, end time.Duration
}

func newTrimmed(src media.Stream, start, end time.Duration) *trimmed {
	return &trimmed{Stream: src, start: start, end: end}
}

func (s *trimmed) Duration() time.Duration { return s.end - s.start }

func (s *trimmed) Frame(t time.Duration) (*image.RGBA, error) {
	return s.Stream.Frame(s.start + media.Clamp(t, s.Duration()))
}

// overlaid composites a static image over every frame
type overlaid struct {
	media.Stream
	overlay *image.RGBA
}

func newOverlaid(src media.Stream, overlay *image.RGBA) *overlaid {
	return &overlaid{Stream: src, overlay: overlay}
}

func (s *overlaid) Frame(t time.Duration) (*image.RGBA, error) {
	img, err := s.Stream.Frame(t)
	if err != nil {
		return nil, err
	}
	out := media.Clone(img)
	draw.Draw(out, out.Bounds(), s.overlay, image.Point{}, draw.Over)
	return out, nil
}

// conformed snaps frame requests to the fps grid so the stream changes
// content only on frame boundaries of the render rate
type conformed struct {
	media.Stream
	fps int
}

func newConformed(src media.Stream, fps int) *conformed {
	return &conformed{Stream: src, fps: fps}
}

func (s *conformed) Frame(t time.Duration) (*image.RGBA, error) {
	t = media.Clamp(t, s.Duration())
	return s.Stream.Frame(media.FrameTime(media.FrameIndex(t, s.fps), s.fps))
}
