package media

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"
)

// Seconds converts fractional seconds to a duration
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// FrameCount returns how many frames of a fps-rate stream cover d
func FrameCount(d time.Duration, fps int) int {
	if d <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(fps)))
}

// FrameTime returns the presentation time of frame i at fps, rounded up to
// the nanosecond so that FrameIndex(FrameTime(i, fps), fps) == i.
func FrameTime(i, fps int) time.Duration {
	n := int64(i) * int64(time.Second)
	return time.Duration((n + int64(fps) - 1) / int64(fps))
}

// FrameIndex returns the index of the fps-rate frame showing at t
func FrameIndex(t time.Duration, fps int) int {
	if t <= 0 {
		return 0
	}
	return int(int64(t) * int64(fps) / int64(time.Second))
}

// Clamp limits t to the addressable range of a stream of duration d
func Clamp(t, d time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	if d > 0 && t >= d {
		return d - 1
	}
	return t
}

// Clone returns a deep copy of img
func Clone(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}

// ToRGBA returns img as *image.RGBA with its origin at zero, converting if needed
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Blank returns an opaque black frame of the given size
func Blank(size image.Point) *image.RGBA {
	out := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return out
}
