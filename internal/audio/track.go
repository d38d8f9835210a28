package audio

import (
	"fmt"
	"math"
	"time"
)

// Canonical PCM layout every decoder resamples to
const (
	SampleRate = 48000
	Channels   = 2
)

// Track is a decoded PCM track with interleaved float32 samples in [-1, 1].
// Samples beyond full scale are kept as-is; nothing in this package clips.
type Track struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// NewTrack wraps interleaved samples in the canonical layout
func NewTrack(samples []float32) *Track {
	return &Track{SampleRate: SampleRate, Channels: Channels, Samples: samples}
}

// Silence returns a zeroed track of duration d in the canonical layout
func Silence(d time.Duration) *Track {
	t := NewTrack(nil)
	t.Samples = make([]float32, t.framesFor(d)*t.Channels)
	return t
}

// Frames returns the number of sample frames (one sample per channel)
func (t *Track) Frames() int {
	if t == nil || t.Channels == 0 {
		return 0
	}
	return len(t.Samples) / t.Channels
}

// Duration returns the playback length of the track
func (t *Track) Duration() time.Duration {
	if t == nil || t.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(t.Frames()) / float64(t.SampleRate) * float64(time.Second))
}

func (t *Track) framesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(t.SampleRate)))
}

// Slice returns the samples in [from, to) as a new track sharing no memory
// with t. Bounds are clamped to the track.
func (t *Track) Slice(from, to time.Duration) *Track {
	start := min(t.framesFor(from), t.Frames())
	end := min(t.framesFor(to), t.Frames())
	if end < start {
		end = start
	}
	out := &Track{SampleRate: t.SampleRate, Channels: t.Channels}
	out.Samples = append([]float32(nil), t.Samples[start*t.Channels:end*t.Channels]...)
	return out
}

// Truncate returns the first d of the track. A track shorter than d is
// returned whole; it is never padded or repeated.
func (t *Track) Truncate(d time.Duration) *Track {
	return t.Slice(0, d)
}

// Gain returns a copy with every sample multiplied by g
func (t *Track) Gain(g float64) *Track {
	out := &Track{SampleRate: t.SampleRate, Channels: t.Channels, Samples: make([]float32, len(t.Samples))}
	gf := float32(g)
	for i, s := range t.Samples {
		out.Samples[i] = s * gf
	}
	return out
}

// PadTo returns a copy extended with silence up to d. Longer tracks are
// returned unchanged in length.
func (t *Track) PadTo(d time.Duration) *Track {
	want := t.framesFor(d) * t.Channels
	out := &Track{SampleRate: t.SampleRate, Channels: t.Channels}
	out.Samples = make([]float32, max(want, len(t.Samples)))
	copy(out.Samples, t.Samples)
	return out
}

// Overlay sums other onto a copy of t starting at sample zero. Samples of
// other past the end of t are dropped.
func (t *Track) Overlay(other *Track) (*Track, error) {
	if err := t.compatible(other); err != nil {
		return nil, err
	}
	out := &Track{SampleRate: t.SampleRate, Channels: t.Channels, Samples: append([]float32(nil), t.Samples...)}
	n := min(len(out.Samples), len(other.Samples))
	for i := 0; i < n; i++ {
		out.Samples[i] += other.Samples[i]
	}
	return out, nil
}

// Concat joins tracks back to back. All tracks must share one layout.
func Concat(tracks ...*Track) (*Track, error) {
	if len(tracks) == 0 {
		return nil, nil
	}
	total := 0
	for _, tr := range tracks {
		if err := tracks[0].compatible(tr); err != nil {
			return nil, err
		}
		total += len(tr.Samples)
	}
	out := &Track{SampleRate: tracks[0].SampleRate, Channels: tracks[0].Channels, Samples: make([]float32, 0, total)}
	for _, tr := range tracks {
		out.Samples = append(out.Samples, tr.Samples...)
	}
	return out, nil
}

func (t *Track) compatible(other *Track) error {
	if other == nil {
		return fmt.Errorf("audio: nil track")
	}
	if t.SampleRate != other.SampleRate || t.Channels != other.Channels {
		return fmt.Errorf("audio: layout mismatch %dHz/%dch vs %dHz/%dch",
			t.SampleRate, t.Channels, other.SampleRate, other.Channels)
	}
	return nil
}
