package timeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/clips"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/media/mediatest"
)

func buildAll(t *testing.T, sources map[string]*mediatest.Source, order ...string) []*clips.Built {
	t.Helper()
	b := clips.NewBuilder(zerolog.Nop(), mediatest.NewDecoder(sources), nil)
	cfg := media.RenderConfig{Height: 0, FPS: 30}
	out := make([]*clips.Built, 0, len(order))
	for _, p := range order {
		built, err := b.Build(context.Background(), clips.NewSpec(p), cfg)
		if err != nil {
			t.Fatalf("Build(%s): %v", p, err)
		}
		out = append(out, built)
	}
	return out
}

func within(got, want, tol uint8) bool {
	if got > want {
		return got-want <= tol
	}
	return want-got <= tol
}

func TestArrange(t *testing.T) {
	s := time.Second
	tests := []struct {
		name      string
		durations []time.Duration
		crossfade time.Duration
		want      time.Duration
		offsets   []time.Duration
	}{
		{"two clips with crossfade", []time.Duration{10 * s, 8 * s}, s, 17 * s, []time.Duration{0, 9 * s}},
		{"no crossfade", []time.Duration{10 * s, 8 * s}, 0, 18 * s, []time.Duration{0, 10 * s}},
		{"single clip", []time.Duration{4 * s}, s, 4 * s, []time.Duration{0}},
		{"three clips", []time.Duration{3 * s, 3 * s, 3 * s}, s / 2, 8 * s, []time.Duration{0, 2500 * time.Millisecond, 5 * s}},
		{"short clip clamps overlap", []time.Duration{5 * s, s / 2, 5 * s}, s, 9500 * time.Millisecond, []time.Duration{0, 4500 * time.Millisecond, 4500 * time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Arrange(tt.durations, tt.crossfade)
			if l.Duration != tt.want {
				t.Errorf("duration = %v, want %v", l.Duration, tt.want)
			}
			for i, off := range tt.offsets {
				if l.Offsets[i] != off {
					t.Errorf("offset[%d] = %v, want %v", i, l.Offsets[i], off)
				}
			}
			for i, ov := range l.Overlaps {
				if ov < 0 {
					t.Errorf("overlap[%d] negative: %v", i, ov)
				}
			}
		})
	}
}

func TestComposite_Empty(t *testing.T) {
	c := NewCompositor(zerolog.Nop())
	if _, err := c.Composite(nil, time.Second); !errors.Is(err, media.ErrEmptyTimeline) {
		t.Fatalf("expected ErrEmptyTimeline, got %v", err)
	}
}

func TestComposite_TenAndEightWithCrossfade(t *testing.T) {
	sources := map[string]*mediatest.Source{
		"a.mp4": mediatest.NewSource(16, 16, 10*time.Second),
		"b.mp4": mediatest.NewSource(16, 16, 8*time.Second),
	}
	comp, err := NewCompositor(zerolog.Nop()).Composite(buildAll(t, sources, "a.mp4", "b.mp4"), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer comp.Close()

	if comp.Duration() != 17*time.Second {
		t.Fatalf("duration = %v, want 17s", comp.Duration())
	}
	if n := media.FrameCount(comp.Duration(), 30); n != 510 {
		t.Fatalf("frames = %d, want 510", n)
	}
}

func TestComposite_CrossfadeRamp(t *testing.T) {
	a := mediatest.NewSource(8, 8, 2*time.Second)
	b := mediatest.NewSource(8, 8, 2*time.Second)
	b.Blue = 200
	sources := map[string]*mediatest.Source{"a.mp4": a, "b.mp4": b}

	comp, err := NewCompositor(zerolog.Nop()).Composite(buildAll(t, sources, "a.mp4", "b.mp4"), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer comp.Close()

	blueAt := func(at time.Duration) uint8 {
		img, err := comp.Frame(at)
		if err != nil {
			t.Fatalf("Frame(%v): %v", at, err)
		}
		return img.RGBAAt(4, 4).B
	}

	if got := blueAt(500 * time.Millisecond); got != 0 {
		t.Errorf("before the crossfade blue = %d, want 0", got)
	}
	if got := blueAt(time.Second); got != 0 {
		t.Errorf("incoming clip must start transparent, blue = %d", got)
	}
	if got := blueAt(1500 * time.Millisecond); !within(got, 100, 2) {
		t.Errorf("mid crossfade blue = %d, want ~100", got)
	}
	if got := blueAt(1900 * time.Millisecond); !within(got, 180, 2) {
		t.Errorf("late crossfade blue = %d, want ~180", got)
	}
	if got := blueAt(2500 * time.Millisecond); got != 200 {
		t.Errorf("after crossfade blue = %d, want 200", got)
	}
}

func TestComposite_ZeroCrossfadeIsSequential(t *testing.T) {
	a := mediatest.NewSource(8, 8, 2*time.Second)
	b := mediatest.NewSource(8, 8, 3*time.Second)
	b.Blue = 200
	sources := map[string]*mediatest.Source{"a.mp4": a, "b.mp4": b}

	comp, err := NewCompositor(zerolog.Nop()).Composite(buildAll(t, sources, "a.mp4", "b.mp4"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer comp.Close()

	if comp.Duration() != 5*time.Second {
		t.Fatalf("duration = %v, want 5s", comp.Duration())
	}
	last, _ := comp.Frame(1999 * time.Millisecond)
	first, _ := comp.Frame(2 * time.Second)
	if last.RGBAAt(0, 0).B != 0 || first.RGBAAt(0, 0).B != 200 {
		t.Fatal("cut between clips must be hard")
	}
	if got := mediatest.Index(first, image.Pt(0, 0)); got != 0 {
		t.Fatalf("second clip starts at native frame %d", got)
	}
}

func TestComposite_CentersSmallerClips(t *testing.T) {
	a := mediatest.NewSource(64, 36, time.Second)
	b := mediatest.NewSource(32, 36, time.Second)
	b.Blue = 255
	sources := map[string]*mediatest.Source{"a.mp4": a, "b.mp4": b}

	comp, err := NewCompositor(zerolog.Nop()).Composite(buildAll(t, sources, "a.mp4", "b.mp4"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer comp.Close()

	if comp.Size() != image.Pt(64, 36) {
		t.Fatalf("canvas = %v", comp.Size())
	}
	img, _ := comp.Frame(1500 * time.Millisecond)
	if img.Bounds().Size() != image.Pt(64, 36) {
		t.Fatalf("frame size = %v", img.Bounds().Size())
	}
	if c := img.RGBAAt(2, 18); c.B != 0 || c.A != 255 {
		t.Errorf("letterbox pixel = %v, want opaque black", c)
	}
	if c := img.RGBAAt(32, 18); c.B != 255 {
		t.Errorf("center pixel = %v, want clip content", c)
	}
}

func TestComposite_Audio(t *testing.T) {
	a := mediatest.NewSource(8, 8, 2*time.Second).WithAudio(0.5)
	b := mediatest.NewSource(8, 8, 2*time.Second)
	sources := map[string]*mediatest.Source{"a.mp4": a, "b.mp4": b}

	comp, err := NewCompositor(zerolog.Nop()).Composite(buildAll(t, sources, "a.mp4", "b.mp4"), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer comp.Close()

	tr := comp.Audio()
	if tr == nil {
		t.Fatal("expected composite audio")
	}
	if tr.Duration() != 3*time.Second {
		t.Fatalf("audio duration = %v, want 3s", tr.Duration())
	}
	// clip a is audible for its visible second, then clip b contributes silence
	if tr.Samples[0] != 0.5 {
		t.Errorf("head sample = %v", tr.Samples[0])
	}
	if tail := tr.Slice(1100*time.Millisecond, 3*time.Second); tail.Samples[0] != 0 || tail.Samples[len(tail.Samples)-1] != 0 {
		t.Errorf("silent clip must contribute silence")
	}

	silent := map[string]*mediatest.Source{
		"x.mp4": mediatest.NewSource(8, 8, time.Second),
		"y.mp4": mediatest.NewSource(8, 8, time.Second),
	}
	quiet, err := NewCompositor(zerolog.Nop()).Composite(buildAll(t, silent, "x.mp4", "y.mp4"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer quiet.Close()
	if quiet.Audio() != nil {
		t.Fatal("composite of silent clips must have no audio")
	}
}

func TestComposite_CloseReleasesClips(t *testing.T) {
	a := mediatest.NewSource(8, 8, time.Second)
	b := mediatest.NewSource(8, 8, time.Second)
	sources := map[string]*mediatest.Source{"a.mp4": a, "b.mp4": b}

	comp, err := NewCompositor(zerolog.Nop()).Composite(buildAll(t, sources, "a.mp4", "b.mp4"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := comp.Close(); err != nil {
		t.Fatal(err)
	}
	if !a.Closed() || !b.Closed() {
		t.Fatal("all sources must be released")
	}
}
