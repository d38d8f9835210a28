package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/media/mediatest"
)

var cfg30 = media.RenderConfig{Height: 36, FPS: 30}

// entries lists the names in dir
func entries(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

func TestExport_WritesDestination(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.mp4")
	src := mediatest.NewSource(64, 36, 2*time.Second).WithAudio(0.25)
	sink := &mediatest.Sink{}

	var calls, lastDone, lastTotal int
	exp := New(zerolog.Nop(), sink)
	exp.OnProgress(func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	})

	res, err := exp.Export(context.Background(), src, src.Track, cfg30, dest)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Frames != 60 || sink.Frames != 60 {
		t.Fatalf("frames = %d (sink %d), want 60", res.Frames, sink.Frames)
	}
	if calls != 60 || lastDone != 60 || lastTotal != 60 {
		t.Fatalf("progress calls=%d last=%d/%d", calls, lastDone, lastTotal)
	}
	if res.Bytes != 60 {
		t.Fatalf("bytes = %d", res.Bytes)
	}
	if got := entries(t, dir); len(got) != 1 || got[0] != "out.mp4" {
		t.Fatalf("dir contents = %v, want only out.mp4", got)
	}

	job := sink.Jobs[0]
	if job.FPS != 30 || job.Width != 64 || job.Height != 36 {
		t.Fatalf("job = %+v", job)
	}
	if !strings.HasSuffix(job.Path, ".mp4") || job.Path == dest {
		t.Fatalf("encode must target a temp file, got %s", job.Path)
	}
	if job.Audio == nil || job.Audio.Duration() != 2*time.Second {
		t.Fatal("audio must be passed through")
	}
}

func TestExport_TruncatesLongAudio(t *testing.T) {
	dir := t.TempDir()
	src := mediatest.NewSource(8, 8, time.Second)
	long := mediatest.NewSource(8, 8, 3*time.Second).WithAudio(0.5)
	sink := &mediatest.Sink{}

	if _, err := New(zerolog.Nop(), sink).Export(context.Background(), src, long.Track, cfg30, filepath.Join(dir, "out.mp4")); err != nil {
		t.Fatal(err)
	}
	if d := sink.Jobs[0].Audio.Duration(); d != time.Second {
		t.Fatalf("audio duration = %v, want 1s", d)
	}
}

func TestExport_EncodeFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.mp4")
	sink := &mediatest.Sink{Err: errors.New("codec exploded"), FailAfter: 10}

	_, err := New(zerolog.Nop(), sink).Export(context.Background(), mediatest.NewSource(8, 8, 2*time.Second), nil, cfg30, dest)
	if !errors.Is(err, media.ErrEncodeFailure) {
		t.Fatalf("expected ErrEncodeFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "codec exploded") {
		t.Fatalf("reason must surface verbatim, got %q", err)
	}
	if got := entries(t, dir); len(got) != 0 {
		t.Fatalf("dir should be empty, has %v", got)
	}
}

func TestExport_FailureKeepsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(dest, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := &mediatest.Sink{Err: errors.New("disk full")}

	if _, err := New(zerolog.Nop(), sink).Export(context.Background(), mediatest.NewSource(8, 8, time.Second), nil, cfg30, dest); err == nil {
		t.Fatal("expected failure")
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "previous" {
		t.Fatalf("existing output was clobbered: %q, %v", data, err)
	}
}

func TestExport_Cancellation(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exp := New(zerolog.Nop(), &mediatest.Sink{})
	exp.OnProgress(func(done, _ int) {
		if done == 5 {
			cancel()
		}
	})

	_, err := exp.Export(ctx, mediatest.NewSource(8, 8, 2*time.Second), nil, cfg30, dest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := entries(t, dir); len(got) != 0 {
		t.Fatalf("cancelled export left files: %v", got)
	}
}

func TestExport_FrameErrorKeepsKind(t *testing.T) {
	dir := t.TempDir()
	src := mediatest.NewSource(8, 8, time.Second)
	src.Close() // frames now fail

	_, err := New(zerolog.Nop(), &mediatest.Sink{}).Export(context.Background(), src, nil, cfg30, filepath.Join(dir, "out.mp4"))
	if err == nil || errors.Is(err, media.ErrEncodeFailure) {
		t.Fatalf("frame errors must surface as themselves, got %v", err)
	}
	if !strings.Contains(err.Error(), "after close") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestExport_InvalidConfig(t *testing.T) {
	_, err := New(zerolog.Nop(), &mediatest.Sink{}).Export(context.Background(), mediatest.NewSource(8, 8, time.Second), nil, media.RenderConfig{FPS: 0}, filepath.Join(t.TempDir(), "x.mp4"))
	if !errors.Is(err, media.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestExport_CreatesDestinationDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "deeper", "out")
	res, err := New(zerolog.Nop(), &mediatest.Sink{}).Export(context.Background(), mediatest.NewSource(8, 8, time.Second), nil, cfg30, dest)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}
