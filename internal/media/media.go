// Package media defines the contracts between the render pipeline and the
// codec layer: frame streams, decoded sources and the encode sink.
package media

import (
	"context"
	"image"
	"time"

	"github.com/keagan/capforge/internal/audio"
)

// Stream produces frames of a fixed size over a fixed duration.
//
// Frame returns the frame visible at t. Times before zero clamp to the first
// frame and times at or past Duration clamp to the last one. Returned frames
// are owned by the stream and must be treated as read-only; stages that
// modify pixels work on a copy.
type Stream interface {
	Size() image.Point
	Duration() time.Duration
	Frame(t time.Duration) (*image.RGBA, error)
	Close() error
}

// SourceInfo is the native metadata of a decoded file
type SourceInfo struct {
	Path     string
	Width    int
	Height   int
	Duration time.Duration
	FPS      float64
	HasAudio bool
}

// Source is an opened media file
type Source interface {
	Stream
	Info() SourceInfo
	// Audio decodes the native audio in [from, to), clamped to the source;
	// nil when the file has none
	Audio(ctx context.Context, from, to time.Duration) (*audio.Track, error)
}

// Decoder opens media files. Open fails with ErrSourceUnreadable when the
// file is missing or cannot be decoded.
type Decoder interface {
	Open(ctx context.Context, path string) (Source, error)
}

// FrameFunc pushes frames in presentation order to emit and stops at the
// first error emit returns.
type FrameFunc func(emit func(*image.RGBA) error) error

// EncodeJob is one finite frame+audio stream to write to Path
type EncodeJob struct {
	Path   string
	Width  int
	Height int
	FPS    int
	Frames FrameFunc
	Audio  *audio.Track // nil writes a video-only file
}

// Sink writes encode jobs to container files. Encode fails with
// ErrEncodeFailure on write or codec errors.
type Sink interface {
	Encode(ctx context.Context, job EncodeJob) error
}
