// Package editor owns the project a user is assembling and exposes the
// entry points an editing surface calls: list edits, settings and export.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/clips"
	"github.com/keagan/capforge/internal/export"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/pipeline"
)

var (
	// ErrBusy is returned when an export is requested while one is running
	ErrBusy = errors.New("export already running")
	// ErrIndex wraps clip indexes outside the timeline
	ErrIndex = errors.New("invalid clip index")
)

// Renderer runs one export of a project snapshot
type Renderer interface {
	Export(ctx context.Context, project *pipeline.Project, dest string, progress export.ProgressFunc) (*export.Result, error)
}

// Status describes the current or most recent export
type Status struct {
	Exporting  bool      `json:"exporting"`
	Done       int       `json:"done"`
	Total      int       `json:"total"`
	Output     string    `json:"output,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	LastOutput string    `json:"last_output,omitempty"`
	LastSize   string    `json:"last_size,omitempty"`
}

// Editor serializes edits to one project. Exports render a snapshot, so
// edits made while an export runs apply to the next one.
type Editor struct {
	logger   zerolog.Logger
	renderer Renderer

	mu      sync.Mutex
	project *pipeline.Project
	status  Status

	exporting atomic.Bool
	wg        sync.WaitGroup
}

// New creates an editor over project; a nil project starts empty with the
// stock render settings
func New(logger zerolog.Logger, r Renderer, project *pipeline.Project) *Editor {
	if project == nil {
		project = pipeline.NewProject(media.DefaultRenderConfig(), audio.Config{Gain: audio.DefaultGain})
	}
	return &Editor{
		logger:   logger.With().Str("component", "editor").Logger(),
		renderer: r,
		project:  project,
	}
}

// Project returns a copy of the current project
func (e *Editor) Project() *pipeline.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.project.Clone()
}

// AddClip appends an untrimmed clip and returns its index
func (e *Editor) AddClip(path string) (int, error) {
	if path == "" {
		return 0, &media.Error{Kind: media.ErrInvalidConfig, Msg: "clip path is empty"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.project.Add(path)
	e.logger.Debug().Str("path", path).Int("index", i).Msg("clip added")
	return i, nil
}

// RemoveClip deletes the clip at index
func (e *Editor) RemoveClip(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return indexErr(e.project.Remove(index))
}

// MoveClip shifts the clip at index by delta positions, clamped to the ends
// of the timeline, and returns its new index
func (e *Editor) MoveClip(index, delta int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	to, err := e.project.Move(index, delta)
	return to, indexErr(err)
}

// UpdateClip replaces the clip at index and returns it as stored. An empty
// path keeps the current source.
func (e *Editor) UpdateClip(index int, spec clips.Spec) (clips.Spec, error) {
	if spec.TextScale < 0 {
		return clips.Spec{}, &media.Error{Kind: media.ErrInvalidConfig, Msg: fmt.Sprintf("text scale cannot be negative, got %g", spec.TextScale)}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.project.Update(index, spec); err != nil {
		return clips.Spec{}, indexErr(err)
	}
	stored, err := e.project.Get(index)
	return stored, indexErr(err)
}

// SetBackgroundMusic selects the music bed; an empty path removes it
func (e *Editor) SetBackgroundMusic(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.project.Audio.BackgroundPath = path
}

// SetMusicGain sets the music bed's linear gain
func (e *Editor) SetMusicGain(gain float64) error {
	if gain < 0 {
		return &media.Error{Kind: media.ErrInvalidConfig, Msg: fmt.Sprintf("gain cannot be negative, got %g", gain)}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.project.Audio.Gain = gain
	return nil
}

// SetRenderConfig replaces the render settings
func (e *Editor) SetRenderConfig(cfg media.RenderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.project.Render = cfg
	return nil
}

// Export renders the current project to dest and blocks until done
func (e *Editor) Export(ctx context.Context, dest string) (*export.Result, error) {
	snap, err := e.begin(dest)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, snap, dest)
}

// Start renders the current project to dest in the background. Poll Status
// for progress; Wait blocks until the export ends.
func (e *Editor) Start(ctx context.Context, dest string) error {
	snap, err := e.begin(dest)
	if err != nil {
		return err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_, _ = e.run(ctx, snap, dest)
	}()
	return nil
}

// Wait blocks until background exports have finished
func (e *Editor) Wait() {
	e.wg.Wait()
}

// Status reports the current or most recent export
func (e *Editor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Editor) begin(dest string) (*pipeline.Project, error) {
	if !e.exporting.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if dest == "" {
		dest = e.project.Output
	}
	e.status = Status{
		Exporting:  true,
		Output:     dest,
		StartedAt:  time.Now(),
		LastOutput: e.status.LastOutput,
		LastSize:   e.status.LastSize,
	}
	return e.project.Clone(), nil
}

func (e *Editor) run(ctx context.Context, snap *pipeline.Project, dest string) (*export.Result, error) {
	defer e.exporting.Store(false)

	res, err := e.renderer.Export(ctx, snap, dest, func(done, total int) {
		e.mu.Lock()
		e.status.Done, e.status.Total = done, total
		e.mu.Unlock()
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Exporting = false
	if err != nil {
		e.status.LastError = err.Error()
		e.logger.Error().Err(err).Str("output", e.status.Output).Msg("export failed")
		return nil, err
	}
	e.status.LastError = ""
	e.status.LastOutput = res.Path
	e.status.LastSize = humanize.Bytes(uint64(res.Bytes))
	e.logger.Info().
		Str("output", res.Path).
		Str("size", e.status.LastSize).
		Dur("elapsed", res.Elapsed).
		Msg("export finished")
	return res, nil
}

func indexErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrIndex, err)
}
