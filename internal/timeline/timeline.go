// Package timeline holds the ordered clip list and stitches built clips into
// one continuous stream.
package timeline

import (
	"fmt"

	"github.com/keagan/capforge/internal/clips"
)

// Timeline is an ordered list of clip specs; insertion order is render order
type Timeline struct {
	Clips []clips.Spec `yaml:"clips" json:"clips"`
}

// Len returns the number of clips
func (t *Timeline) Len() int {
	return len(t.Clips)
}

// Add appends an untrimmed, caption-less clip for path and returns its index
func (t *Timeline) Add(path string) int {
	t.Clips = append(t.Clips, clips.NewSpec(path))
	return len(t.Clips) - 1
}

// AddSpec appends spec as is and returns its index
func (t *Timeline) AddSpec(spec clips.Spec) int {
	t.Clips = append(t.Clips, spec)
	return len(t.Clips) - 1
}

// Remove deletes the clip at index
func (t *Timeline) Remove(index int) error {
	if err := t.check(index); err != nil {
		return err
	}
	t.Clips = append(t.Clips[:index], t.Clips[index+1:]...)
	return nil
}

// Move shifts the clip at index by delta positions, stopping at either end,
// and returns its new index. A delta of ±1 swaps it with its neighbour.
func (t *Timeline) Move(index, delta int) (int, error) {
	if err := t.check(index); err != nil {
		return index, err
	}
	to := index + delta
	if to < 0 {
		to = 0
	}
	if to > len(t.Clips)-1 {
		to = len(t.Clips) - 1
	}
	if to == index {
		return index, nil
	}
	spec := t.Clips[index]
	if to < index {
		copy(t.Clips[to+1:index+1], t.Clips[to:index])
	} else {
		copy(t.Clips[index:to], t.Clips[index+1:to+1])
	}
	t.Clips[to] = spec
	return to, nil
}

// Update replaces the clip at index. An empty Path keeps the existing path.
func (t *Timeline) Update(index int, spec clips.Spec) error {
	if err := t.check(index); err != nil {
		return err
	}
	if spec.Path == "" {
		spec.Path = t.Clips[index].Path
	}
	t.Clips[index] = spec
	return nil
}

// Get returns the clip at index
func (t *Timeline) Get(index int) (clips.Spec, error) {
	if err := t.check(index); err != nil {
		return clips.Spec{}, err
	}
	return t.Clips[index], nil
}

// Clone returns a deep copy safe to render while the original is edited
func (t *Timeline) Clone() *Timeline {
	out := &Timeline{Clips: make([]clips.Spec, len(t.Clips))}
	for i, spec := range t.Clips {
		if spec.End != nil {
			spec.End = clips.EndAt(*spec.End)
		}
		out.Clips[i] = spec
	}
	return out
}

// IndexError reports a clip index outside the timeline
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("clip index %d out of range [0, %d)", e.Index, e.Len)
}

func (t *Timeline) check(index int) error {
	if index < 0 || index >= len(t.Clips) {
		return &IndexError{Index: index, Len: len(t.Clips)}
	}
	return nil
}
