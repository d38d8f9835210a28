package clips

import (
	"time"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/overlays"
)

// Spec describes one timeline entry. Start and End are seconds into the
// source; a nil End means the end of the source.
type Spec struct {
	Path       string          `yaml:"path" json:"path"`
	Start      float64         `yaml:"start,omitempty" json:"start"`
	End        *float64        `yaml:"end,omitempty" json:"end,omitempty"`
	Text       string          `yaml:"text,omitempty" json:"text"`
	TextAnchor overlays.Anchor `yaml:"text_anchor,omitempty" json:"text_anchor"`
	TextScale  float64         `yaml:"text_scale,omitempty" json:"text_scale"`
}

// NewSpec returns an untrimmed, caption-less spec for path
func NewSpec(path string) Spec {
	return Spec{
		Path:       path,
		TextAnchor: overlays.AnchorBottom,
		TextScale:  overlays.DefaultScale,
	}
}

// Scale returns the caption scale, defaulting non-positive values
func (s Spec) Scale() float64 {
	if s.TextScale <= 0 {
		return overlays.DefaultScale
	}
	return s.TextScale
}

// EndAt returns a pointer for the End field
func EndAt(seconds float64) *float64 {
	return &seconds
}

// Resolve clamps the clip's interval to a stream of duration d. ok is false
// when the clamped interval is empty, in which case the clip stays untrimmed
// and start, end cover the whole stream.
func Resolve(s Spec, d time.Duration) (start, end time.Duration, ok bool) {
	start = media.Seconds(s.Start)
	if start < 0 {
		start = 0
	}
	end = d
	if s.End != nil {
		if e := media.Seconds(*s.End); e < d {
			end = e
		}
	}
	if end <= start {
		return 0, d, false
	}
	return start, end, true
}

// Built is a clip ready for compositing: scaled, trimmed, captioned and
// conformed to the render frame rate. Closing it releases the source.
type Built struct {
	media.Stream

	Spec  Spec
	FPS   int
	Audio *audio.Track // nil when the source has no audio
}
