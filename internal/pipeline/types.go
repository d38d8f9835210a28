package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/timeline"
	"github.com/keagan/capforge/pkg/util"
)

// Project is everything needed for one render: the ordered clips plus the
// render and audio settings. On disk it is a YAML job file.
type Project struct {
	Output string             `yaml:"output,omitempty" json:"output,omitempty"`
	Render media.RenderConfig `yaml:"render" json:"render"`
	Audio  audio.Config       `yaml:"audio" json:"audio"`

	timeline.Timeline `yaml:",inline"`
}

// NewProject returns an empty project with the given settings
func NewProject(render media.RenderConfig, ac audio.Config) *Project {
	return &Project{Render: render, Audio: ac}
}

// Clone returns a deep copy that shares nothing with p
func (p *Project) Clone() *Project {
	out := *p
	out.Timeline = *p.Timeline.Clone()
	return &out
}

// LoadProject reads a YAML job file. Unset render and audio keys take the
// stock defaults, and relative media paths resolve against the job file's
// directory.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	return parseProject(path, data)
}

func parseProject(path string, data []byte) (*Project, error) {
	p := NewProject(media.DefaultRenderConfig(), audio.Config{Gain: audio.DefaultGain})
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse job file %s: %w", path, err)
	}
	if err := p.Render.Validate(); err != nil {
		return nil, err
	}

	for i := range p.Clips {
		if p.Clips[i].Path == "" {
			return nil, fmt.Errorf("job file %s: clip %d has no path", path, i)
		}
		p.Clips[i].Path = util.ResolvePath(path, p.Clips[i].Path)
	}
	p.Audio.BackgroundPath = util.ResolvePath(path, p.Audio.BackgroundPath)
	p.Output = util.ResolvePath(path, p.Output)
	return p, nil
}
