package overlays

import (
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// DefaultFont is the preferred typeface looked up in the system font dirs
const DefaultFont = "DejaVuSans-Bold.ttf"

func fontDirs() []string {
	dirs := []string{
		"/usr/share/fonts/truetype/dejavu",
		"/usr/share/fonts/dejavu",
		"/usr/share/fonts/TTF",
		"/usr/local/share/fonts",
		"/Library/Fonts",
		"/System/Library/Fonts",
		`C:\Windows\Fonts`,
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".fonts"),
			filepath.Join(home, ".local", "share", "fonts"),
			filepath.Join(home, "Library", "Fonts"),
		)
	}
	return dirs
}

// findFont resolves name as a path first, then inside the font dirs
func findFont(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if _, err := os.Stat(name); err == nil {
		return name, true
	}
	if filepath.IsAbs(name) {
		return "", false
	}
	for _, dir := range fontDirs() {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// loadFont parses the preferred typeface, falling back to the embedded Go
// Bold font. It returns nil only if both fail to parse.
func (r *Renderer) loadFont() *opentype.Font {
	if path, ok := findFont(r.fontPath); ok {
		data, err := os.ReadFile(path)
		if err == nil {
			f, err := opentype.Parse(data)
			if err == nil {
				r.logger.Debug().Str("font", path).Msg("loaded overlay font")
				return f
			}
			r.logger.Warn().Err(err).Str("font", path).Msg("failed to parse font, using built-in")
		} else {
			r.logger.Warn().Err(err).Str("font", path).Msg("failed to read font, using built-in")
		}
	} else {
		r.logger.Debug().Str("font", r.fontPath).Msg("font not found, using built-in")
	}

	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		r.logger.Error().Err(err).Msg("built-in font unusable, using bitmap face")
		return nil
	}
	return f
}

// face returns a face of size pixels, cached per size. The bitmap face is the
// last resort and ignores size.
func (r *Renderer) face(size int) font.Face {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.once.Do(func() { r.font = r.loadFont() })

	if f, ok := r.faces[size]; ok {
		return f
	}
	var f font.Face = basicfont.Face7x13
	if r.font != nil {
		face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			r.logger.Warn().Err(err).Int("size", size).Msg("failed to build font face, using bitmap face")
		} else {
			f = face
		}
	}
	r.faces[size] = f
	return f
}
