package overlays

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultScale is the text height as a fraction of the frame height
	DefaultScale = 0.06
	// MinFontSize is the smallest font size in pixels regardless of scale
	MinFontSize = 16
	// PadRatio is the backdrop padding as a fraction of the frame height
	PadRatio = 0.02
)

var (
	backdropColor = color.NRGBA{R: 0, G: 0, B: 0, A: 140}
	textColor     = color.NRGBA{R: 255, G: 255, B: 255, A: 230}
)

// Renderer draws captions onto transparent frame-sized images
type Renderer struct {
	logger   zerolog.Logger
	fontPath string

	mu    sync.Mutex
	once  sync.Once
	font  *opentype.Font
	faces map[int]font.Face
}

// NewRenderer creates a renderer preferring the given TTF file or name.
// An empty fontPath uses DefaultFont.
func NewRenderer(logger zerolog.Logger, fontPath string) *Renderer {
	if fontPath == "" {
		fontPath = DefaultFont
	}
	return &Renderer{
		logger:   logger.With().Str("component", "overlays").Logger(),
		fontPath: fontPath,
		faces:    make(map[int]font.Face),
	}
}

// FontSize returns the pixel size used for a frame of height h
func FontSize(h int, scale float64) int {
	if scale <= 0 {
		scale = DefaultScale
	}
	size := int(math.Round(float64(h) * scale))
	if size < MinFontSize {
		return MinFontSize
	}
	return size
}

// Padding returns the backdrop padding for a frame of height h
func Padding(h int) int {
	return int(float64(h) * PadRatio)
}

// Render returns a w×h transparent image holding text on a rounded
// translucent backdrop at the anchor. ok is false when text is empty, in
// which case nothing is drawn and the caller should leave the frame as is.
func (r *Renderer) Render(w, h int, text string, scale float64, anchor Anchor) (img *image.RGBA, ok bool) {
	if text == "" || w <= 0 || h <= 0 {
		return nil, false
	}

	face := r.face(FontSize(h, scale))
	pad := Padding(h)

	r.mu.Lock()
	bounds, _ := font.BoundString(face, text)
	r.mu.Unlock()
	tw := (bounds.Max.X - bounds.Min.X).Ceil()
	th := (bounds.Max.Y - bounds.Min.Y).Ceil()

	rw, rh := tw+2*pad, th+2*pad
	at := Place(anchor, w, h, rw, rh, pad)

	img = image.NewRGBA(image.Rect(0, 0, w, h))
	drawBackdrop(img, image.Rect(at.X, at.Y, at.X+rw, at.Y+rh), pad)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(at.X+pad) - bounds.Min.X,
			Y: fixed.I(at.Y+pad) - bounds.Min.Y,
		},
	}
	r.mu.Lock()
	d.DrawString(text)
	r.mu.Unlock()

	return img, true
}

func drawBackdrop(img *image.RGBA, rect image.Rectangle, radius int) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	filler := rasterx.NewFiller(w, h, scanner)
	filler.SetColor(backdropColor)

	minX, minY := float64(rect.Min.X), float64(rect.Min.Y)
	maxX, maxY := float64(rect.Max.X), float64(rect.Max.Y)
	if radius > 0 {
		rad := float64(radius)
		rasterx.AddRoundRect(minX, minY, maxX, maxY, rad, rad, 0, rasterx.RoundGap, filler)
	} else {
		rasterx.AddRect(minX, minY, maxX, maxY, 0, filler)
	}
	filler.Draw()
}
