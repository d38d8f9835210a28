package overlays

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func TestParseAnchor(t *testing.T) {
	tests := []struct {
		in   string
		want Anchor
	}{
		{"top", AnchorTop},
		{"TOP", AnchorTop},
		{" center ", AnchorCenter},
		{"bottom", AnchorBottom},
		{"top-left", AnchorTopLeft},
		{"top_right", AnchorTopRight},
		{"TL", AnchorTopLeft},
		{"tr", AnchorTopRight},
		{"bl", AnchorBottomLeft},
		{"BR", AnchorBottomRight},
		{"bottom-right", AnchorBottomRight},
		{"middle", AnchorBottom},
		{"", AnchorBottom},
	}
	for _, tt := range tests {
		if got := ParseAnchor(tt.in); got != tt.want {
			t.Errorf("ParseAnchor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAnchorRoundTripText(t *testing.T) {
	for _, a := range Anchors() {
		b, err := a.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got Anchor
		if err := got.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if got != a {
			t.Errorf("round trip of %v gave %v", a, got)
		}
	}

	var cfg struct {
		Anchor Anchor `yaml:"anchor" json:"anchor"`
	}
	if err := yaml.Unmarshal([]byte("anchor: tr\n"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Anchor != AnchorTopRight {
		t.Errorf("yaml anchor = %v", cfg.Anchor)
	}
	if err := json.Unmarshal([]byte(`{"anchor":"sideways"}`), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Anchor != AnchorBottom {
		t.Errorf("json anchor = %v, want bottom fallback", cfg.Anchor)
	}
}

func TestPlace(t *testing.T) {
	const w, h, rw, rh, pad = 1000, 600, 200, 50, 10
	tests := []struct {
		anchor Anchor
		want   image.Point
	}{
		{AnchorTop, image.Pt(400, 10)},
		{AnchorCenter, image.Pt(400, 275)},
		{AnchorBottom, image.Pt(400, 540)},
		{AnchorTopLeft, image.Pt(10, 10)},
		{AnchorTopRight, image.Pt(790, 10)},
		{AnchorBottomLeft, image.Pt(10, 540)},
		{AnchorBottomRight, image.Pt(790, 540)},
	}
	for _, tt := range tests {
		if got := Place(tt.anchor, w, h, rw, rh, pad); got != tt.want {
			t.Errorf("Place(%v) = %v, want %v", tt.anchor, got, tt.want)
		}
	}

	// backdrop wider than the frame is centered with floor division
	if got := Place(AnchorTop, 100, 100, 103, 10, 0); got.X != -2 {
		t.Errorf("oversized backdrop x = %d, want -2", got.X)
	}
}

func TestFontSize(t *testing.T) {
	if got := FontSize(1080, 0.06); got != 65 {
		t.Errorf("FontSize(1080) = %d, want 65", got)
	}
	if got := FontSize(100, 0.06); got != MinFontSize {
		t.Errorf("FontSize(100) = %d, want %d", got, MinFontSize)
	}
	if got := FontSize(1000, 0); got != 60 {
		t.Errorf("FontSize with default scale = %d, want 60", got)
	}
	if got := Padding(1080); got != 21 {
		t.Errorf("Padding(1080) = %d, want 21", got)
	}
}

func TestRenderEmptyText(t *testing.T) {
	r := NewRenderer(zerolog.Nop(), "")
	if img, ok := r.Render(640, 360, "", 0.06, AnchorBottom); ok || img != nil {
		t.Fatal("empty text must not produce an overlay")
	}
}

// painted returns the bounding box of non-transparent pixels
func painted(img *image.RGBA) image.Rectangle {
	var box image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A != 0 {
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return box
}

func TestRenderPlacement(t *testing.T) {
	r := NewRenderer(zerolog.Nop(), "")
	const w, h = 640, 360

	bottom, ok := r.Render(w, h, "Hello", 0.06, AnchorBottom)
	if !ok {
		t.Fatal("expected overlay")
	}
	if bottom.Bounds() != image.Rect(0, 0, w, h) {
		t.Fatalf("overlay bounds = %v", bottom.Bounds())
	}
	box := painted(bottom)
	if box.Empty() {
		t.Fatal("nothing was drawn")
	}
	pad := Padding(h)
	if box.Max.Y > h-pad+1 || box.Min.Y < h/2 {
		t.Errorf("bottom overlay drawn at %v", box)
	}
	if mid := (box.Min.X + box.Max.X) / 2; mid < w/2-2 || mid > w/2+2 {
		t.Errorf("bottom overlay not centered, box %v", box)
	}
	if c := bottom.RGBAAt(0, 0); c.A != 0 {
		t.Errorf("corner pixel should stay transparent, got %v", c)
	}

	top, _ := r.Render(w, h, "Hello", 0.06, AnchorTopLeft)
	tb := painted(top)
	if tb.Max.Y > h/2 || tb.Max.X > w/2 {
		t.Errorf("top-left overlay drawn at %v", tb)
	}
	if tb.Min.X < pad-1 || tb.Min.Y < pad-1 {
		t.Errorf("top-left overlay ignores padding: %v", tb)
	}
}

func TestRenderHasLegibleText(t *testing.T) {
	r := NewRenderer(zerolog.Nop(), "")
	img, _ := r.Render(640, 360, "WWW", 0.1, AnchorCenter)

	var bright int
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 128 {
			bright++
		}
	}
	if bright == 0 {
		t.Fatal("expected light glyph pixels on the backdrop")
	}
}

func TestRenderFontFallback(t *testing.T) {
	r := NewRenderer(zerolog.Nop(), "/nonexistent/NoSuchFont.ttf")
	img, ok := r.Render(320, 240, "fallback", 0.06, AnchorBottom)
	if !ok || painted(img).Empty() {
		t.Fatal("missing font must fall back to the built-in face")
	}
	if r.font == nil {
		t.Fatal("expected the embedded scalable font to be loaded")
	}
}
