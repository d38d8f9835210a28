package overlays

import (
	"image"
	"strings"
)

// Anchor is the placement of a text overlay relative to the frame
type Anchor int

// Anchors. The zero value is AnchorBottom, which is also what any
// unrecognized name resolves to.
const (
	AnchorBottom Anchor = iota
	AnchorTop
	AnchorCenter
	AnchorTopLeft
	AnchorTopRight
	AnchorBottomLeft
	AnchorBottomRight
)

var anchorNames = map[Anchor]string{
	AnchorBottom:      "bottom",
	AnchorTop:         "top",
	AnchorCenter:      "center",
	AnchorTopLeft:     "top-left",
	AnchorTopRight:    "top-right",
	AnchorBottomLeft:  "bottom-left",
	AnchorBottomRight: "bottom-right",
}

// short corner codes accepted alongside the full names
var anchorAliases = map[string]Anchor{
	"tl": AnchorTopLeft,
	"tr": AnchorTopRight,
	"bl": AnchorBottomLeft,
	"br": AnchorBottomRight,
}

// Anchors lists every anchor in declaration order
func Anchors() []Anchor {
	return []Anchor{AnchorBottom, AnchorTop, AnchorCenter, AnchorTopLeft, AnchorTopRight, AnchorBottomLeft, AnchorBottomRight}
}

// ParseAnchor resolves a position name case-insensitively. Full names,
// underscore spellings and the TL/TR/BL/BR codes are accepted; anything else
// falls back to AnchorBottom.
func ParseAnchor(s string) Anchor {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if a, ok := anchorAliases[key]; ok {
		return a
	}
	for a, name := range anchorNames {
		if name == key {
			return a
		}
	}
	return AnchorBottom
}

func (a Anchor) String() string {
	if name, ok := anchorNames[a]; ok {
		return name
	}
	return anchorNames[AnchorBottom]
}

func (a Anchor) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText never fails; unknown names become AnchorBottom
func (a *Anchor) UnmarshalText(b []byte) error {
	*a = ParseAnchor(string(b))
	return nil
}

// Place returns the top-left corner of an rw×rh backdrop inside a w×h frame
func Place(a Anchor, w, h, rw, rh, pad int) image.Point {
	switch a {
	case AnchorTop:
		return image.Pt(half(w-rw), pad)
	case AnchorCenter:
		return image.Pt(half(w-rw), half(h-rh))
	case AnchorTopLeft:
		return image.Pt(pad, pad)
	case AnchorTopRight:
		return image.Pt(w-rw-pad, pad)
	case AnchorBottomLeft:
		return image.Pt(pad, h-rh-pad)
	case AnchorBottomRight:
		return image.Pt(w-rw-pad, h-rh-pad)
	default:
		return image.Pt(half(w-rw), h-rh-pad)
	}
}

// half floors n/2, also for oversized backdrops where n is negative
func half(n int) int {
	if n >= 0 {
		return n / 2
	}
	return -((-n + 1) / 2)
}
