package gesture

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Blend mixes two hex colours in RGB space. Unparseable input yields from.
func Blend(from, to string, f float64) string {
	a, err := colorful.Hex(from)
	if err != nil {
		return from
	}
	b, err := colorful.Hex(to)
	if err != nil {
		return from
	}
	return a.BlendRgb(b, clamp(f, 0, 1)).Clamped().Hex()
}

// Fade approximates alpha by blending fg toward bg; alpha 1 is fully fg.
func Fade(fg, bg string, alpha float64) string {
	return Blend(bg, fg, alpha)
}

// Darker reduces the lightness of a hex colour by f in [0,1].
func Darker(hex string, f float64) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return hex
	}
	h, s, l := c.Hsl()
	return colorful.Hsl(h, s, clamp(l*(1-f), 0, 1)).Clamped().Hex()
}
