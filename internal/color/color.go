// Package color provides the HSV color value used by the LED panel.
//
// A Color stores hue, saturation and value on the unit interval and carries
// the red, green and blue channels derived from them. The channels are
// recomputed from the full HSV triple whenever a new Color is built, so they
// can never drift from the HSV components.
package color

import (
	"fmt"
	"math"
	"strings"
)

// Color is an immutable HSV color with derived RGB channels.
// The zero value is black.
type Color struct {
	h, s, v float64
	r, g, b float64
}

// RGB8 is a color scaled to 8-bit channels, as written to the LED hardware.
type RGB8 struct {
	R, G, B uint8
}

// String renders the triple as "r,g,b".
func (c RGB8) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// Presets
var (
	Black   = FromHSV(0, 0, 0)
	White   = FromHSV(0, 0, 1)
	Red     = FromHSV(0, 1, 1)
	Green   = FromHSV(120.0/360.0, 1, 1)
	Blue    = FromHSV(240.0/360.0, 1, 1)
	Yellow  = FromHSV(60.0/360.0, 1, 1)
	Magenta = FromHSV(300.0/360.0, 1, 1)
	Cyan    = FromHSV(0.5, 1, 1)
)

var presets = map[string]Color{
	"black":   Black,
	"white":   White,
	"red":     Red,
	"green":   Green,
	"blue":    Blue,
	"yellow":  Yellow,
	"magenta": Magenta,
	"cyan":    Cyan,
}

// Named returns the preset with the given (case-insensitive) name.
func Named(name string) (Color, bool) {
	c, ok := presets[strings.ToLower(name)]
	return c, ok
}

// PresetNames returns the names accepted by Named.
func PresetNames() []string {
	return []string{"black", "white", "red", "green", "blue", "yellow", "magenta", "cyan"}
}

// FromHSV builds a Color from components on the unit interval.
//
// Hue wraps modulo 1 (1.0 is the same as 0.0, -0.25 is 0.75). Saturation
// and value are clamped to [0,1]. NaN or infinite components never panic;
// they produce a Color for which Valid reports false.
func FromHSV(hue, saturation, value float64) Color {
	c := Color{
		h: wrapHue(hue),
		s: clamp01(saturation),
		v: clamp01(value),
	}
	c.r, c.g, c.b = hsvToRGB(c.h, c.s, c.v)
	return c
}

// FromDegrees builds a Color from bridge scales: hue in degrees [0,360],
// saturation and value in percent [0,100].
func FromDegrees(hue, saturation, value float64) Color {
	return FromHSV(hue/360, saturation/100, value/100)
}

// FromRGB builds a Color from unit-interval RGB channels.
// For gray inputs the hue is reported as 0.
func FromRGB(r, g, b float64) Color {
	r, g, b = clamp01(r), clamp01(g), clamp01(b)
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	var h, s float64
	if max > 0 {
		s = delta / max
	}
	if delta > 0 {
		switch max {
		case r:
			h = (g - b) / delta
		case g:
			h = 2 + (b-r)/delta
		default:
			h = 4 + (r-g)/delta
		}
		h /= 6
	}
	return FromHSV(h, s, max)
}

// Hue returns the hue in [0,1).
func (c Color) Hue() float64 { return c.h }

// Saturation returns the saturation in [0,1].
func (c Color) Saturation() float64 { return c.s }

// Value returns the value (brightness) in [0,1].
func (c Color) Value() float64 { return c.v }

// RGB returns the derived channels in [0,1].
func (c Color) RGB() (r, g, b float64) { return c.r, c.g, c.b }

// RGB8 scales the channels to 0-255, rounding half away from zero.
func (c Color) RGB8() RGB8 {
	return RGB8{R: to8(c.r), G: to8(c.g), B: to8(c.b)}
}

// WithHue returns a copy with the hue replaced.
func (c Color) WithHue(h float64) Color { return FromHSV(h, c.s, c.v) }

// WithSaturation returns a copy with the saturation replaced.
func (c Color) WithSaturation(s float64) Color { return FromHSV(c.h, s, c.v) }

// WithValue returns a copy with the value replaced.
func (c Color) WithValue(v float64) Color { return FromHSV(c.h, c.s, v) }

// Valid reports whether every component is a finite number.
func (c Color) Valid() bool {
	for _, x := range [...]float64{c.h, c.s, c.v, c.r, c.g, c.b} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// IsBlack reports whether the color renders as all channels off.
func (c Color) IsBlack() bool {
	return c.RGB8() == RGB8{}
}

func (c Color) String() string {
	return fmt.Sprintf("hsv(%.1f, %.3f, %.3f)", c.h*360, c.s, c.v)
}

// hsvToRGB is the six-sector decomposition. The sector index is reduced
// modulo 6 after flooring so that a hue of exactly 1 lands in sector 0.
func hsvToRGB(h, s, v float64) (r, g, b float64) {
	if math.IsNaN(h) || math.IsNaN(s) || math.IsNaN(v) {
		return math.NaN(), math.NaN(), math.NaN()
	}

	scaled := h * 6
	fl := math.Floor(scaled)
	f := scaled - fl
	i := int(fl) % 6
	if i < 0 {
		i += 6
	}

	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	switch i {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func wrapHue(h float64) float64 {
	h -= math.Floor(h)
	// h-floor(h) can round up to exactly 1 for tiny negative inputs.
	if h >= 1 {
		h = 0
	}
	return h
}

// clamp01 maps infinities to NaN so they surface through Valid instead of
// clamping to a usable channel.
func clamp01(x float64) float64 {
	if math.IsInf(x, 0) {
		return math.NaN()
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func to8(x float64) uint8 {
	return uint8(math.Round(clamp01(x) * 255))
}
