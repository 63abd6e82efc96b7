package color

import (
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsRGB8(t *testing.T) {
	tests := []struct {
		name   string
		color  Color
		expect RGB8
	}{
		{"black", Black, RGB8{0, 0, 0}},
		{"white", White, RGB8{255, 255, 255}},
		{"red", Red, RGB8{255, 0, 0}},
		{"green", Green, RGB8{0, 255, 0}},
		{"blue", Blue, RGB8{0, 0, 255}},
		{"yellow", Yellow, RGB8{255, 255, 0}},
		{"magenta", Magenta, RGB8{255, 0, 255}},
		{"cyan", Cyan, RGB8{0, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.color.RGB8())

			named, ok := Named(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.color, named)
		})
	}
}

func TestRGB8Rounds(t *testing.T) {
	// 0.5*255 = 127.5 must round up, truncation would give 127.
	gray := FromHSV(0, 0, 0.5)
	assert.Equal(t, RGB8{128, 128, 128}, gray.RGB8())

	// 0.3*255 = 76.5
	assert.Equal(t, uint8(77), FromHSV(0, 0, 0.3).RGB8().R)
}

func TestHueWraparound(t *testing.T) {
	r0, g0, b0 := FromHSV(0, 1, 1).RGB()
	r1, g1, b1 := FromHSV(1, 1, 1).RGB()
	assert.Equal(t, [3]float64{r0, g0, b0}, [3]float64{r1, g1, b1})
	assert.Equal(t, 0.0, FromHSV(1, 1, 1).Hue())

	assert.InDelta(t, 0.75, FromHSV(-0.25, 1, 1).Hue(), 1e-12)
	assert.InDelta(t, 0.5, FromHSV(2.5, 1, 1).Hue(), 1e-12)

	// tiny negatives must not leave the hue at exactly 1
	assert.Less(t, FromHSV(-1e-20, 1, 1).Hue(), 1.0)
}

func TestSaturationZeroIsGray(t *testing.T) {
	for h := 0.0; h <= 1.0; h += 1.0 / 36 {
		for v := 0.0; v <= 1.0; v += 0.1 {
			r, g, b := FromHSV(h, 0, v).RGB()
			assert.Equal(t, v, r, "h=%v v=%v", h, v)
			assert.Equal(t, v, g, "h=%v v=%v", h, v)
			assert.Equal(t, v, b, "h=%v v=%v", h, v)
		}
	}
}

func TestClampsSaturationAndValue(t *testing.T) {
	c := FromHSV(0.1, 1.7, -3)
	assert.Equal(t, 1.0, c.Saturation())
	assert.Equal(t, 0.0, c.Value())
	assert.True(t, c.Valid())
	assert.True(t, c.IsBlack())
}

func TestInvalidComponents(t *testing.T) {
	tests := []struct {
		name    string
		h, s, v float64
	}{
		{"nan_hue", math.NaN(), 1, 1},
		{"nan_saturation", 0, math.NaN(), 1},
		{"nan_value", 0, 1, math.NaN()},
		{"inf_hue", math.Inf(1), 1, 1},
		{"neg_inf_hue", math.Inf(-1), 1, 1},
		{"inf_saturation", 0, math.Inf(1), 1},
		{"inf_value", 0, 1, math.Inf(1)},
		{"neg_inf_value", 0, 1, math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				c := FromHSV(tt.h, tt.s, tt.v)
				assert.False(t, c.Valid())
			})
		})
	}

	assert.True(t, Color{}.Valid(), "zero value is black")
	assert.False(t, Red.WithHue(math.NaN()).Valid())
	assert.False(t, Red.WithSaturation(math.Inf(1)).Valid())
	assert.False(t, FromRGB(math.Inf(1), 0, 0).Valid())
}

func TestSectorBoundaryContinuity(t *testing.T) {
	const eps = 1e-7
	for k := 0; k < 6; k++ {
		boundary := float64(k) / 6
		below := FromHSV(boundary-eps, 1, 1)
		above := FromHSV(boundary+eps, 1, 1)

		r0, g0, b0 := below.RGB()
		r1, g1, b1 := above.RGB()
		assert.InDelta(t, r0, r1, 1e-5, "sector %d red", k)
		assert.InDelta(t, g0, g1, 1e-5, "sector %d green", k)
		assert.InDelta(t, b0, b1, 1e-5, "sector %d blue", k)
	}
}

func TestRoundTrip(t *testing.T) {
	for h := 0.0; h < 1.0; h += 1.0 / 97 {
		for s := 0.05; s <= 1.0; s += 0.19 {
			for v := 0.05; v <= 1.0; v += 0.19 {
				c := FromHSV(h, s, v)
				back := FromRGB(c.RGB())

				assert.InDelta(t, 0, hueDistance(h, back.Hue()), 1.0/360, "h=%v s=%v v=%v", h, s, v)
				assert.InDelta(t, s, back.Saturation(), 1e-9, "h=%v s=%v v=%v", h, s, v)
				assert.InDelta(t, v, back.Value(), 1e-9, "h=%v s=%v v=%v", h, s, v)
			}
		}
	}
}

func TestMatchesColorful(t *testing.T) {
	for h := 0.0; h < 1.0; h += 1.0 / 61 {
		for s := 0.0; s <= 1.0; s += 0.25 {
			for v := 0.0; v <= 1.0; v += 0.25 {
				want := colorful.Hsv(h*360, s, v)
				r, g, b := FromHSV(h, s, v).RGB()
				assert.InDelta(t, want.R, r, 1e-9, "h=%v s=%v v=%v", h, s, v)
				assert.InDelta(t, want.G, g, 1e-9, "h=%v s=%v v=%v", h, s, v)
				assert.InDelta(t, want.B, b, 1e-9, "h=%v s=%v v=%v", h, s, v)
			}
		}
	}
}

func TestSettersRecomputeAllChannels(t *testing.T) {
	c := Red.WithHue(120.0 / 360)
	assert.Equal(t, Green.RGB8(), c.RGB8())

	c = c.WithSaturation(0)
	assert.Equal(t, RGB8{255, 255, 255}, c.RGB8())

	c = c.WithValue(0)
	assert.Equal(t, RGB8{}, c.RGB8())
	assert.InDelta(t, 120.0/360, c.Hue(), 1e-12, "hue survives other setters")

	// the original is untouched
	assert.Equal(t, RGB8{255, 0, 0}, Red.RGB8())
}

func TestFromDegrees(t *testing.T) {
	assert.Equal(t, Magenta.RGB8(), FromDegrees(300, 100, 100).RGB8())
	assert.Equal(t, Red.RGB8(), FromDegrees(360, 100, 100).RGB8())
	assert.Equal(t, RGB8{128, 128, 128}, FromDegrees(42, 0, 50).RGB8())
}

func hueDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 1-d)
}
