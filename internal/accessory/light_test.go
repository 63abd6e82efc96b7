package accessory

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sensehatd/internal/color"
	"github.com/dokzlo13/sensehatd/internal/panel"
)

type gridSink struct {
	mu   sync.Mutex
	grid [8][8]color.RGB8
}

func (s *gridSink) Fill(c color.RGB8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for y := range s.grid {
		for x := range s.grid[y] {
			s.grid[y][x] = c
		}
	}
	return nil
}

func (s *gridSink) SetPixel(x, y int, c color.RGB8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid[y][x] = c
	return nil
}

func (s *gridSink) cell(x, y int) color.RGB8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid[y][x]
}

// idleTicker never fires; blink state is observable without timing.
func idleTicker(time.Duration) (<-chan time.Time, func()) {
	return make(chan time.Time), func() {}
}

func newLight(t *testing.T, cfg LightConfig) (*Light, *gridSink) {
	t.Helper()
	sink := &gridSink{}
	ctrl := panel.New(sink, panel.WithTicker(idleTicker))
	t.Cleanup(func() { ctrl.Close() })
	return NewLight(ctrl, cfg), sink
}

func defaultConfig() LightConfig {
	return LightConfig{
		Name:            "test",
		Brightness:      100,
		Power:           true,
		BrightnessFloor: 19,
	}
}

func TestInitDefaultsToWhite(t *testing.T) {
	l, sink := newLight(t, defaultConfig())
	require.NoError(t, l.Init())

	assert.Equal(t, color.RGB8{R: 255, G: 255, B: 255}, sink.cell(3, 3))
	assert.Equal(t, Status{On: true, Brightness: 100, Saturation: 0, Hue: 0}, l.Status())
}

func TestInitPoweredOff(t *testing.T) {
	cfg := defaultConfig()
	cfg.Power = false
	cfg.Hue = 240
	cfg.Saturation = 100
	l, sink := newLight(t, cfg)
	require.NoError(t, l.Init())

	assert.Equal(t, color.RGB8{}, sink.cell(0, 0))
	assert.False(t, l.Power())
	assert.Equal(t, 240.0, l.Hue())

	require.NoError(t, l.SetPower(true))
	assert.Equal(t, color.RGB8{R: 0, G: 0, B: 255}, sink.cell(0, 0))
}

func TestCharacteristicRescaling(t *testing.T) {
	l, sink := newLight(t, defaultConfig())
	require.NoError(t, l.Init())

	require.NoError(t, l.SetHue(120))
	require.NoError(t, l.SetSaturation(100))
	assert.Equal(t, color.RGB8{R: 0, G: 255, B: 0}, sink.cell(7, 7))
	assert.Equal(t, 120.0, l.Hue())
	assert.Equal(t, 100.0, l.Saturation())

	// 19 + 50*81/100 = 59.5% -> 0.595*255 = 151.725
	require.NoError(t, l.SetBrightness(50))
	assert.Equal(t, color.RGB8{R: 0, G: 152, B: 0}, sink.cell(7, 7))
	assert.Equal(t, 50.0, l.Brightness(), "getter reports the unadjusted value")

	require.NoError(t, l.SetHue(360))
	assert.Equal(t, color.RGB8{R: 152, G: 0, B: 0}, sink.cell(0, 0), "360 degrees is red")
}

func TestBrightnessFloor(t *testing.T) {
	tests := []struct {
		name  string
		floor float64
		pct   float64
		want  uint8
	}{
		{"zero_with_floor", 19, 0, 48}, // 0.19*255 = 48.45
		{"full_with_floor", 19, 100, 255},
		{"zero_without_floor", 0, 0, 0},
		{"half_without_floor", 0, 50, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.BrightnessFloor = tt.floor
			l, sink := newLight(t, cfg)
			require.NoError(t, l.Init())

			require.NoError(t, l.SetBrightness(tt.pct))
			assert.Equal(t, tt.want, sink.cell(1, 1).R)
			assert.Equal(t, tt.pct, l.Brightness())
		})
	}
}

func TestInvalidCharacteristics(t *testing.T) {
	l, _ := newLight(t, defaultConfig())
	require.NoError(t, l.Init())
	before := l.Status()

	for _, err := range []error{
		l.SetHue(361),
		l.SetHue(-1),
		l.SetHue(math.NaN()),
		l.SetSaturation(101),
		l.SetBrightness(-0.5),
		l.SetBrightness(math.NaN()),
		l.SetPixel(0, 0, 0, 0, 200),
	} {
		assert.ErrorIs(t, err, panel.ErrInvalidColorValue)
	}
	assert.Equal(t, before, l.Status())
}

func TestBlink(t *testing.T) {
	l, _ := newLight(t, defaultConfig())
	require.NoError(t, l.Init())
	assert.ErrorIs(t, l.SetBlink(true), ErrBlinkUnsupported)
	assert.False(t, l.BlinkSupported())

	cfg := defaultConfig()
	cfg.BlinkEnabled = true
	l, _ = newLight(t, cfg)
	require.NoError(t, l.Init())

	require.NoError(t, l.SetBlink(true))
	assert.True(t, l.Blinking())

	require.NoError(t, l.SetPower(false))
	assert.False(t, l.Blinking(), "power off stops blinking")
	assert.ErrorIs(t, l.SetBlink(true), panel.ErrPoweredOff)
}

func TestSetPixel(t *testing.T) {
	l, sink := newLight(t, defaultConfig())
	require.NoError(t, l.Init())

	require.NoError(t, l.SetPixel(2, 5, 0, 100, 100))
	assert.Equal(t, color.RGB8{R: 255, G: 0, B: 0}, sink.cell(2, 5))
	assert.Equal(t, color.RGB8{R: 255, G: 255, B: 255}, sink.cell(5, 2))
	assert.Equal(t, 0.0, l.Saturation(), "fill color untouched")

	assert.ErrorIs(t, l.SetPixel(8, 0, 0, 0, 0), panel.ErrInvalidCoordinate)

	require.NoError(t, l.SetPower(false))
	assert.ErrorIs(t, l.SetPixel(0, 0, 0, 0, 0), panel.ErrPoweredOff)
}

func TestRestore(t *testing.T) {
	cfg := defaultConfig()
	cfg.BlinkEnabled = true
	l, sink := newLight(t, cfg)

	require.NoError(t, l.Restore(panel.State{
		Power:       true,
		Color:       color.Magenta,
		Blinking:    true,
		BlinkPeriod: time.Second,
	}))
	assert.Equal(t, color.RGB8{R: 255, G: 0, B: 255}, sink.cell(4, 4))
	assert.True(t, l.Blinking())

	require.NoError(t, l.Restore(panel.State{Power: true, Color: color.Cyan}))
	assert.False(t, l.Blinking())
	assert.Equal(t, color.RGB8{R: 0, G: 255, B: 255}, sink.cell(4, 4))
}
