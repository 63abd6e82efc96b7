// Package accessory maps bridge characteristics onto the LED panel and the
// environmental sensors.
package accessory

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/color"
	"github.com/dokzlo13/sensehatd/internal/panel"
)

// ErrBlinkUnsupported is returned by SetBlink when blinking is not enabled.
var ErrBlinkUnsupported = errors.New("blink not supported by this light")

// Panel is the subset of panel.Controller the light drives.
type Panel interface {
	State() panel.State
	On() error
	Off() error
	Fill(c color.Color) error
	SetPixel(x, y int, c color.Color) error
	Blink(enable bool, period time.Duration) error
}

// LightConfig holds the initial characteristic values and capabilities.
type LightConfig struct {
	Name       string
	Hue        float64 // degrees
	Saturation float64 // percent
	Brightness float64 // percent
	Power      bool

	// BrightnessFloor is the lowest panel value, in percent, that a
	// brightness of 0 maps to.
	BrightnessFloor float64

	BlinkEnabled bool
	BlinkPeriod  time.Duration
}

// Status is the characteristic view of the light.
type Status struct {
	On         bool    `json:"on"`
	Brightness float64 `json:"brightness"`
	Saturation float64 `json:"saturation"`
	Hue        float64 `json:"hue"`
	Blink      bool    `json:"blink"`
}

// Light exposes power, brightness, saturation, hue and blink.
// Characteristic values are derived from the panel state, so changes made
// directly on the panel (for example from scripts) are reflected too.
type Light struct {
	cfg   LightConfig
	panel Panel

	// serialises read-modify-write of the panel color
	mu sync.Mutex
}

// NewLight wraps p. Call Init to push the configured initial state.
func NewLight(p Panel, cfg LightConfig) *Light {
	return &Light{cfg: cfg, panel: p}
}

func (l *Light) Name() string { return l.cfg.Name }

// BlinkSupported reports whether SetBlink is available.
func (l *Light) BlinkSupported() bool { return l.cfg.BlinkEnabled }

// Init applies the configured hue, saturation, brightness and power.
func (l *Light) Init() error {
	if err := checkRange("hue", l.cfg.Hue, 360); err != nil {
		return err
	}
	if err := checkRange("saturation", l.cfg.Saturation, 100); err != nil {
		return err
	}
	if err := checkRange("brightness", l.cfg.Brightness, 100); err != nil {
		return err
	}

	c := color.FromDegrees(l.cfg.Hue, l.cfg.Saturation, l.effective(l.cfg.Brightness))
	return l.Restore(panel.State{Power: l.cfg.Power, Color: c})
}

// Restore brings the panel to a previously persisted state. Blinking is
// only restored when the light supports it.
func (l *Light) Restore(st panel.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.panel.Fill(st.Color); err != nil {
		return err
	}
	if !st.Power {
		return l.panel.Off()
	}
	if err := l.panel.On(); err != nil {
		return err
	}
	return l.panel.Blink(st.Blinking && l.cfg.BlinkEnabled, st.BlinkPeriod)
}

// Status returns the current characteristic values.
func (l *Light) Status() Status {
	return l.statusOf(l.panel.State())
}

func (l *Light) statusOf(st panel.State) Status {
	return Status{
		On:         st.Power,
		Brightness: round6(l.unadjusted(st.Color.Value() * 100)),
		Saturation: round6(st.Color.Saturation() * 100),
		Hue:        round6(st.Color.Hue() * 360),
		Blink:      st.Blinking,
	}
}

func (l *Light) Power() bool { return l.Status().On }
func (l *Light) Brightness() float64 { return l.Status().Brightness }
func (l *Light) Saturation() float64 { return l.Status().Saturation }
func (l *Light) Hue() float64 { return l.Status().Hue }
func (l *Light) Blinking() bool { return l.Status().Blink }

func (l *Light) SetPower(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log.Debug().Str("light", l.cfg.Name).Bool("on", on).Msg("Set power")
	if on {
		return l.panel.On()
	}
	return l.panel.Off()
}

// SetBrightness takes a percentage in [0,100].
func (l *Light) SetBrightness(pct float64) error {
	if err := checkRange("brightness", pct, 100); err != nil {
		return err
	}
	return l.update("brightness", pct, func(c color.Color) color.Color {
		return c.WithValue(l.effective(pct) / 100)
	})
}

// SetSaturation takes a percentage in [0,100].
func (l *Light) SetSaturation(pct float64) error {
	if err := checkRange("saturation", pct, 100); err != nil {
		return err
	}
	return l.update("saturation", pct, func(c color.Color) color.Color {
		return c.WithSaturation(pct / 100)
	})
}

// SetHue takes degrees in [0,360]; 360 is the same hue as 0.
func (l *Light) SetHue(deg float64) error {
	if err := checkRange("hue", deg, 360); err != nil {
		return err
	}
	return l.update("hue", deg, func(c color.Color) color.Color {
		return c.WithHue(deg / 360)
	})
}

func (l *Light) SetBlink(enable bool) error {
	if !l.cfg.BlinkEnabled {
		return ErrBlinkUnsupported
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	log.Debug().Str("light", l.cfg.Name).Bool("blink", enable).Msg("Set blink")
	return l.panel.Blink(enable, l.cfg.BlinkPeriod)
}

// SetPixel paints one cell using bridge scales. The brightness floor
// applies as for the whole panel.
func (l *Light) SetPixel(x, y int, hue, saturation, brightness float64) error {
	if err := checkRange("hue", hue, 360); err != nil {
		return err
	}
	if err := checkRange("saturation", saturation, 100); err != nil {
		return err
	}
	if err := checkRange("brightness", brightness, 100); err != nil {
		return err
	}
	return l.panel.SetPixel(x, y, color.FromDegrees(hue, saturation, l.effective(brightness)))
}

func (l *Light) update(name string, value float64, fn func(color.Color) color.Color) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log.Debug().Str("light", l.cfg.Name).Float64(name, value).Msg("Set characteristic")
	return l.panel.Fill(fn(l.panel.State().Color))
}

// effective maps a brightness percentage onto [floor,100].
func (l *Light) effective(pct float64) float64 {
	f := l.cfg.BrightnessFloor
	return f + pct*(100-f)/100
}

func (l *Light) unadjusted(value float64) float64 {
	f := l.cfg.BrightnessFloor
	if f >= 100 {
		return 100
	}
	return math.Max(0, (value-f)*100/(100-f))
}

func checkRange(name string, v, max float64) error {
	if math.IsNaN(v) || v < 0 || v > max {
		return fmt.Errorf("%w: %s %v outside [0,%v]", panel.ErrInvalidColorValue, name, v, max)
	}
	return nil
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}
