package app

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/accessory"
	"github.com/dokzlo13/sensehatd/internal/color"
	"github.com/dokzlo13/sensehatd/internal/config"
	"github.com/dokzlo13/sensehatd/internal/eventbus"
	"github.com/dokzlo13/sensehatd/internal/panel"
	"github.com/dokzlo13/sensehatd/internal/sink"
	"github.com/dokzlo13/sensehatd/internal/storage"
)

// PanelService owns the LED sink, the panel controller and the light accessory.
type PanelService struct {
	cfg       *config.Config
	snapshots *storage.PanelSnapshots

	Sink  *monitoredSink
	Panel *panel.Controller
	Light *accessory.Light
}

// NewPanelService opens the sink and builds the controller. Nothing is
// written to the LEDs until Start.
func NewPanelService(cfg *config.Config, bus *eventbus.Bus, snapshots *storage.PanelSnapshots) (*PanelService, error) {
	drv, err := sink.Open(sink.Options{
		Driver:   cfg.Sink.Driver,
		Device:   cfg.Sink.Device,
		Bus:      cfg.Sink.Bus,
		Address:  uint16(cfg.Sink.Address),
		Rotation: cfg.Sink.Rotation,
		Strict:   cfg.Sink.Strict,
	})
	if err != nil {
		return nil, err
	}

	name := cfg.Panel.Name
	monitored := newMonitoredSink(drv, name, bus)

	ctrl := panel.New(monitored,
		panel.WithName(name),
		panel.WithNotifier(func(st panel.State) {
			bus.Publish(panelStateEvent(name, st))
		}),
	)

	light := accessory.NewLight(ctrl, accessory.LightConfig{
		Name:            name,
		Hue:             cfg.Panel.Hue,
		Saturation:      cfg.Panel.Saturation,
		Brightness:      cfg.Panel.GetBrightness(),
		Power:           cfg.Panel.GetPower(),
		BrightnessFloor: cfg.Panel.GetBrightnessFloor(),
		BlinkEnabled:    cfg.Panel.Blink.Enabled,
		BlinkPeriod:     cfg.Panel.Blink.Period.Duration(),
	})

	return &PanelService{
		cfg:       cfg,
		snapshots: snapshots,
		Sink:      monitored,
		Panel:     ctrl,
		Light:     light,
	}, nil
}

// Start restores the persisted state when enabled, otherwise applies the
// configured defaults. A failing sink is logged, not fatal: the state is
// kept and the next successful write brings the LEDs in line.
func (s *PanelService) Start(ctx context.Context) error {
	name := s.cfg.Panel.Name

	if s.cfg.Panel.RestoreState {
		st, ok, err := s.snapshots.Load(name)
		if err != nil {
			log.Warn().Err(err).Str("panel", name).Msg("Failed to load panel snapshot, using defaults")
		} else if ok {
			log.Info().
				Str("panel", name).
				Bool("power", st.Power).
				Stringer("color", st.Color).
				Bool("blinking", st.Blinking).
				Msg("Restoring panel state")
			return s.tolerateSink(s.Light.Restore(st))
		}
	}

	log.Info().
		Str("panel", name).
		Float64("hue", s.cfg.Panel.Hue).
		Float64("saturation", s.cfg.Panel.Saturation).
		Float64("brightness", s.cfg.Panel.GetBrightness()).
		Bool("power", s.cfg.Panel.GetPower()).
		Msg("Applying initial panel state")
	return s.tolerateSink(s.Light.Init())
}

func (s *PanelService) tolerateSink(err error) error {
	if errors.Is(err, panel.ErrSinkUnavailable) {
		log.Warn().Err(err).Str("panel", s.cfg.Panel.Name).Msg("Initial panel write failed")
		return nil
	}
	return err
}

// Ready reports an error while the last sink write failed.
func (s *PanelService) Ready() error {
	return s.Sink.LastError()
}

// Stop cancels blinking. Later panel operations fail with panel.ErrClosed.
func (s *PanelService) Stop() {
	if err := s.Panel.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close panel controller")
	}
}

// Close releases the sink. Call Stop first.
func (s *PanelService) Close() {
	if err := s.Sink.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close pixel sink")
	}
}

func panelStateEvent(name string, st panel.State) eventbus.Event {
	return eventbus.Event{
		Type: eventbus.EventTypePanelState,
		Data: map[string]interface{}{
			"panel":           name,
			"power":           st.Power,
			"hue":             st.Color.Hue(),
			"saturation":      st.Color.Saturation(),
			"value":           st.Color.Value(),
			"blinking":        st.Blinking,
			"blink_period_ms": st.BlinkPeriod.Milliseconds(),
			"seq":             st.Seq,
			"state":           st,
		},
	}
}

// monitoredSink reports write failures on the event bus and remembers the
// outcome of the last write.
type monitoredSink struct {
	sink.Driver
	name string
	bus  *eventbus.Bus

	lastErr atomic.Pointer[error]
}

func newMonitoredSink(d sink.Driver, name string, bus *eventbus.Bus) *monitoredSink {
	return &monitoredSink{Driver: d, name: name, bus: bus}
}

func (m *monitoredSink) Fill(c color.RGB8) error {
	return m.record("fill", m.Driver.Fill(c))
}

func (m *monitoredSink) SetPixel(x, y int, c color.RGB8) error {
	return m.record("set_pixel", m.Driver.SetPixel(x, y, c))
}

// LastError returns the error of the last write, or nil.
func (m *monitoredSink) LastError() error {
	if p := m.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (m *monitoredSink) record(op string, err error) error {
	if err == nil {
		if m.lastErr.Swap(nil) != nil {
			log.Info().Str("panel", m.name).Msg("Pixel sink recovered")
		}
		return nil
	}

	m.lastErr.Store(&err)
	m.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeSinkFailure,
		Data: map[string]interface{}{
			"panel": m.name,
			"op":    op,
			"error": err.Error(),
		},
	})
	return err
}
