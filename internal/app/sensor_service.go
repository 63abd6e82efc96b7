package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/accessory"
	"github.com/dokzlo13/sensehatd/internal/config"
	"github.com/dokzlo13/sensehatd/internal/eventbus"
	"github.com/dokzlo13/sensehatd/internal/lua/modules"
	"github.com/dokzlo13/sensehatd/internal/sensors"
)

// SensorService polls the environmental sensors.
// Poller and Accessory are nil when sensors are disabled.
type SensorService struct {
	cfg       *config.Config
	Poller    *sensors.Poller
	Accessory *accessory.Sensors
}

// NewSensorService creates a new SensorService.
func NewSensorService(cfg *config.Config, bus *eventbus.Bus) *SensorService {
	s := &SensorService{cfg: cfg}
	if !cfg.Sensors.IsEnabled() {
		return s
	}

	s.Poller = sensors.New(
		sensors.CommandRunner(cfg.Sensors.Argv()),
		sensors.Config{
			Timeout:        cfg.Sensors.Timeout.Duration(),
			TTL:            cfg.Sensors.CacheTTL.Duration(),
			Interval:       cfg.Sensors.PollInterval.Duration(),
			PressureOffset: cfg.Sensors.PressureOffset,
		},
		sensors.WithListener(func(r sensors.Reading) {
			bus.Publish(eventbus.Event{
				Type: eventbus.EventTypeSensorReading,
				Data: modules.ReadingToMap(r),
			})
		}),
	)
	s.Accessory = accessory.NewSensors(cfg.Panel.Name+" sensors", s.Poller)
	return s
}

// Start begins background polling if configured.
func (s *SensorService) Start(ctx context.Context) {
	if s.Poller == nil {
		log.Info().Msg("Sensors are disabled")
		return
	}
	go s.Poller.Run(ctx)
}
