package accessory

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/sensors"
)

// SensorSource provides readings, typically a *sensors.Poller.
type SensorSource interface {
	Reading(ctx context.Context) (sensors.Reading, error)
}

// Sensors exposes temperature, humidity and pressure.
type Sensors struct {
	name string
	src  SensorSource
}

func NewSensors(name string, src SensorSource) *Sensors {
	return &Sensors{name: name, src: src}
}

// Reading returns the latest reading. A stale reading is served when the
// refresh fails; the failure is only logged.
func (s *Sensors) Reading(ctx context.Context) (sensors.Reading, error) {
	r, err := s.src.Reading(ctx)
	if err != nil {
		if errors.Is(err, sensors.ErrNoReading) {
			return sensors.Reading{}, err
		}
		log.Warn().Err(err).Str("accessory", s.name).Time("stale_at", r.At).Msg("Serving stale sensor reading")
	}
	return r, nil
}

// Temperature in degrees Celsius.
func (s *Sensors) Temperature(ctx context.Context) (float64, error) {
	r, err := s.Reading(ctx)
	return r.Temperature, err
}

// Humidity in percent relative humidity.
func (s *Sensors) Humidity(ctx context.Context) (float64, error) {
	r, err := s.Reading(ctx)
	return r.Humidity, err
}

// Pressure in hPa.
func (s *Sensors) Pressure(ctx context.Context) (float64, error) {
	r, err := s.Reading(ctx)
	return r.Pressure, err
}
