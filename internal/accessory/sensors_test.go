package accessory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sensehatd/internal/sensors"
)

type stubSource struct {
	reading sensors.Reading
	err     error
}

func (s stubSource) Reading(context.Context) (sensors.Reading, error) {
	return s.reading, s.err
}

func TestSensorsGetters(t *testing.T) {
	s := NewSensors("env", stubSource{reading: sensors.Reading{Temperature: 21.5, Humidity: 40, Pressure: 1013}})
	ctx := context.Background()

	temp, err := s.Temperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21.5, temp)

	hum, err := s.Humidity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40.0, hum)

	pres, err := s.Pressure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1013.0, pres)
}

func TestSensorsServeStale(t *testing.T) {
	stale := sensors.Reading{Temperature: 19, At: time.Unix(100, 0)}
	s := NewSensors("env", stubSource{reading: stale, err: errors.New("exit status 1")})

	temp, err := s.Temperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 19.0, temp)
}

func TestSensorsNoReading(t *testing.T) {
	s := NewSensors("env", stubSource{err: errors.Join(sensors.ErrNoReading, errors.New("boom"))})

	_, err := s.Humidity(context.Background())
	assert.ErrorIs(t, err, sensors.ErrNoReading)
}
