package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "Sense HAT", cfg.Panel.Name)
	assert.Equal(t, 100.0, cfg.Panel.GetBrightness())
	assert.True(t, cfg.Panel.GetPower())
	assert.Equal(t, 19.0, cfg.Panel.GetBrightnessFloor())
	assert.Equal(t, 500*time.Millisecond, cfg.Panel.Blink.Period.Duration())
	assert.False(t, cfg.Panel.Blink.Enabled)

	assert.Equal(t, "framebuffer", cfg.Sink.Driver)
	assert.Equal(t, 0x46, cfg.Sink.Address)

	assert.True(t, cfg.Sensors.IsEnabled())
	assert.Equal(t, []string{"python3", "/usr/share/sensehatd/update-sensors.py"}, cfg.Sensors.Argv())
	assert.Equal(t, 60*time.Second, cfg.Sensors.CacheTTL.Duration())

	assert.True(t, cfg.HTTP.IsEnabled())
	assert.Equal(t, "0.0.0.0:8581", cfg.HTTP.Addr())
	assert.Equal(t, 30, cfg.Ledger.RetentionDays)
	assert.Equal(t, 4, cfg.EventBus.GetWorkers())
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
}

func TestLoadValues(t *testing.T) {
	path := writeConfig(t, `
panel:
  name: Desk
  hue: 240
  saturation: 100
  brightness: 0
  power: false
  brightness_floor: 0
  blink:
    enabled: true
    period: 250ms
sink:
  driver: i2c
  bus: "1"
  rotation: 180
sensors:
  enabled: false
  path: /opt/hat
  poll_interval: 30s
http:
  enabled: false
  port: 9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Desk", cfg.Panel.Name)
	assert.Equal(t, 240.0, cfg.Panel.Hue)
	assert.Equal(t, 0.0, cfg.Panel.GetBrightness(), "explicit zero is kept")
	assert.False(t, cfg.Panel.GetPower())
	assert.Equal(t, 0.0, cfg.Panel.GetBrightnessFloor())
	assert.Equal(t, 250*time.Millisecond, cfg.Panel.Blink.Period.Duration())

	assert.Equal(t, "i2c", cfg.Sink.Driver)
	assert.Equal(t, 180, cfg.Sink.Rotation)

	assert.False(t, cfg.Sensors.IsEnabled())
	assert.Equal(t, "python3 /opt/hat/update-sensors.py", cfg.Sensors.Command)
	assert.Equal(t, 30*time.Second, cfg.Sensors.PollInterval.Duration())
	assert.False(t, cfg.HTTP.IsEnabled())
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr())
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("SENSEHAT_DB", "/var/lib/sensehatd/state.db")

	cfg, err := Load(writeConfig(t, `
database:
  path: ${SENSEHAT_DB}
log:
  level: ${SENSEHAT_LOG_LEVEL:debug}
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sensehatd/state.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"hue", "panel: {hue: 400}"},
		{"saturation", "panel: {saturation: -1}"},
		{"brightness", "panel: {brightness: 101}"},
		{"floor", "panel: {brightness_floor: 100}"},
		{"driver", "sink: {driver: spi}"},
		{"rotation", "sink: {rotation: 45}"},
		{"address", "sink: {address: 300}"},
		{"duration", "shutdown_timeout: soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
