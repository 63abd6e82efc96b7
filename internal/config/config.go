package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Panel           PanelConfig    `yaml:"panel"`
	Sink            SinkConfig     `yaml:"sink"`
	Sensors         SensorsConfig  `yaml:"sensors"`
	HTTP            HTTPConfig     `yaml:"http"`
	Database        DatabaseConfig `yaml:"database"`
	Log             LogConfig      `yaml:"log"`
	Ledger          LedgerConfig   `yaml:"ledger"`
	EventBus        EventBusConfig `yaml:"eventbus"`
	Script          string         `yaml:"script"`           // Optional Lua script run at startup
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops

	// Dir is the directory of the loaded file; relative script paths resolve against it
	Dir string `yaml:"-"`
}

// PanelConfig describes the LED light accessory
type PanelConfig struct {
	Name string `yaml:"name"`

	// Initial characteristic values, bridge scales
	Hue        float64  `yaml:"hue"`        // degrees, 0-360
	Saturation float64  `yaml:"saturation"` // percent, 0-100
	Brightness *float64 `yaml:"brightness"` // percent, 0-100 (default: 100)
	Power      *bool    `yaml:"power"`      // default: true

	// BrightnessFloor keeps low brightness levels visible (default: 19)
	BrightnessFloor *float64 `yaml:"brightness_floor"`

	Blink        BlinkConfig `yaml:"blink"`
	RestoreState bool        `yaml:"restore_state"` // Restore last persisted state at startup
}

// BlinkConfig enables the blink characteristic
type BlinkConfig struct {
	Enabled bool     `yaml:"enabled"`
	Period  Duration `yaml:"period"` // default: 500ms
}

// GetBrightness returns the initial brightness with default
func (c *PanelConfig) GetBrightness() float64 {
	if c.Brightness == nil {
		return 100
	}
	return *c.Brightness
}

// GetPower returns the initial power flag with default
func (c *PanelConfig) GetPower() bool {
	if c.Power == nil {
		return true
	}
	return *c.Power
}

// GetBrightnessFloor returns the brightness floor with default
func (c *PanelConfig) GetBrightnessFloor() float64 {
	if c.BrightnessFloor == nil {
		return 19
	}
	return *c.BrightnessFloor
}

// SinkConfig selects the LED output driver
type SinkConfig struct {
	Driver   string `yaml:"driver"`   // framebuffer | i2c | log (default: framebuffer)
	Device   string `yaml:"device"`   // Framebuffer device, empty = autodetect
	Bus      string `yaml:"bus"`      // I2C bus name, empty = first available
	Address  int    `yaml:"address"`  // I2C address (default: 0x46)
	Rotation int    `yaml:"rotation"` // 0, 90, 180, 270
	Strict   bool   `yaml:"strict"`   // Fail startup instead of falling back to the log driver
}

// SensorsConfig contains environmental sensor polling settings
type SensorsConfig struct {
	Enabled        *bool    `yaml:"enabled"`         // default: true
	Path           string   `yaml:"path"`            // Directory holding update-sensors.py
	Command        string   `yaml:"command"`         // Overrides the default command
	Timeout        Duration `yaml:"timeout"`         // Per run timeout (default: 10s)
	CacheTTL       Duration `yaml:"cache_ttl"`       // default: 60s
	PollInterval   Duration `yaml:"poll_interval"`   // Background polling, 0 = disabled
	PressureOffset float64  `yaml:"pressure_offset"` // Subtracted from the reported pressure
}

// IsEnabled returns whether sensors are polled
func (c *SensorsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Argv splits the sensor command into arguments
func (c *SensorsConfig) Argv() []string {
	return strings.Fields(c.Command)
}

// HTTPConfig contains bridge API server settings
type HTTPConfig struct {
	Enabled      *bool   `yaml:"enabled"` // default: true
	Host         string  `yaml:"host"`
	Port         int     `yaml:"port"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // Write requests per second
	RateBurst    int     `yaml:"rate_burst"`
}

// IsEnabled returns whether the API server runs
func (c *HTTPConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Addr returns host:port
func (c *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.Dir = filepath.Dir(path)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (cfg *Config) setDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./sensehatd.sqlite"
	}

	// Panel defaults
	if cfg.Panel.Name == "" {
		cfg.Panel.Name = "Sense HAT"
	}
	if cfg.Panel.Blink.Period == 0 {
		cfg.Panel.Blink.Period = Duration(500 * time.Millisecond)
	}

	// Sink defaults
	if cfg.Sink.Driver == "" {
		cfg.Sink.Driver = "framebuffer"
	}
	if cfg.Sink.Address == 0 {
		cfg.Sink.Address = 0x46
	}

	// Sensor defaults
	if cfg.Sensors.Path == "" {
		cfg.Sensors.Path = "/usr/share/sensehatd"
	}
	if cfg.Sensors.Command == "" {
		cfg.Sensors.Command = "python3 " + filepath.Join(cfg.Sensors.Path, "update-sensors.py")
	}
	if cfg.Sensors.Timeout == 0 {
		cfg.Sensors.Timeout = Duration(10 * time.Second)
	}
	if cfg.Sensors.CacheTTL == 0 {
		cfg.Sensors.CacheTTL = Duration(60 * time.Second)
	}

	// HTTP defaults
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8581
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.RateLimitRPS == 0 {
		cfg.HTTP.RateLimitRPS = 20.0
	}
	if cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = 5
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks values that cannot be defaulted
func (cfg *Config) Validate() error {
	p := cfg.Panel
	if p.Hue < 0 || p.Hue > 360 {
		return fmt.Errorf("panel.hue must be within [0,360], got %v", p.Hue)
	}
	if p.Saturation < 0 || p.Saturation > 100 {
		return fmt.Errorf("panel.saturation must be within [0,100], got %v", p.Saturation)
	}
	if b := p.GetBrightness(); b < 0 || b > 100 {
		return fmt.Errorf("panel.brightness must be within [0,100], got %v", b)
	}
	if f := p.GetBrightnessFloor(); f < 0 || f >= 100 {
		return fmt.Errorf("panel.brightness_floor must be within [0,100), got %v", f)
	}

	switch cfg.Sink.Driver {
	case "framebuffer", "i2c", "log":
	default:
		return fmt.Errorf("sink.driver must be framebuffer, i2c or log, got %q", cfg.Sink.Driver)
	}
	switch cfg.Sink.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("sink.rotation must be 0, 90, 180 or 270, got %d", cfg.Sink.Rotation)
	}
	if cfg.Sink.Address < 0 || cfg.Sink.Address > 0x7f {
		return fmt.Errorf("sink.address 0x%x is not a 7-bit i2c address", cfg.Sink.Address)
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
