// Package sensors polls the Sense HAT environmental sensors through an
// external command and caches the last good reading.
package sensors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Default configuration
const (
	DefaultTimeout = 10 * time.Second
	DefaultTTL     = 60 * time.Second
	DefaultScript  = "update-sensors.py"
)

// ErrNoReading is returned when no reading has ever succeeded.
var ErrNoReading = errors.New("no sensor reading available")

// Reading is the last known value of every sensor.
// A zero field means that sensor never reported a usable value.
type Reading struct {
	Temperature float64 // degrees Celsius
	Humidity    float64 // percent relative humidity
	Pressure    float64 // hPa
	At          time.Time
}

// Runner executes the sensor command and returns its stdout.
type Runner func(ctx context.Context) (string, error)

// CommandRunner runs argv with exec.CommandContext.
func CommandRunner(argv []string) Runner {
	return func(ctx context.Context) (string, error) {
		if len(argv) == 0 {
			return "", errors.New("empty sensor command")
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return "", fmt.Errorf("%s: %w: %s", argv[0], err, msg)
			}
			return "", fmt.Errorf("%s: %w", argv[0], err)
		}
		return string(out), nil
	}
}

// Config controls the poller.
type Config struct {
	Timeout time.Duration // per command run
	TTL     time.Duration // cache lifetime for Reading
	// Interval of the background loop started by Run; 0 disables it.
	Interval time.Duration
	// PressureOffset is subtracted from the reported pressure.
	PressureOffset float64
}

// Poller runs the sensor command on demand and in the background.
type Poller struct {
	run      Runner
	cfg      Config
	listener func(Reading)
	now      func() time.Time

	refreshMu sync.Mutex // one command in flight

	mu        sync.RWMutex
	reading   Reading
	fetchedAt time.Time
	have      bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithListener is called after every successful refresh.
func WithListener(fn func(Reading)) Option {
	return func(p *Poller) { p.listener = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// New creates a poller. Zero config durations select the defaults.
func New(run Runner, cfg Config, opts ...Option) *Poller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	p := &Poller{
		run: run,
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Last returns the cached reading regardless of age.
func (p *Poller) Last() (Reading, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reading, p.have
}

// Reading returns the cached reading, refreshing it first when it is older
// than the TTL. Concurrent callers share a single command run. If the
// refresh fails but an older reading exists, that reading is returned
// together with the error.
func (p *Poller) Reading(ctx context.Context) (Reading, error) {
	if r, ok := p.fresh(); ok {
		return r, nil
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	if r, ok := p.fresh(); ok {
		return r, nil
	}
	return p.refreshLocked(ctx)
}

// Refresh runs the command now, ignoring the cache.
func (p *Poller) Refresh(ctx context.Context) (Reading, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	return p.refreshLocked(ctx)
}

// Run refreshes every Interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	if p.cfg.Interval <= 0 {
		log.Debug().Msg("Sensor polling disabled")
		return
	}

	log.Info().Dur("interval", p.cfg.Interval).Msg("Sensor polling started")
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Sensor poll failed")
		}
		select {
		case <-ctx.Done():
			log.Debug().Msg("Sensor polling stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) fresh() (Reading, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.have || p.now().Sub(p.fetchedAt) > p.cfg.TTL {
		return Reading{}, false
	}
	return p.reading, true
}

func (p *Poller) refreshLocked(ctx context.Context) (Reading, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	out, err := p.run(runCtx)
	if err == nil {
		var vals [3]float64
		var ok [3]bool
		vals, ok, err = Parse(out)
		if err == nil {
			vals[2] -= p.cfg.PressureOffset
			return p.store(vals, ok), nil
		}
	}

	err = fmt.Errorf("sensor refresh: %w", err)
	if r, have := p.Last(); have {
		return r, err
	}
	return Reading{}, errors.Join(ErrNoReading, err)
}

// store merges usable values into the cache. Values that are not finite
// and positive keep the previous reading for that sensor.
func (p *Poller) store(vals [3]float64, ok [3]bool) Reading {
	p.mu.Lock()
	r := p.reading
	fields := [3]*float64{&r.Temperature, &r.Humidity, &r.Pressure}
	for i, v := range vals {
		if ok[i] && usable(v) {
			*fields[i] = v
		}
	}
	r.At = p.now()
	p.reading = r
	p.fetchedAt = r.At
	p.have = true
	p.mu.Unlock()

	log.Info().
		Float64("temperature", r.Temperature).
		Float64("humidity", r.Humidity).
		Float64("pressure", r.Pressure).
		Msg("Sensor reading")

	if p.listener != nil {
		p.listener(r)
	}
	return r
}

// Parse splits "<temperature> <humidity> <pressure>". Missing or malformed
// fields are reported through ok; an output without any number is an error.
func Parse(out string) (vals [3]float64, ok [3]bool, err error) {
	fields := strings.Fields(out)
	found := false
	for i := 0; i < len(fields) && i < 3; i++ {
		v, perr := strconv.ParseFloat(fields[i], 64)
		if perr != nil {
			continue
		}
		vals[i], ok[i] = v, true
		found = true
	}
	if !found {
		return vals, ok, fmt.Errorf("unparseable sensor output %q", strings.TrimSpace(out))
	}
	return vals, ok, nil
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
