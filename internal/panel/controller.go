// Package panel implements the LED panel state machine.
//
// A Controller owns the power flag, the current fill color and the blink
// task for one 8x8 matrix. Every operation updates state and pushes the
// resulting grid to the Sink while holding a single mutex, so a blink tick
// can never interleave with a fill or power change.
package panel

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/color"
)

const (
	Width  = 8
	Height = 8

	DefaultBlinkPeriod = 500 * time.Millisecond
)

// Sink is the pixel output the controller writes to.
type Sink interface {
	// Fill sets every cell of the grid to c.
	Fill(c color.RGB8) error
	// SetPixel sets a single cell.
	SetPixel(x, y int, c color.RGB8) error
}

// State is an immutable snapshot of the controller.
type State struct {
	Power       bool
	Color       color.Color
	Blinking    bool
	BlinkPeriod time.Duration
	// Seq increases on every state change.
	Seq uint64
}

// TickerFunc creates the periodic source driving the blink task.
// The returned func stops it.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// Option configures a Controller.
type Option func(*Controller)

// WithName sets the name used in log fields.
func WithName(name string) Option {
	return func(c *Controller) { c.name = name }
}

// WithColor sets the initial fill color. Invalid colors are ignored.
func WithColor(col color.Color) Option {
	return func(c *Controller) {
		if col.Valid() {
			c.current = col
		}
	}
}

// WithPower sets the initial power flag. Nothing is pushed to the sink
// until the first operation or Refresh.
func WithPower(on bool) Option {
	return func(c *Controller) { c.power = on }
}

// WithNotifier registers a callback invoked with a snapshot after every
// state change. It runs outside the controller lock; snapshots from
// concurrent operations may arrive out of order, use State.Seq to order them.
func WithNotifier(fn func(State)) Option {
	return func(c *Controller) { c.notify = fn }
}

// WithTicker replaces the time.Ticker used for blinking.
func WithTicker(fn TickerFunc) Option {
	return func(c *Controller) { c.newTicker = fn }
}

// Controller is the panel state machine: Off, On-Static and On-Blinking.
type Controller struct {
	name      string
	sink      Sink
	notify    func(State)
	newTicker TickerFunc

	mu      sync.Mutex
	power   bool
	current color.Color
	seq     uint64
	closed  bool

	blinking    bool
	blinkPeriod time.Duration
	phaseOn     bool
	blinkGen    uint64
	blinkStop   chan struct{}
	wg          sync.WaitGroup
}

// New creates a controller writing to sink. It starts powered off with
// white as the current color.
func New(sink Sink, opts ...Option) *Controller {
	c := &Controller{
		name:      "panel",
		sink:      sink,
		current:   color.White,
		newTicker: realTicker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// On powers the panel on and fills it with the current color.
// It is a no-op when already on.
func (c *Controller) On() error {
	return c.apply("on", func() (bool, error) {
		if c.power {
			return false, nil
		}
		c.power = true
		c.phaseOn = true
		return true, c.pushFill(c.current)
	})
}

// Off powers the panel off, cancels blinking and blanks the grid.
// Calling it repeatedly blanks the grid every time.
func (c *Controller) Off() error {
	return c.apply("off", func() (bool, error) {
		changed := c.power || c.blinking
		c.power = false
		c.stopBlinkLocked()
		return changed, c.pushFill(color.Black)
	})
}

// Fill replaces the current color. When the panel is on the whole grid is
// repainted immediately, without waiting for the next blink tick, and the
// blink phase restarts from "on". When off, the color is only recorded.
func (c *Controller) Fill(col color.Color) error {
	if !col.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidColorValue, col)
	}
	return c.apply("fill", func() (bool, error) {
		c.current = col
		if !c.power {
			return true, nil
		}
		c.phaseOn = true
		return true, c.pushFill(col)
	})
}

// SetPixel writes a single cell without changing the current color.
func (c *Controller) SetPixel(x, y int, col color.Color) error {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return fmt.Errorf("%w: (%d,%d)", ErrInvalidCoordinate, x, y)
	}
	if !col.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidColorValue, col)
	}
	return c.apply("set_pixel", func() (bool, error) {
		if !c.power {
			return false, ErrPoweredOff
		}
		rgb := col.RGB8()
		if err := c.sink.SetPixel(x, y, rgb); err != nil {
			return false, fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
		}
		return false, nil
	})
}

// Blink starts or stops the blink effect. A non-positive period selects
// DefaultBlinkPeriod. Enabling paints the current color and restarts the
// phase from "on", also when already blinking with another period. Disabling guarantees that no tick writes to the sink after
// Blink returns; the grid keeps whichever phase was shown last.
func (c *Controller) Blink(enable bool, period time.Duration) error {
	return c.apply("blink", func() (bool, error) {
		if !enable {
			if !c.blinking {
				return false, nil
			}
			c.stopBlinkLocked()
			return true, nil
		}
		if !c.power {
			return false, ErrPoweredOff
		}
		if period <= 0 {
			period = DefaultBlinkPeriod
		}
		c.stopBlinkLocked()
		return true, c.startBlinkLocked(period)
	})
}

// Refresh pushes the grid implied by the current state again.
func (c *Controller) Refresh() error {
	return c.apply("refresh", func() (bool, error) {
		if !c.power || (c.blinking && !c.phaseOn) {
			return false, c.pushFill(color.Black)
		}
		return false, c.pushFill(c.current)
	})
}

// Close cancels any blink task and waits for it to exit. Further
// operations return ErrClosed. The grid is left as is.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.stopBlinkLocked()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	log.Debug().Str("panel", c.name).Msg("Panel controller closed")
	return nil
}

// apply runs fn under the lock and emits a snapshot if it reports a change.
func (c *Controller) apply(op string, fn func() (bool, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	changed, err := fn()

	var st State
	if changed {
		c.seq++
		st = c.snapshot()
	}
	c.mu.Unlock()

	if err != nil {
		log.Debug().Err(err).Str("panel", c.name).Str("op", op).Msg("Panel operation failed")
	}
	if changed {
		log.Debug().
			Str("panel", c.name).
			Str("op", op).
			Bool("power", st.Power).
			Stringer("color", st.Color).
			Bool("blinking", st.Blinking).
			Msg("Panel state changed")
		if c.notify != nil {
			c.notify(st)
		}
	}
	return err
}

func (c *Controller) snapshot() State {
	return State{
		Power:       c.power,
		Color:       c.current,
		Blinking:    c.blinking,
		BlinkPeriod: c.blinkPeriod,
		Seq:         c.seq,
	}
}

func (c *Controller) pushFill(col color.Color) error {
	if err := c.sink.Fill(col.RGB8()); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	return nil
}

// startBlinkLocked must be called with mu held and no task running. The
// task starts in the "on" phase, so the current color is painted first; a
// previous blink may have stopped on a black frame.
func (c *Controller) startBlinkLocked(period time.Duration) error {
	c.blinkGen++
	c.blinking = true
	c.blinkPeriod = period
	c.phaseOn = true

	stop := make(chan struct{})
	c.blinkStop = stop
	ticks, stopTicker := c.newTicker(period)

	c.wg.Add(1)
	go c.runBlink(c.blinkGen, ticks, stopTicker, stop)

	return c.pushFill(c.current)
}

// stopBlinkLocked must be called with mu held. Bumping the generation makes
// any tick that is already waiting for the lock a no-op.
func (c *Controller) stopBlinkLocked() {
	if !c.blinking {
		return
	}
	c.blinking = false
	c.blinkPeriod = 0
	c.blinkGen++
	close(c.blinkStop)
	c.blinkStop = nil
}

func (c *Controller) runBlink(gen uint64, ticks <-chan time.Time, stopTicker func(), stop <-chan struct{}) {
	defer c.wg.Done()
	defer stopTicker()

	for {
		select {
		case <-stop:
			return
		case <-ticks:
			if !c.tick(gen) {
				return
			}
		}
	}
}

func (c *Controller) tick(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.blinking || c.blinkGen != gen {
		return false
	}

	c.phaseOn = !c.phaseOn
	frame := color.Black
	if c.phaseOn {
		frame = c.current
	}
	if err := c.pushFill(frame); err != nil {
		log.Warn().Err(err).Str("panel", c.name).Msg("Blink tick failed")
	}
	return true
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
