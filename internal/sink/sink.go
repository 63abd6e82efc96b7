// Package sink provides pixel outputs for the Sense HAT LED matrix.
package sink

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/color"
)

const (
	DriverFramebuffer = "framebuffer"
	DriverI2C         = "i2c"
	DriverLog         = "log"

	size = 8
)

// Driver is an 8x8 pixel output. It satisfies panel.Sink.
type Driver interface {
	Fill(c color.RGB8) error
	SetPixel(x, y int, c color.RGB8) error
	// Frame returns what was last written, in logical (unrotated) coordinates.
	Frame() Frame
	Close() error
}

// Options selects and configures a driver.
type Options struct {
	Driver   string
	Device   string // framebuffer device, empty = autodetect
	Bus      string // i2c bus name, empty = first available
	Address  uint16 // i2c address of the LED controller
	Rotation int    // 0, 90, 180 or 270 degrees clockwise
	Strict   bool   // fail instead of falling back to the log driver
}

// Open creates the configured driver. Unless Strict is set, a driver that
// cannot reach the hardware is replaced by the log driver.
func Open(opts Options) (Driver, error) {
	if err := checkRotation(opts.Rotation); err != nil {
		return nil, err
	}

	var (
		d   Driver
		err error
	)
	switch opts.Driver {
	case "", DriverFramebuffer:
		d, err = OpenFramebuffer(opts.Device, opts.Rotation)
	case DriverI2C:
		d, err = OpenI2C(opts.Bus, opts.Address, opts.Rotation)
	case DriverLog:
		return NewLog(opts.Rotation), nil
	default:
		err = fmt.Errorf("unknown sink driver %q", opts.Driver)
	}

	if err != nil {
		if opts.Strict {
			return nil, err
		}
		log.Warn().Err(err).Str("driver", opts.Driver).Msg("Sink init failed; falling back to log driver")
		return NewLog(opts.Rotation), nil
	}

	log.Info().Str("driver", opts.Driver).Int("rotation", opts.Rotation).Msg("Pixel sink opened")
	return d, nil
}

// Frame is an 8x8 grid indexed [y][x].
type Frame [size][size]color.RGB8

// Fill sets every cell.
func (f *Frame) Fill(c color.RGB8) {
	for y := range f {
		for x := range f[y] {
			f[y][x] = c
		}
	}
}

// Rotated returns the frame as it appears after rotating by deg clockwise.
func (f Frame) Rotated(deg int) Frame {
	var out Frame
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			rx, ry := rotate(x, y, deg)
			out[ry][rx] = f[y][x]
		}
	}
	return out
}

// Hex renders each row as "rrggbb" cells separated by spaces.
func (f Frame) Hex() []string {
	rows := make([]string, size)
	for y := range f {
		s := ""
		for x, c := range f[y] {
			if x > 0 {
				s += " "
			}
			s += fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
		}
		rows[y] = s
	}
	return rows
}

func checkRotation(deg int) error {
	switch deg {
	case 0, 90, 180, 270:
		return nil
	}
	return fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", deg)
}

// rotate maps logical coordinates to physical ones.
func rotate(x, y, deg int) (int, int) {
	switch deg {
	case 90:
		return size - 1 - y, x
	case 180:
		return size - 1 - x, size - 1 - y
	case 270:
		return y, size - 1 - x
	default:
		return x, y
	}
}

func checkBounds(x, y int) error {
	if x < 0 || x >= size || y < 0 || y >= size {
		return fmt.Errorf("pixel (%d,%d) out of range", x, y)
	}
	return nil
}
