package sink

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/dokzlo13/sensehatd/internal/color"
)

// DefaultI2CAddress is the ATtiny88 LED controller on the Sense HAT.
const DefaultI2CAddress = 0x46

// frame layout: register byte, then per row 8 red, 8 green, 8 blue 5-bit values
const i2cFrameLen = 1 + size*3*size

// I2C drives the LED matrix through the Sense HAT microcontroller.
type I2C struct {
	mu       sync.Mutex
	dev      *i2c.Dev
	bus      io.Closer
	rotation int
	frame    Frame
	buf      [i2cFrameLen]byte
}

// OpenI2C initialises the host drivers and opens the named bus
// (empty selects the first one found).
func OpenI2C(busName string, addr uint16, rotation int) (*I2C, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", busName, err)
	}
	d := NewI2C(bus, addr, rotation)
	d.bus = bus
	return d, nil
}

// NewI2C uses an already opened bus. The bus is not closed by Close.
func NewI2C(bus i2c.Bus, addr uint16, rotation int) *I2C {
	if addr == 0 {
		addr = DefaultI2CAddress
	}
	return &I2C{
		dev:      &i2c.Dev{Bus: bus, Addr: addr},
		rotation: rotation,
	}
}

func (d *I2C) Fill(c color.RGB8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame.Fill(c)
	return d.flush()
}

func (d *I2C) SetPixel(x, y int, c color.RGB8) error {
	if err := checkBounds(x, y); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame[y][x] = c
	return d.flush()
}

func (d *I2C) Frame() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

func (d *I2C) Close() error {
	if d.bus != nil {
		return d.bus.Close()
	}
	return nil
}

// flush rewrites the whole matrix; the controller has no per-pixel register.
func (d *I2C) flush() error {
	encodeI2CFrame(d.buf[:], d.frame.Rotated(d.rotation))
	if err := d.dev.Tx(d.buf[:], nil); err != nil {
		return fmt.Errorf("i2c write to 0x%02x: %w", d.dev.Addr, err)
	}
	return nil
}

func encodeI2CFrame(buf []byte, f Frame) {
	buf[0] = 0x00
	for y := 0; y < size; y++ {
		row := buf[1+y*size*3:]
		for x := 0; x < size; x++ {
			c := f[y][x]
			row[x] = c.R >> 3
			row[size+x] = c.G >> 3
			row[2*size+x] = c.B >> 3
		}
	}
}
