package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dokzlo13/sensehatd/internal/color"
)

// senseFBName is what the Sense HAT kernel driver reports in
// /sys/class/graphics/fb*/name.
const senseFBName = "RPi-Sense FB"

const DefaultFramebuffer = "/dev/fb1"

// Device is the writable end of a framebuffer.
type Device interface {
	io.WriterAt
	io.Closer
}

// Framebuffer writes RGB565 little-endian pixels to a Linux framebuffer.
type Framebuffer struct {
	mu       sync.Mutex
	dev      Device
	rotation int
	frame    Frame
	buf      [size * size * 2]byte
}

// OpenFramebuffer opens path, or looks the Sense HAT framebuffer up in
// sysfs when path is empty.
func OpenFramebuffer(path string, rotation int) (*Framebuffer, error) {
	if path == "" {
		path = findSenseFB()
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open framebuffer %s: %w", path, err)
	}
	return NewFramebuffer(f, rotation), nil
}

// NewFramebuffer wraps an already opened device.
func NewFramebuffer(dev Device, rotation int) *Framebuffer {
	return &Framebuffer{dev: dev, rotation: rotation}
}

func (fb *Framebuffer) Fill(c color.RGB8) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.frame.Fill(c)
	px := pack565(c)
	for i := 0; i < size*size; i++ {
		binary.LittleEndian.PutUint16(fb.buf[i*2:], px)
	}
	if _, err := fb.dev.WriteAt(fb.buf[:], 0); err != nil {
		return fmt.Errorf("framebuffer write: %w", err)
	}
	return nil
}

func (fb *Framebuffer) SetPixel(x, y int, c color.RGB8) error {
	if err := checkBounds(x, y); err != nil {
		return err
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.frame[y][x] = c
	px, py := rotate(x, y, fb.rotation)
	off := (py*size + px) * 2
	binary.LittleEndian.PutUint16(fb.buf[off:], pack565(c))
	if _, err := fb.dev.WriteAt(fb.buf[off:off+2], int64(off)); err != nil {
		return fmt.Errorf("framebuffer write: %w", err)
	}
	return nil
}

func (fb *Framebuffer) Frame() Frame {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.frame
}

func (fb *Framebuffer) Close() error {
	return fb.dev.Close()
}

// pack565 keeps the top 5/6/5 bits of each channel.
func pack565(c color.RGB8) uint16 {
	r := uint16(c.R>>3) & 0x1F
	g := uint16(c.G>>2) & 0x3F
	b := uint16(c.B>>3) & 0x1F
	return r<<11 | g<<5 | b
}

func findSenseFB() string {
	names, _ := filepath.Glob("/sys/class/graphics/fb*/name")
	for _, n := range names {
		data, err := os.ReadFile(n)
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == senseFBName {
			return filepath.Join("/dev", filepath.Base(filepath.Dir(n)))
		}
	}
	return DefaultFramebuffer
}
