package sink

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/color"
)

// Log is a simulated matrix that only records and logs writes.
type Log struct {
	mu       sync.Mutex
	rotation int
	frame    Frame
	writes   int
}

func NewLog(rotation int) *Log {
	return &Log{rotation: rotation}
}

func (l *Log) Fill(c color.RGB8) error {
	l.mu.Lock()
	l.frame.Fill(c)
	l.writes++
	n := l.writes
	l.mu.Unlock()

	log.Debug().Str("rgb", c.String()).Int("write", n).Msg("Sim fill")
	return nil
}

func (l *Log) SetPixel(x, y int, c color.RGB8) error {
	if err := checkBounds(x, y); err != nil {
		return err
	}
	l.mu.Lock()
	l.frame[y][x] = c
	l.writes++
	n := l.writes
	l.mu.Unlock()

	px, py := rotate(x, y, l.rotation)
	log.Debug().
		Int("x", x).Int("y", y).
		Int("phys_x", px).Int("phys_y", py).
		Str("rgb", c.String()).
		Int("write", n).
		Msg("Sim pixel")
	return nil
}

func (l *Log) Frame() Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame
}

// Writes returns the number of writes seen so far.
func (l *Log) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

func (l *Log) Close() error {
	log.Debug().Int("writes", l.Writes()).Msg("Sim sink closed")
	return nil
}
