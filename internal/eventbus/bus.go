// Package eventbus fans daemon events (panel state changes, sensor readings,
// sink failures) out to subscribers on a bounded worker pool.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event
type EventType string

const (
	EventTypePanelState    EventType = "panel_state"
	EventTypeSensorReading EventType = "sensor_reading"
	EventTypeSinkFailure   EventType = "sink_failure"
)

// Default configuration
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

// Event represents an event in the system
type Event struct {
	Type EventType
	Data map[string]interface{}
}

// Handler is a function that handles events
type Handler func(Event)

// Stats counts deliveries for one event type.
type Stats struct {
	Queued  uint64
	Dropped uint64
	Panics  uint64
}

type counters struct {
	queued, dropped, panics atomic.Uint64
}

type delivery struct {
	event   Event
	handler Handler
	stats   *counters
}

// Bus routes events to handlers. Publish never blocks the publisher: the
// panel controller and the sensor poller call it from their hot paths.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	stats    map[EventType]*counters
	// closed is set under the write lock; publishers enqueue under the read
	// lock, so queue is never closed under them
	closed bool

	queue     chan delivery
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a new event bus with custom worker count and queue size
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize < 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		handlers: make(map[EventType][]Handler),
		stats:    make(map[EventType]*counters),
		queue:    make(chan delivery, queueSize),
	}

	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for d := range b.queue {
		b.deliver(id, d)
	}
}

func (b *Bus) deliver(worker int, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			d.stats.panics.Add(1)
			log.Error().
				Interface("panic", r).
				Str("event_type", string(d.event.Type)).
				Int("worker", worker).
				Msg("Event handler panicked")
		}
	}()
	d.handler(d.event)
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.countersLocked(eventType)
}

// Publish queues the event for every handler of its type and returns how
// many deliveries were queued. Deliveries that do not fit in the queue, and
// everything published after Close, are dropped.
func (b *Bus) Publish(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := b.handlers[event.Type]
	if len(handlers) == 0 {
		return 0
	}
	stats := b.stats[event.Type]

	if b.closed {
		stats.dropped.Add(uint64(len(handlers)))
		log.Debug().Str("event_type", string(event.Type)).Msg("Event bus closed, dropping event")
		return 0
	}

	queued := 0
	for _, handler := range handlers {
		select {
		case b.queue <- delivery{event: event, handler: handler, stats: stats}:
			stats.queued.Add(1)
			queued++
		default:
			stats.dropped.Add(1)
			log.Warn().
				Str("event_type", string(event.Type)).
				Int("queue_len", len(b.queue)).
				Msg("Event bus queue full, dropping event")
		}
	}
	return queued
}

// Stats returns delivery counters per event type that has subscribers.
func (b *Bus) Stats() map[EventType]Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[EventType]Stats, len(b.stats))
	for t, c := range b.stats {
		out[t] = Stats{
			Queued:  c.queued.Load(),
			Dropped: c.dropped.Load(),
			Panics:  c.panics.Load(),
		}
	}
	return out
}

// Close stops accepting events and waits until queued deliveries have run
// or ctx is done.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Int("pending", len(b.queue)).Msg("Event bus shutdown timed out, some events may be lost")
	}
}

func (b *Bus) countersLocked(t EventType) *counters {
	c, ok := b.stats[t]
	if !ok {
		c = &counters{}
		b.stats[t] = c
	}
	return c
}
