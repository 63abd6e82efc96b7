package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewWithConfig(2, 10)

	var wg sync.WaitGroup
	var got atomic.Int32
	handler := func(e Event) {
		defer wg.Done()
		assert.Equal(t, 21.5, e.Data["temperature"])
		got.Add(1)
	}
	bus.Subscribe(EventTypeSensorReading, handler)
	bus.Subscribe(EventTypeSensorReading, handler)

	wg.Add(2)
	n := bus.Publish(Event{Type: EventTypeSensorReading, Data: map[string]interface{}{"temperature": 21.5}})
	assert.Equal(t, 2, n)
	wg.Wait()
	assert.Equal(t, int32(2), got.Load())

	assert.Equal(t, 0, bus.Publish(Event{Type: EventTypeSinkFailure}), "no subscribers")
	bus.Close(context.Background())
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewWithConfig(1, 1)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Subscribe(EventTypePanelState, func(Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	require.Equal(t, 1, bus.Publish(Event{Type: EventTypePanelState}))
	<-started // worker is busy, queue is empty
	require.Equal(t, 1, bus.Publish(Event{Type: EventTypePanelState}))
	assert.Equal(t, 0, bus.Publish(Event{Type: EventTypePanelState}), "queue full")

	close(release)
	bus.Close(context.Background())

	st := bus.Stats()[EventTypePanelState]
	assert.Equal(t, uint64(2), st.Queued)
	assert.Equal(t, uint64(1), st.Dropped)
}

func TestHandlerPanicDoesNotKillWorker(t *testing.T) {
	bus := NewWithConfig(1, 10)
	done := make(chan struct{})
	bus.Subscribe(EventTypeSinkFailure, func(e Event) {
		if e.Data["panic"] == true {
			panic("boom")
		}
		close(done)
	})

	bus.Publish(Event{Type: EventTypeSinkFailure, Data: map[string]interface{}{"panic": true}})
	bus.Publish(Event{Type: EventTypeSinkFailure})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second event not handled")
	}
	bus.Close(context.Background())
	assert.Equal(t, uint64(1), bus.Stats()[EventTypeSinkFailure].Panics)
}

func TestPublishAfterCloseIsSafe(t *testing.T) {
	bus := New()
	bus.Subscribe(EventTypePanelState, func(Event) {})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(Event{Type: EventTypePanelState})
			}
		}()
	}
	bus.Close(context.Background())
	wg.Wait()

	assert.Equal(t, 0, bus.Publish(Event{Type: EventTypePanelState}))
	st := bus.Stats()[EventTypePanelState]
	assert.Equal(t, uint64(401), st.Queued+st.Dropped)
	assert.NotPanics(t, func() { bus.Close(context.Background()) })
}
