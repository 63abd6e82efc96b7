package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/eventbus"
	"github.com/dokzlo13/sensehatd/internal/ledger"
	"github.com/dokzlo13/sensehatd/internal/panel"
	"github.com/dokzlo13/sensehatd/internal/storage"
)

// EventService handles event bus subscriptions: snapshot persistence,
// ledger entries and script callbacks.
type EventService struct {
	bus       *eventbus.Bus
	ledger    *ledger.Ledger
	snapshots *storage.PanelSnapshots
	luaSvc    *LuaService // may be nil
}

// NewEventService creates a new EventService.
func NewEventService(bus *eventbus.Bus, l *ledger.Ledger, snapshots *storage.PanelSnapshots, luaSvc *LuaService) *EventService {
	return &EventService{
		bus:       bus,
		ledger:    l,
		snapshots: snapshots,
		luaSvc:    luaSvc,
	}
}

// Start sets up all event handlers.
func (s *EventService) Start(ctx context.Context) {
	s.bus.Subscribe(eventbus.EventTypePanelState, s.handlePanelState)
	s.bus.Subscribe(eventbus.EventTypeSinkFailure, s.handleSinkFailure)
	s.bus.Subscribe(eventbus.EventTypeSensorReading, func(event eventbus.Event) {
		s.handleSensorReading(ctx, event)
	})
}

func (s *EventService) handlePanelState(event eventbus.Event) {
	name, _ := event.Data["panel"].(string)
	st, ok := event.Data["state"].(panel.State)
	if !ok {
		log.Error().Str("panel", name).Msg("Panel state event without snapshot")
		return
	}

	saved, err := s.snapshots.Save(name, st)
	if err != nil {
		log.Error().Err(err).Str("panel", name).Msg("Failed to persist panel snapshot")
		return
	}
	if !saved {
		return
	}

	if _, err := s.ledger.Append(ledger.EventPanelChanged, name, withoutKey(event.Data, "state")); err != nil {
		log.Error().Err(err).Str("panel", name).Msg("Failed to record panel change")
	}
}

func (s *EventService) handleSinkFailure(event eventbus.Event) {
	name, _ := event.Data["panel"].(string)
	log.Warn().
		Str("panel", name).
		Interface("op", event.Data["op"]).
		Interface("error", event.Data["error"]).
		Msg("Pixel sink write failed")

	if _, err := s.ledger.Append(ledger.EventSinkFailed, name, event.Data); err != nil {
		log.Error().Err(err).Msg("Failed to record sink failure")
	}
}

func (s *EventService) handleSensorReading(ctx context.Context, event eventbus.Event) {
	if _, err := s.ledger.Append(ledger.EventSensorRead, "sensors", event.Data); err != nil {
		log.Error().Err(err).Msg("Failed to record sensor reading")
	}
	if s.luaSvc != nil {
		s.luaSvc.DispatchReading(ctx, event.Data)
	}
}

func withoutKey(m map[string]interface{}, key string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}
