package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/config"
	"github.com/dokzlo13/sensehatd/internal/db"
	"github.com/dokzlo13/sensehatd/internal/eventbus"
	"github.com/dokzlo13/sensehatd/internal/ledger"
	"github.com/dokzlo13/sensehatd/internal/storage"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB        *db.DB
	Ledger    *ledger.Ledger
	Store     *storage.Store
	Snapshots *storage.PanelSnapshots
	Bus       *eventbus.Bus

	// High-level services
	Panel   *PanelService
	Sensors *SensorService
	Lua     *LuaService // nil without a script
	Events  *EventService
	HTTP    *HTTPService // nil when disabled
	Cleanup *LedgerService

	closeOnce sync.Once
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB)
	s.Store = storage.NewStore(database.DB)
	s.Snapshots = storage.NewPanelSnapshots(s.Store)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	s.Panel, err = NewPanelService(cfg, s.Bus, s.Snapshots)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Sensors = NewSensorService(cfg, s.Bus)

	if cfg.Script != "" {
		s.Lua = NewLuaService(cfg, s.Panel.Panel, s.Sensors.Poller)
	}

	s.Events = NewEventService(s.Bus, s.Ledger, s.Snapshots, s.Lua)
	s.HTTP = NewHTTPService(cfg, s.Panel, s.Sensors, s.Ledger)
	s.Cleanup = NewLedgerService(cfg, s.Ledger)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a background service cannot continue.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Handlers first so the initial panel state is persisted
	s.Events.Start(ctx)

	if err := s.Panel.Start(ctx); err != nil {
		return err
	}

	// The script runs after the initial state is applied and before the
	// worker starts
	if s.Lua != nil {
		if err := s.Lua.LoadScript(); err != nil {
			return err
		}
	}

	if s.Lua != nil {
		s.Lua.Start(ctx)
	}
	s.Sensors.Start(ctx)
	s.Cleanup.Start(ctx)
	s.HTTP.Start(ctx, onFatalError)

	return nil
}

// ClearState drops the persisted panel snapshots.
func (s *Services) ClearState() error {
	n, err := s.Store.Clear(storage.KindPanel)
	if err != nil {
		return err
	}
	log.Info().Int64("snapshots", n).Msg("Cleared panel state")
	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources. The panel stops blinking before the event
// bus drains, so the final snapshot is persisted before the database closes.
func (s *Services) Close() {
	s.closeOnce.Do(s.close)
}

func (s *Services) close() {
	timeout := s.cfg.ShutdownTimeout.Duration()

	// Requests still in flight may touch the panel or the database
	s.HTTP.Wait(timeout)

	if s.Panel != nil {
		s.Panel.Stop()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		s.Bus.Close(ctx)
		cancel()
		for t, st := range s.Bus.Stats() {
			log.Debug().
				Str("event_type", string(t)).
				Uint64("queued", st.Queued).
				Uint64("dropped", st.Dropped).
				Uint64("panics", st.Panics).
				Msg("Event bus stats")
		}
	}
	if s.Lua != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		s.Lua.Close(ctx)
		cancel()
	}
	if s.Panel != nil {
		s.Panel.Close()
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}
