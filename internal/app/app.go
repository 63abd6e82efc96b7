// Package app wires the panel, sensors, storage, scripting and HTTP services
// together and runs them until shutdown.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/config"
)

// App owns the service container and the run context.
type App struct {
	cfg      *config.Config
	services *Services

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds every service. Nothing runs and nothing is written to the LEDs
// until Start.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// Services exposes the service container.
func (a *App) Services() *Services {
	return a.services
}

// ClearState drops the persisted panel state so the configured defaults
// apply on this start. Call it before Start.
func (a *App) ClearState() error {
	return a.services.ClearState()
}

// Start applies the initial panel state and launches the background
// services. A background failure cancels the run context.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	fatal := func(err error) {
		log.Error().Err(err).Msg("Fatal error, initiating shutdown")
		a.cancel()
	}
	if err := a.services.Start(a.ctx, fatal); err != nil {
		a.cancel()
		return err
	}

	log.Info().
		Str("panel", a.cfg.Panel.Name).
		Str("driver", a.cfg.Sink.Driver).
		Bool("http", a.cfg.HTTP.IsEnabled()).
		Bool("sensors", a.cfg.Sensors.IsEnabled()).
		Msg("sensehatd started")
	return nil
}

// Run starts the app, blocks until ctx is cancelled or a background service
// fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		a.Stop()
		return err
	}
	<-a.ctx.Done()
	return a.Stop()
}

// Stop cancels the run context and releases every service.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")
	if a.cancel != nil {
		a.cancel()
	}
	return a.services.Stop()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
