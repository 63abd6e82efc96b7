package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/config"
	"github.com/dokzlo13/sensehatd/internal/httpapi"
	"github.com/dokzlo13/sensehatd/internal/ledger"
)

// HTTPService exposes the light and sensors to the bridge over HTTP.
type HTTPService struct {
	cfg    *config.Config
	Server *httpapi.Server

	done chan struct{}
}

// NewHTTPService creates a new HTTPService. It returns nil if HTTP is disabled.
func NewHTTPService(cfg *config.Config, panelSvc *PanelService, sensorSvc *SensorService, history *ledger.Ledger) *HTTPService {
	if !cfg.HTTP.IsEnabled() {
		return nil
	}

	opts := []httpapi.Option{
		httpapi.WithFrame(panelSvc.Sink.Frame),
		httpapi.WithReadiness(panelSvc.Ready),
		httpapi.WithRateLimit(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateBurst),
		httpapi.WithHistory(history),
	}
	if sensorSvc.Accessory != nil {
		opts = append(opts, httpapi.WithSensors(sensorSvc.Accessory))
	}

	return &HTTPService{
		cfg:    cfg,
		Server: httpapi.NewServer(cfg.HTTP.Addr(), panelSvc.Light, opts...),
	}
}

// Start runs the server in the background. A listener failure triggers onFatalError.
func (s *HTTPService) Start(ctx context.Context, onFatalError func(error)) {
	if s == nil {
		return
	}
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.Server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			onFatalError(err)
		}
	}()
}

// Wait blocks until the server has finished shutting down or the timeout
// expires. The server stops when the context passed to Start is cancelled.
func (s *HTTPService) Wait(timeout time.Duration) {
	if s == nil || s.done == nil {
		return
	}
	select {
	case <-s.done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("HTTP server did not stop in time")
	}
}
