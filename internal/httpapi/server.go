// Package httpapi serves the bridge-facing HTTP API for the light and
// sensor accessories.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/sensehatd/internal/accessory"
	"github.com/dokzlo13/sensehatd/internal/sensors"
	"github.com/dokzlo13/sensehatd/internal/sink"
)

// Light is the accessory surface the API drives.
type Light interface {
	Name() string
	Status() accessory.Status
	SetPower(on bool) error
	SetBrightness(pct float64) error
	SetSaturation(pct float64) error
	SetHue(deg float64) error
	SetBlink(enable bool) error
	SetPixel(x, y int, hue, saturation, brightness float64) error
}

// Sensors provides readings for GET /sensors.
type Sensors interface {
	Reading(ctx context.Context) (sensors.Reading, error)
}

// Option configures a Server.
type Option func(*Server)

// WithSensors enables GET /sensors.
func WithSensors(src Sensors) Option {
	return func(s *Server) { s.sensors = src }
}

// WithFrame enables GET /light/frame.
func WithFrame(fn func() sink.Frame) Option {
	return func(s *Server) { s.frame = fn }
}

// WithReadiness sets the check behind GET /ready.
func WithReadiness(fn func() error) Option {
	return func(s *Server) { s.ready = fn }
}

// WithRateLimit throttles write requests. Requests wait for a token
// instead of being rejected.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// Server is the bridge HTTP API.
type Server struct {
	addr    string
	light   Light
	sensors Sensors
	frame   func() sink.Frame
	ready   func() error
	history History
	limiter *rate.Limiter

	httpServer *http.Server
}

// NewServer creates a new API server listening on addr.
func NewServer(addr string, light Light, opts ...Option) *Server {
	s := &Server{
		addr:  addr,
		light: light,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	mux.HandleFunc("GET /light", s.handleGetLight)
	mux.HandleFunc("PUT /light/{characteristic}", s.throttled(s.handleSetCharacteristic))
	mux.HandleFunc("POST /light/pixel", s.throttled(s.handleSetPixel))
	mux.HandleFunc("GET /light/frame", s.handleGetFrame)

	mux.HandleFunc("GET /sensors", s.handleGetSensors)
	mux.HandleFunc("GET /history", s.handleGetHistory)

	return mux
}

// Run listens on the configured address and serves until the context is
// cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve accepts connections on ln until the context is cancelled. It returns
// only after the graceful shutdown has finished, so in-flight requests are
// done when it returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("Starting HTTP API server")

	served := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
		case <-served:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP API server shutdown error")
		}
	}()

	err := s.httpServer.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		close(served)
		return err
	}
	<-stopped
	return nil
}

// throttled waits for the write limiter before calling next.
func (s *Server) throttled(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			if err := s.limiter.Wait(r.Context()); err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Write request abandoned while throttled")
				writeError(w, http.StatusTooManyRequests, err)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
