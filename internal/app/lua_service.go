package app

import (
	"context"
	"path/filepath"

	"github.com/dokzlo13/sensehatd/internal/config"
	luart "github.com/dokzlo13/sensehatd/internal/lua"
	"github.com/dokzlo13/sensehatd/internal/panel"
	"github.com/dokzlo13/sensehatd/internal/sensors"
)

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
}

// NewLuaService creates a new LuaService. poller may be nil.
func NewLuaService(cfg *config.Config, ctrl *panel.Controller, poller *sensors.Poller) *LuaService {
	deps := luart.RuntimeDeps{
		Panel:      ctrl,
		BaseDir:    cfg.Dir,
		ScriptName: filepath.Base(cfg.Script),
	}
	// a nil *Poller must not become a non-nil interface
	if poller != nil {
		deps.Sensors = poller
	}

	return &LuaService{
		cfg:     cfg,
		Runtime: luart.NewRuntime(deps),
	}
}

// LoadScript loads and executes the Lua script.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start begins the Lua worker goroutine, the only goroutine that touches Lua
// after the script is loaded.
func (s *LuaService) Start(ctx context.Context) {
	s.Runtime.Start(ctx)
}

// DispatchReading hands a sensor reading to the script's on_reading handlers.
func (s *LuaService) DispatchReading(ctx context.Context, reading map[string]any) bool {
	return s.Runtime.DispatchReading(ctx, reading)
}

// Do queues work to be executed on the Lua VM.
func (s *LuaService) Do(ctx context.Context, work luart.LuaWork) bool {
	return s.Runtime.Do(ctx, work)
}

// Close closes the Lua runtime.
func (s *LuaService) Close(ctx context.Context) {
	if s.Runtime != nil {
		s.Runtime.Close(ctx)
	}
}
