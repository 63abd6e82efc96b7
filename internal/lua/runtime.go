// Package lua hosts the optional automation script. A single worker
// goroutine owns the Lua state; everything else hands it work through the
// queue.
package lua

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/sensehatd/internal/lua/modules"
)

// DefaultQueueSize is the work queue capacity when RuntimeDeps leaves it unset.
const DefaultQueueSize = 100

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = errors.New("lua runtime closed")

// LuaWork is a unit of work run on the worker goroutine.
type LuaWork func(ctx context.Context)

// Runtime owns the Lua state and its worker.
type Runtime struct {
	L    *lua.LState
	deps RuntimeDeps

	sensors *modules.SensorsModule

	queue     chan LuaWork
	closing   chan struct{}
	closeOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
}

// NewRuntime creates the Lua state and preloads the log, color, panel and
// sensors modules. Scripts load them with require.
func NewRuntime(deps RuntimeDeps) *Runtime {
	size := deps.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	r := &Runtime{
		L:       lua.NewState(),
		deps:    deps,
		queue:   make(chan LuaWork, size),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	modules.RegisterColorType(r.L)
	r.L.PreloadModule("log", modules.NewLogModule(deps.ScriptName).Loader)
	r.L.PreloadModule("color", modules.NewColorModule().Loader)
	if deps.Panel != nil {
		r.L.PreloadModule("panel", modules.NewPanelModule(deps.Panel).Loader)
	}
	r.sensors = modules.NewSensorsModule(deps.Sensors)
	r.L.PreloadModule("sensors", r.sensors.Loader)

	return r
}

// LoadScript runs the script on the calling goroutine. It must be called
// before Start. Relative paths that do not exist in the working directory
// are resolved against BaseDir.
func (r *Runtime) LoadScript(path string) error {
	if !filepath.IsAbs(path) && r.deps.BaseDir != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = filepath.Join(r.deps.BaseDir, path)
		}
	}

	log.Info().Str("path", path).Msg("Loading Lua script")
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}
	log.Info().Str("path", path).Msg("Lua script loaded")
	return nil
}

// Start launches the worker goroutine.
func (r *Runtime) Start(ctx context.Context) {
	r.started.Store(true)
	go r.run(ctx)
}

func (r *Runtime) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.drain(ctx)
			return
		case <-r.closing:
			r.drain(ctx)
			return
		case work := <-r.queue:
			r.execute(ctx, work)
		}
	}
}

func (r *Runtime) drain(ctx context.Context) {
	for {
		select {
		case work := <-r.queue:
			r.execute(ctx, work)
		default:
			return
		}
	}
}

func (r *Runtime) execute(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Lua work panicked, worker continuing")
		}
	}()
	// modules read the request context through L.Context()
	r.L.SetContext(ctx)
	work(ctx)
}

// Close stops accepting work, waits for the worker to drain the queue (if
// it was started) and closes the Lua state. If ctx ends first the state is
// left open, since the worker may still be using it.
func (r *Runtime) Close(ctx context.Context) {
	r.closeOnce.Do(func() { close(r.closing) })

	if r.started.Load() {
		select {
		case <-r.done:
		case <-ctx.Done():
			log.Warn().Msg("Lua runtime shutdown timed out")
			return
		}
	}
	r.L.Close()
}

// Do queues work without blocking. It reports false, and drops the work,
// when the runtime is closing, ctx is done or the queue is full.
func (r *Runtime) Do(ctx context.Context, work LuaWork) bool {
	err := r.enqueue(ctx, work, false)
	if err != nil {
		log.Warn().Err(err).Msg("Dropping Lua work")
	}
	return err == nil
}

// DoSync queues work, waiting for queue space.
func (r *Runtime) DoSync(ctx context.Context, work LuaWork) error {
	return r.enqueue(ctx, work, true)
}

// Eval runs fn on the worker and waits for its result.
func (r *Runtime) Eval(ctx context.Context, fn func(L *lua.LState) error) error {
	result := make(chan error, 1)
	if err := r.enqueue(ctx, func(context.Context) { result <- fn(r.L) }, true); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DispatchReading queues the on_reading handlers for a sensor reading.
func (r *Runtime) DispatchReading(ctx context.Context, reading map[string]any) bool {
	return r.Do(ctx, func(context.Context) {
		r.sensors.Dispatch(r.L, reading)
	})
}

var errQueueFull = errors.New("lua work queue full")

func (r *Runtime) enqueue(ctx context.Context, work LuaWork, wait bool) error {
	// checked first: select picks randomly between a closed channel and a
	// free queue slot
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	default:
	}

	if !wait {
		select {
		case r.queue <- work:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			return errQueueFull
		}
	}

	select {
	case r.queue <- work:
		return nil
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
