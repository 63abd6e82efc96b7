package modules

import (
	"context"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/sensehatd/internal/sensors"
)

// SensorReader provides readings, satisfied by *sensors.Poller.
type SensorReader interface {
	Reading(ctx context.Context) (sensors.Reading, error)
}

// SensorsModule provides sensor access and reading callbacks to Lua.
// Handlers are only touched from the Lua worker goroutine.
type SensorsModule struct {
	reader   SensorReader
	handlers []*lua.LFunction
}

// NewSensorsModule creates a new sensors module. reader may be nil when
// sensors are disabled.
func NewSensorsModule(reader SensorReader) *SensorsModule {
	return &SensorsModule{reader: reader}
}

// Loader is the module loader for Lua
func (m *SensorsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "read", L.NewFunction(m.read))
	L.SetField(mod, "on_reading", L.NewFunction(m.onReading))

	L.Push(mod)
	return 1
}

// read() -> (reading, err)
func (m *SensorsModule) read(L *lua.LState) int {
	if m.reader == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("sensors are disabled"))
		return 2
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := m.reader.Reading(ctx)
	if err != nil && r.At.IsZero() {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(tableOf(L, ReadingToMap(r)))
	L.Push(lua.LNil)
	return 2
}

// on_reading(fn) - fn(reading) runs for every published reading
func (m *SensorsModule) onReading(L *lua.LState) int {
	m.handlers = append(m.handlers, L.CheckFunction(1))
	return 0
}

// Dispatch calls every on_reading handler.
// MUST be called from the Lua worker goroutine.
func (m *SensorsModule) Dispatch(L *lua.LState, reading map[string]any) {
	for _, fn := range m.handlers {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, tableOf(L, reading)); err != nil {
			log.Error().Err(err).Msg("Lua on_reading handler failed")
		}
	}
}

// ReadingToMap is the table form of a reading shared by Lua and events.
func ReadingToMap(r sensors.Reading) map[string]any {
	return map[string]any{
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
		"pressure":    r.Pressure,
		"at":          r.At.Unix(),
	}
}
