package modules

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// LogModule exposes zerolog to scripts:
//
//	log.info("panel dimmed", {brightness = 40})
type LogModule struct {
	logger zerolog.Logger
}

// NewLogModule creates a log module whose entries carry source=lua and the
// script name.
func NewLogModule(script string) *LogModule {
	return &LogModule{
		logger: log.With().Str("source", "lua").Str("script", script).Logger(),
	}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()
	for name, level := range map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	} {
		L.SetField(mod, name, L.NewFunction(m.at(level)))
	}
	L.Push(mod)
	return 1
}

// at returns a function (msg, fields?) logging at level.
func (m *LogModule) at(level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		event := m.logger.WithLevel(level)
		if tbl, ok := L.Get(2).(*lua.LTable); ok {
			tbl.ForEach(func(k, v lua.LValue) {
				event = event.Interface(lua.LVAsString(k), toGo(v))
			})
		}
		event.Msg(msg)
		return 0
	}
}
