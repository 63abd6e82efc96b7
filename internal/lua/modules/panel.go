package modules

import (
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/sensehatd/internal/color"
	"github.com/dokzlo13/sensehatd/internal/panel"
)

// PanelAPI is the panel surface exposed to scripts, satisfied by
// *panel.Controller.
type PanelAPI interface {
	State() panel.State
	On() error
	Off() error
	Fill(c color.Color) error
	SetPixel(x, y int, c color.Color) error
	Blink(enable bool, period time.Duration) error
}

// PanelModule provides LED panel control to Lua.
// Every mutating function returns (true, nil) or (nil, err).
type PanelModule struct {
	panel PanelAPI
}

// NewPanelModule creates a new panel module
func NewPanelModule(p PanelAPI) *PanelModule {
	return &PanelModule{panel: p}
}

// Loader is the module loader for Lua
func (m *PanelModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "on", L.NewFunction(m.on))
	L.SetField(mod, "off", L.NewFunction(m.off))
	L.SetField(mod, "fill", L.NewFunction(m.fill))
	L.SetField(mod, "set_pixel", L.NewFunction(m.setPixel))
	L.SetField(mod, "blink", L.NewFunction(m.blink))
	L.SetField(mod, "state", L.NewFunction(m.state))
	L.SetField(mod, "width", lua.LNumber(panel.Width))
	L.SetField(mod, "height", lua.LNumber(panel.Height))

	L.Push(mod)
	return 1
}

func (m *PanelModule) on(L *lua.LState) int {
	return pushResult(L, "on", m.panel.On())
}

func (m *PanelModule) off(L *lua.LState) int {
	return pushResult(L, "off", m.panel.Off())
}

// fill(color)
func (m *PanelModule) fill(L *lua.LState) int {
	return pushResult(L, "fill", m.panel.Fill(CheckColor(L, 1)))
}

// set_pixel(x, y, color) with zero-based coordinates
func (m *PanelModule) setPixel(L *lua.LState) int {
	x := L.CheckInt(1)
	y := L.CheckInt(2)
	c := CheckColor(L, 3)
	return pushResult(L, "set_pixel", m.panel.SetPixel(x, y, c))
}

// blink(enable, period_ms?)
func (m *PanelModule) blink(L *lua.LState) int {
	enable := L.CheckBool(1)
	period := time.Duration(L.OptInt(2, 0)) * time.Millisecond
	return pushResult(L, "blink", m.panel.Blink(enable, period))
}

// state() -> {power, blinking, blink_period_ms, seq, color}
func (m *PanelModule) state(L *lua.LState) int {
	st := m.panel.State()

	tbl := tableOf(L, map[string]any{
		"power":           st.Power,
		"blinking":        st.Blinking,
		"blink_period_ms": st.BlinkPeriod,
		"seq":             st.Seq,
		"color":           st.Color,
	})

	L.Push(tbl)
	return 1
}

func pushResult(L *lua.LState, op string, err error) int {
	if err != nil {
		log.Warn().Err(err).Str("source", "lua").Str("op", op).Msg("Panel operation failed")
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	L.Push(lua.LNil)
	return 2
}
