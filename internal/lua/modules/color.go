package modules

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/sensehatd/internal/color"
)

const colorTypeName = "color"

// ColorModule provides color construction to Lua.
// Colors are immutable userdata; methods return new values.
type ColorModule struct{}

// NewColorModule creates a new color module
func NewColorModule() *ColorModule {
	return &ColorModule{}
}

// RegisterColorType registers the color metatable. It must run before any
// module that hands out colors is loaded.
func RegisterColorType(L *lua.LState) {
	mt := L.NewTypeMetatable(colorTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), colorMethods))
	L.SetField(mt, "__tostring", L.NewFunction(colorToString))
	L.SetField(mt, "__eq", L.NewFunction(colorEq))
}

var colorMethods = map[string]lua.LGFunction{
	"hue":             colorHue,
	"saturation":      colorSaturation,
	"value":           colorValue,
	"rgb":             colorRGB,
	"with_hue":        colorWithHue,
	"with_saturation": colorWithSaturation,
	"with_value":      colorWithValue,
}

// Loader is the module loader for Lua
func (m *ColorModule) Loader(L *lua.LState) int {
	mod := L.NewTable()
	L.SetField(mod, "hsv", L.NewFunction(m.hsv))
	L.SetField(mod, "degrees", L.NewFunction(m.degrees))
	L.SetField(mod, "named", L.NewFunction(m.named))
	L.SetField(mod, "rgb", L.NewFunction(colorRGB))

	for _, name := range color.PresetNames() {
		c, _ := color.Named(name)
		L.SetField(mod, name, newColorUD(L, c))
	}

	L.Push(mod)
	return 1
}

// hsv(h, s, v) -> color, components on [0,1]
func (m *ColorModule) hsv(L *lua.LState) int {
	c := color.FromHSV(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
	L.Push(newColorUD(L, c))
	return 1
}

// degrees(h, s, v) -> color, hue in degrees, saturation and value in percent
func (m *ColorModule) degrees(L *lua.LState) int {
	c := color.FromDegrees(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
	L.Push(newColorUD(L, c))
	return 1
}

// named(name) -> (color, err)
func (m *ColorModule) named(L *lua.LState) int {
	name := L.CheckString(1)
	c, ok := color.Named(name)
	if !ok {
		L.Push(lua.LNil)
		L.Push(lua.LString("unknown color: " + name))
		return 2
	}
	L.Push(newColorUD(L, c))
	L.Push(lua.LNil)
	return 2
}

func newColorUD(L *lua.LState, c color.Color) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = c
	L.SetMetatable(ud, L.GetTypeMetatable(colorTypeName))
	return ud
}

// CheckColor retrieves a color argument.
func CheckColor(L *lua.LState, n int) color.Color {
	ud := L.CheckUserData(n)
	if c, ok := ud.Value.(color.Color); ok {
		return c
	}
	L.ArgError(n, "color expected")
	return color.Color{}
}

func colorHue(L *lua.LState) int {
	L.Push(lua.LNumber(CheckColor(L, 1).Hue()))
	return 1
}

func colorSaturation(L *lua.LState) int {
	L.Push(lua.LNumber(CheckColor(L, 1).Saturation()))
	return 1
}

func colorValue(L *lua.LState) int {
	L.Push(lua.LNumber(CheckColor(L, 1).Value()))
	return 1
}

// c:rgb() -> r, g, b as 0-255 integers
func colorRGB(L *lua.LState) int {
	rgb := CheckColor(L, 1).RGB8()
	L.Push(lua.LNumber(rgb.R))
	L.Push(lua.LNumber(rgb.G))
	L.Push(lua.LNumber(rgb.B))
	return 3
}

func colorWithHue(L *lua.LState) int {
	c := CheckColor(L, 1)
	L.Push(newColorUD(L, c.WithHue(float64(L.CheckNumber(2)))))
	return 1
}

func colorWithSaturation(L *lua.LState) int {
	c := CheckColor(L, 1)
	L.Push(newColorUD(L, c.WithSaturation(float64(L.CheckNumber(2)))))
	return 1
}

func colorWithValue(L *lua.LState) int {
	c := CheckColor(L, 1)
	L.Push(newColorUD(L, c.WithValue(float64(L.CheckNumber(2)))))
	return 1
}

func colorToString(L *lua.LState) int {
	L.Push(lua.LString(CheckColor(L, 1).String()))
	return 1
}

func colorEq(L *lua.LState) int {
	L.Push(lua.LBool(CheckColor(L, 1).RGB8() == CheckColor(L, 2).RGB8()))
	return 1
}
