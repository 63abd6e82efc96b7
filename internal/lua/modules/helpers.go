package modules

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/sensehatd/internal/color"
)

// toGo converts a Lua value for logging and event payloads. Sequences
// become slices, other tables maps, colors their string form.
func toGo(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LUserData:
		if c, ok := val.Value.(color.Color); ok {
			return c.String()
		}
	case *lua.LTable:
		if n := val.Len(); n > 0 && val.MaxN() == n {
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = toGo(val.RawGetInt(i))
			}
			return arr
		}
		obj := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			obj[lua.LVAsString(k)] = toGo(v)
		})
		return obj
	}
	return v.String()
}

// toLua converts a Go value handed to scripts. Colors become color userdata,
// times unix seconds and durations milliseconds.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case color.Color:
		return newColorUD(L, val)
	case time.Time:
		return lua.LNumber(val.Unix())
	case time.Duration:
		return lua.LNumber(val.Milliseconds())
	case []any:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(toLua(L, item))
		}
		return tbl
	case map[string]any:
		return tableOf(L, val)
	case fmt.Stringer:
		return lua.LString(val.String())
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

func tableOf(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.CreateTable(0, len(m))
	for k, v := range m {
		tbl.RawSetString(k, toLua(L, v))
	}
	return tbl
}
