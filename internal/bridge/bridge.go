// Package bridge copies values between isolated Lua environments and converts
// them to and from JSON. Environments never share references: everything that
// crosses is a deep copy.
package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// unsupportedMarker replaces values the bridge cannot carry (functions,
// userdata, threads, channels). The bridge moves data, never code.
const unsupportedMarker = "[unsupported type]"

// Copy deep-copies a value into the destination environment. Strings are
// byte-exact, numbers and booleans copy directly, tables copy recursively with
// string and number keys preserved. Anything else becomes unsupportedMarker.
func Copy(dst *lua.LState, v lua.LValue) lua.LValue {
	return copyValue(dst, v, map[*lua.LTable]*lua.LTable{})
}

func copyValue(dst *lua.LState, v lua.LValue, seen map[*lua.LTable]*lua.LTable) lua.LValue {
	switch val := v.(type) {
	case *lua.LNilType:
		return lua.LNil
	case lua.LBool:
		return val
	case lua.LNumber:
		return val
	case lua.LString:
		return val
	case *lua.LTable:
		if copied, ok := seen[val]; ok {
			return copied
		}

		out := dst.NewTable()
		seen[val] = out

		key := lua.LValue(lua.LNil)
		for {
			var cell lua.LValue
			key, cell = val.Next(key)
			if key == lua.LNil {
				break
			}
			out.RawSet(copyValue(dst, key, seen), copyValue(dst, cell, seen))
		}

		return out
	default:
		return lua.LString(unsupportedMarker)
	}
}

// ToJSON serializes a Lua value to JSON. A table whose first enumerated key is
// the integer 1 serializes as an array; every other table serializes as an
// object. Number keys in object position are stringified the way Lua prints
// them.
func ToJSON(v lua.LValue) ([]byte, error) {
	g, err := toGo(v, map[*lua.LTable]bool{})
	if err != nil {
		return nil, err
	}

	return json.Marshal(g)
}

// ToGo converts a Lua value to the equivalent Go value using the same rules as
// ToJSON (maps, slices, float64, string, bool, nil).
func ToGo(v lua.LValue) (any, error) {
	return toGo(v, map[*lua.LTable]bool{})
}

func toGo(v lua.LValue, seen map[*lua.LTable]bool) (any, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(val), nil
	case lua.LNumber:
		return float64(val), nil
	case lua.LString:
		return string(val), nil
	case *lua.LTable:
		if seen[val] {
			return nil, fmt.Errorf("cannot serialize cyclic table")
		}
		seen[val] = true
		defer delete(seen, val)

		firstKey, _ := val.Next(lua.LNil)
		if firstKey == lua.LNumber(1) {
			return tableToSlice(val, seen)
		}

		return tableToMap(val, seen)
	default:
		return unsupportedMarker, nil
	}
}

func tableToSlice(tbl *lua.LTable, seen map[*lua.LTable]bool) ([]any, error) {
	out := make([]any, 0, tbl.Len())

	for i := 1; ; i++ {
		cell := tbl.RawGetInt(i)
		if cell == lua.LNil {
			break
		}

		g, err := toGo(cell, seen)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}

	return out, nil
}

func tableToMap(tbl *lua.LTable, seen map[*lua.LTable]bool) (map[string]any, error) {
	out := make(map[string]any)

	key := lua.LValue(lua.LNil)
	for {
		var cell lua.LValue
		key, cell = tbl.Next(key)
		if key == lua.LNil {
			break
		}

		var name string
		switch k := key.(type) {
		case lua.LString:
			name = string(k)
		case lua.LNumber:
			name = strconv.FormatFloat(float64(k), 'g', -1, 64)
		default:
			name = unsupportedMarker
		}

		g, err := toGo(cell, seen)
		if err != nil {
			return nil, err
		}
		out[name] = g
	}

	return out, nil
}

// FromJSON parses JSON into a value owned by the given environment. Objects
// become tables with string keys, arrays become sequence tables.
func FromJSON(L *lua.LState, data []byte) (lua.LValue, error) {
	var g any
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	return FromGo(L, g), nil
}

// FromGo converts a JSON-shaped Go value (nil, bool, float64, string, []any,
// map[string]any) into a value owned by the given environment.
func FromGo(L *lua.LState, g any) lua.LValue {
	switch val := g.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(FromGo(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(val))
		for k, item := range val {
			tbl.RawSetString(k, FromGo(L, item))
		}
		return tbl
	default:
		return lua.LString(unsupportedMarker)
	}
}
