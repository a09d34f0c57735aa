package host

import (
	"errors"
	"fmt"
	"runtime"

	lua "github.com/yuin/gopher-lua"

	"luahost/internal/bridge"
	"luahost/pkg/models"
)

// installEnv wires the host callback surface into an environment on behalf of
// a plugin. The same surface is installed on persistent plugin environments
// and on the disposable environments workers build per job; csFn resolves the
// call chain the environment is currently executing under.
func (m *Manager) installEnv(L *lua.LState, p *Plugin, csFn func() *callState) {
	L.SetGlobal("PLUGIN_DIR", lua.LString(p.Path))
	_ = L.DoString(fmt.Sprintf("package.path = %q .. package.path", p.Path+"/?.lua;"))

	L.PreloadModule("core", coreLoader)

	L.SetGlobal("c_log", L.NewFunction(func(L *lua.LState) int {
		level := L.CheckString(1)
		msg := L.CheckString(2)
		m.logf(models.NormalizeLevel(level), "PLUGIN:"+p.Name, "%s", msg)
		return 0
	}))

	L.SetGlobal("c_get_memory", L.NewFunction(func(L *lua.LState) int {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		L.Push(lua.LNumber(ms.HeapAlloc / 1024))
		return 1
	}))

	L.SetGlobal("c_register_hook", L.NewFunction(func(L *lua.LState) int {
		hook := L.CheckString(1)
		funcName := L.CheckString(2)
		priority := L.OptInt(3, defaultPriority)
		m.registry.register(p, hook, funcName, priority)
		return 0
	}))

	L.SetGlobal("c_call_hook", L.NewFunction(func(L *lua.LState) int {
		hook := L.CheckString(1)
		data := L.Get(2)

		cs := csFn()
		if cs == nil {
			cs = newCallState()
		}

		result, err := m.query(cs, L, hook, data)
		if err != nil {
			if errors.Is(err, errRecursionLimit) {
				L.RaiseError("hook %q: %s", hook, err.Error())
				return 0
			}
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}

		L.Push(result)
		return 1
	}))

	L.SetGlobal("c_trigger_async_event", L.NewFunction(func(L *lua.LState) int {
		hook := L.CheckString(1)
		data := L.Get(2)

		notified, err := m.emit(hook, data)
		if err != nil {
			L.RaiseError("event %q: %s", hook, err.Error())
			return 0
		}

		L.Push(lua.LNumber(notified))
		return 1
	}))

	L.SetGlobal("c_enqueue_job", L.NewFunction(func(L *lua.LState) int {
		funcName := L.CheckString(1)
		data := L.Get(2)

		if err := m.deferJob(p, funcName, data); err != nil {
			L.RaiseError("defer %q: %s", funcName, err.Error())
		}
		return 0
	}))

	L.SetGlobal("c_db_exec", L.NewFunction(func(L *lua.LState) int {
		stmt := L.CheckString(1)

		if err := m.dbExec(p, stmt); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}

		L.Push(lua.LTrue)
		return 1
	}))

	L.SetGlobal("c_db_query", L.NewFunction(func(L *lua.LState) int {
		stmt := L.CheckString(1)

		rows, err := m.dbQuery(p, stmt)
		if err != nil {
			L.RaiseError("db_query: %s", err.Error())
			return 0
		}

		out := L.CreateTable(len(rows), 0)
		for _, row := range rows {
			out.Append(bridge.FromGo(L, row))
		}

		L.Push(out)
		return 1
	}))

	L.SetGlobal("c_kv_get", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		val, _ := m.store.Get(p.Name, key)
		L.Push(lua.LString(val))
		return 1
	}))

	L.SetGlobal("c_kv_set", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		val := L.CheckString(2)
		L.Push(lua.LBool(m.store.Set(p.Name, key, val) == nil))
		return 1
	}))

	L.SetGlobal("c_kv_delete", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		L.Push(lua.LBool(m.store.Delete(p.Name, key) == nil))
		return 1
	}))

	L.SetGlobal("c_kv_list", L.NewFunction(func(L *lua.LState) int {
		prefix := L.OptString(1, "")
		keys, _ := m.store.List(p.Name, prefix)

		out := L.CreateTable(len(keys), 0)
		for _, k := range keys {
			out.Append(lua.LString(k))
		}

		L.Push(out)
		return 1
	}))

	L.SetGlobal("c_render_template", L.NewFunction(func(L *lua.LState) int {
		view := L.CheckString(1)
		data := L.OptTable(2, L.NewTable())

		ctx, err := bridge.ToGo(data)
		if err != nil {
			L.RaiseError("render %q: %s", view, err.Error())
			return 0
		}

		vars, ok := ctx.(map[string]any)
		if !ok {
			vars = map[string]any{}
		}

		html, err := renderView(p.Path, view, vars)
		if err != nil {
			L.RaiseError("render %q: %s", view, err.Error())
			return 0
		}

		L.Push(lua.LString(html))
		return 1
	}))

	L.SetGlobal("c_markdown", L.NewFunction(func(L *lua.LState) int {
		src := L.CheckString(1)

		html, err := m.markdown.RenderString(src)
		if err != nil {
			m.logf(models.LevelError, "PLUGIN:"+p.Name, "markdown render failed: %v", err)
			L.Push(lua.LString(""))
			return 1
		}

		L.Push(lua.LString(html))
		return 1
	}))

	L.SetGlobal("c_sanitize_html", L.NewFunction(func(L *lua.LState) int {
		dirty := L.CheckString(1)
		L.Push(lua.LString(m.markdown.Sanitize(dirty)))
		return 1
	}))

	L.SetGlobal("c_json_encode", L.NewFunction(func(L *lua.LState) int {
		data, err := bridge.ToJSON(L.Get(1))
		if err != nil {
			L.RaiseError("json encode: %s", err.Error())
			return 0
		}

		L.Push(lua.LString(data))
		return 1
	}))

	L.SetGlobal("c_json_decode", L.NewFunction(func(L *lua.LState) int {
		raw := L.CheckString(1)

		v, err := bridge.FromJSON(L, []byte(raw))
		if err != nil {
			L.RaiseError("json decode: %s", err.Error())
			return 0
		}

		L.Push(v)
		return 1
	}))
}

// coreLoader compiles and runs the embedded framework library when a plugin
// does require("core").
func coreLoader(L *lua.LState) int {
	fn, err := L.LoadString(coreLua)
	if err != nil {
		L.RaiseError("core library: %s", err.Error())
		return 0
	}

	L.Push(fn)
	L.Call(0, 1)
	return 1
}
