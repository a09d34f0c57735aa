package host

import (
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/jellydator/ttlcache/v3"
	lua "github.com/yuin/gopher-lua"

	"luahost/pkg/models"
)

const defaultPluginName = "default"

// Request is the router's view of an incoming HTTP request.
type Request struct {
	URL    string
	Method string
	Body   []byte
}

// Response is what a plugin invocation produced for a request.
type Response struct {
	Status  int
	Body    []byte
	Headers map[string]string
}

type staticEntry struct {
	data []byte
	mime string
}

var mimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".svg":  "image/svg+xml",
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	if ct, ok := mimeTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return "application/octet-stream"
}

// handleRequest maps one request to one plugin invocation. Prefixed plugins
// are tried first, then the plugin named "default" with the unstripped URL,
// then 404. Callers hold the manager read lock.
func (m *Manager) handleRequest(req *Request) *Response {
	for _, p := range m.plugins {
		if p.Name == defaultPluginName {
			continue
		}

		prefix := "/" + p.Name
		if !strings.HasPrefix(req.URL, prefix) {
			continue
		}
		rest := req.URL[len(prefix):]

		if strings.HasPrefix(rest, "/static/") {
			if resp := m.serveStatic(p, strings.TrimPrefix(rest, "/static/")); resp != nil {
				return resp
			}
		}

		rel := rest
		if rel == "" {
			rel = "/"
		}

		if resp := m.invokeHandler(p, rel, req); resp != nil {
			return resp
		}
	}

	if d := m.pluginNamed(defaultPluginName); d != nil {
		if strings.HasPrefix(req.URL, "/static/") {
			if resp := m.serveStatic(d, strings.TrimPrefix(req.URL, "/static/")); resp != nil {
				return resp
			}
		}

		if resp := m.invokeHandler(d, req.URL, req); resp != nil {
			return resp
		}
	}

	return &Response{
		Status:  404,
		Body:    []byte("Not Found 404"),
		Headers: map[string]string{},
	}
}

// serveStatic serves a file from the plugin's static directory, or nil so the
// dispatch falls through to the next rule. Reads go through the TTL cache.
func (m *Manager) serveStatic(p *Plugin, rel string) *Response {
	root := filepath.Join(p.Path, "static")

	path := filepath.Join(root, filepath.FromSlash(rel))
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return nil
	}

	if item := m.staticCache.Get(path); item != nil {
		return staticResponse(item.Value())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	entry := staticEntry{data: data, mime: contentType(path)}
	m.staticCache.Set(path, entry, ttlcache.DefaultTTL)

	return staticResponse(entry)
}

func staticResponse(e staticEntry) *Response {
	return &Response{
		Status:  200,
		Body:    e.data,
		Headers: map[string]string{"Content-Type": e.mime},
	}
}

// invokeHandler calls the plugin's handle_request with the prefix-stripped
// request record. Returns nil if the plugin has no handler or the handler
// failed, so dispatch can fall through.
func (m *Manager) invokeHandler(p *Plugin, rel string, req *Request) *Response {
	if p.closed.Load() {
		return nil
	}

	cs := newCallState()
	release := cs.lockPlugin(p)
	defer release()

	L := p.L

	app, ok := L.GetGlobal("app").(*lua.LTable)
	if !ok {
		return nil
	}

	fn, ok := L.GetField(app, "handle_request").(*lua.LFunction)
	if !ok {
		return nil
	}

	reqTbl := L.NewTable()
	reqTbl.RawSetString("url", lua.LString(rel))
	reqTbl.RawSetString("method", lua.LString(strings.ToUpper(req.Method)))
	reqTbl.RawSetString("body", lua.LString(req.Body))

	err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, reqTbl)
	if err != nil {
		m.logf(models.LevelError, "ROUTER", "plugin %s handler: %v", p.Name, err)
		return nil
	}

	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil
	}

	resp := &Response{Status: 200, Body: []byte{}, Headers: map[string]string{}}

	if n, ok := tbl.RawGetString("status").(lua.LNumber); ok {
		resp.Status = int(n)
	}
	if s, ok := tbl.RawGetString("body").(lua.LString); ok {
		resp.Body = []byte(s)
	}
	if h, ok := tbl.RawGetString("headers").(*lua.LTable); ok {
		h.ForEach(func(k, v lua.LValue) {
			resp.Headers[lua.LVAsString(k)] = lua.LVAsString(v)
		})
	}

	return resp
}
