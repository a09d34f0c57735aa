package host

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dispatch runs a request through the router the way a worker would.
func dispatch(m *Manager, req *Request) *Response {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.handleRequest(req)
}

func TestRouter_PrefixDispatch(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "hello", `
		app = require("core")
		app.get("/", function(req) return "hi" end)
	`)

	m := newTestManager(t, root)

	resp := dispatch(m, &Request{URL: "/hello/", Method: "GET"})
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hi", string(resp.Body))
	assert.Equal(t, "text/html", resp.Headers["Content-Type"])

	// Bare prefix maps to the root route too.
	resp = dispatch(m, &Request{URL: "/hello", Method: "GET"})
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hi", string(resp.Body))
}

func TestRouter_RouteParams(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "greeter", `
		app = require("core")
		app.get("/greet/[name]", function(req)
			return "hello " .. req.params.name
		end)
	`)

	m := newTestManager(t, root)

	resp := dispatch(m, &Request{URL: "/greeter/greet/ada", Method: "GET"})
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hello ada", string(resp.Body))
}

func TestRouter_FormParsing(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "form", `
		app = require("core")
		app.post("/", function(req)
			return app.to_json(req.form)
		end)
	`)

	m := newTestManager(t, root)

	resp := dispatch(m, &Request{
		URL:    "/form/",
		Method: "POST",
		Body:   []byte("a=1&b=two%20words"),
	})
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, `{"a":"1","b":"two words"}`, string(resp.Body))
}

func TestRouter_StaticFile(t *testing.T) {
	root := t.TempDir()
	dir := writePlugin(t, root, "hello", `
		app = require("core")
		app.get("/", function(req) return "hi" end)
	`)

	staticDir := filepath.Join(dir, "static")
	require.NoError(t, os.MkdirAll(staticDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(staticDir, "style.css"),
		[]byte("body{color:red}"),
		0644,
	))

	m := newTestManager(t, root)

	resp := dispatch(m, &Request{URL: "/hello/static/style.css", Method: "GET"})
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "body{color:red}", string(resp.Body))
	assert.Equal(t, "text/css", resp.Headers["Content-Type"])

	// Second hit comes from the cache with identical bytes.
	resp = dispatch(m, &Request{URL: "/hello/static/style.css", Method: "GET"})
	assert.Equal(t, "body{color:red}", string(resp.Body))
}

func TestRouter_StaticTraversalBlocked(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "hello", `
		app = require("core")
	`)

	m := newTestManager(t, root)

	resp := dispatch(m, &Request{URL: "/hello/static/../plugin.lua", Method: "GET"})
	assert.NotEqual(t, 200, resp.Status)
	assert.NotContains(t, string(resp.Body), "require")
}

func TestRouter_DefaultFallback(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "default", `
		app = require("core")
		app.get("/landing", function(req) return "welcome" end)
	`)

	m := newTestManager(t, root)

	// The default plugin sees the unstripped URL.
	resp := dispatch(m, &Request{URL: "/landing", Method: "GET"})
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "welcome", string(resp.Body))
}

func TestRouter_NotFound(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "hello", `
		app = require("core")
	`)

	m := newTestManager(t, root)

	resp := dispatch(m, &Request{URL: "/nope", Method: "GET"})
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "Not Found 404", string(resp.Body))
}

func TestRouter_CrossPluginQuery(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "calc", `
		app = require("core")
		app.query_handle("sum", "do_sum")
		function do_sum(data) return data.x + data.y end
	`)
	writePlugin(t, root, "front", `
		app = require("core")
		app.get("/sum", function(req)
			local res, err = app.query("sum", { x = 2, y = 3 })
			if err then return "error: " .. err end
			return "sum=" .. tostring(res)
		end)
	`)

	m := newTestManager(t, root)

	resp := dispatch(m, &Request{URL: "/front/sum", Method: "GET"})
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "sum=5", string(resp.Body))
}

func TestRouter_HandlerStatusAndHeaders(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "apiish", `
		app = require("core")
		app.get("/gone", function(req)
			return app.response("moved"):status(301):header("Location", "/elsewhere")
		end)
	`)

	m := newTestManager(t, root)

	resp := dispatch(m, &Request{URL: "/apiish/gone", Method: "GET"})
	assert.Equal(t, 301, resp.Status)
	assert.Equal(t, "/elsewhere", resp.Headers["Location"])
}

func TestContentType_FallbackTable(t *testing.T) {
	assert.Equal(t, "text/css", contentType("a/b/style.css"))
	assert.Equal(t, "text/html", contentType("index.html"))
	assert.Equal(t, "application/javascript", contentType("app.js"))
	assert.Equal(t, "image/svg+xml", contentType("logo.svg"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}
