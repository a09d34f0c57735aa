package host

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"luahost/pkg/models"
)

const pluginSourceName = "plugin.lua"

// Plugin owns one persistent script environment, its on-disk directory, and
// the lock that serializes every touch of that environment. The interpreter
// state is not safe to enter from two goroutines at once.
type Plugin struct {
	Name     string
	Path     string
	Manifest *models.Manifest

	// mu guards L. call is the call chain currently holding mu; it is only
	// read and written by the lock holder.
	mu   sync.Mutex
	L    *lua.LState
	call *callState

	closed atomic.Bool
}

// newPlugin builds a fresh environment for the plugin at path, wires the host
// callback surface and the core library into it, and executes plugin.lua once.
// A syntax or runtime error during that first run fails construction and
// releases the environment.
func newPlugin(m *Manager, name string, path string) (*Plugin, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plugin path: %w", err)
	}

	p := &Plugin{
		Name: name,
		Path: abs,
	}

	L := lua.NewState()
	p.L = L

	m.installEnv(L, p, func() *callState { return p.call })

	// The constructing goroutine logically owns the plugin until it is
	// published, so load-time hook calls see it as already held.
	cs := newCallState()
	cs.held[p] = struct{}{}
	p.call = cs

	if err := L.DoFile(filepath.Join(abs, pluginSourceName)); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to execute %s: %w", pluginSourceName, err)
	}

	p.call = nil
	p.Manifest = loadManifest(abs)

	return p, nil
}

// close tears the environment down. Callers must guarantee no worker holds the
// plugin's lock; the manager does so by closing only under its write lock.
func (p *Plugin) close() {
	if p.closed.Swap(true) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.L.Close()
}

// sourcePath returns the absolute path of the plugin's entry file.
func (p *Plugin) sourcePath() string {
	return filepath.Join(p.Path, pluginSourceName)
}

// hasSource reports whether a directory entry looks like a loadable plugin.
func hasSource(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, pluginSourceName))
	return err == nil && info.Mode().IsRegular()
}
