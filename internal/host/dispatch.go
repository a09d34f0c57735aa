package host

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"luahost/internal/bridge"
)

// maxQueryDepth bounds nested synchronous hook chains.
const maxQueryDepth = 10

var errRecursionLimit = errors.New("query recursion depth exceeded")

// callState tracks one synchronous call chain: its nesting depth and the
// plugin locks the chain already holds, so a chain that re-enters a plugin
// (A→B→A) does not deadlock on the plugin's own lock. Each top-level request
// or job gets a fresh callState, which keeps the depth bound per chain rather
// than per process.
type callState struct {
	depth int
	held  map[*Plugin]struct{}
}

func newCallState() *callState {
	return &callState{held: make(map[*Plugin]struct{})}
}

// lockPlugin acquires the plugin's lock unless the chain already holds it.
// The returned release is a no-op for re-entrant acquisitions.
func (cs *callState) lockPlugin(p *Plugin) func() {
	if _, ok := cs.held[p]; ok {
		return func() {}
	}

	p.mu.Lock()
	cs.held[p] = struct{}{}
	p.call = cs

	return func() {
		p.call = nil
		delete(cs.held, p)
		p.mu.Unlock()
	}
}

// query implements the synchronous hook call: exactly one handler runs, the
// highest-priority registration for the hook. Values cross environments only
// through the bridge. Callers on the dispatch path hold the manager read lock
// for the duration of their chain.
func (m *Manager) query(cs *callState, dst *lua.LState, hook string, data lua.LValue) (lua.LValue, error) {
	cs.depth++
	defer func() { cs.depth-- }()

	if cs.depth > maxQueryDepth {
		return nil, fmt.Errorf("%w (max %d)", errRecursionLimit, maxQueryDepth)
	}

	reg := m.registry.find(hook)
	if reg == nil {
		return nil, fmt.Errorf("no handler registered for hook %q", hook)
	}

	p := reg.plugin
	if p.closed.Load() {
		return nil, fmt.Errorf("hook %q: plugin %q is gone", hook, p.Name)
	}

	release := cs.lockPlugin(p)
	defer release()

	fn, ok := p.L.GetGlobal(reg.funcName).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf(
			"hook %q: function %q not found in plugin %q", hook, reg.funcName, p.Name)
	}

	arg := bridge.Copy(p.L, data)

	err := p.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg)
	if err != nil {
		return nil, fmt.Errorf("hook %q in plugin %q: %w", hook, p.Name, err)
	}

	ret := p.L.Get(-1)
	p.L.Pop(1)

	return bridge.Copy(dst, ret), nil
}

// emit fans an event out to every registration for the hook by enqueueing one
// job per listener. The payload is serialized once; each job owns its own
// copy. Returns the number of listeners notified. Enqueue order follows
// registry (priority) order; execution order across workers is unspecified.
func (m *Manager) emit(hook string, data lua.LValue) (int, error) {
	payload, err := bridge.ToJSON(data)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize event payload: %w", err)
	}

	notified := 0
	for _, reg := range m.registry.findAll(hook) {
		j := &job{
			kind:     jobAsync,
			plugin:   reg.plugin,
			funcName: reg.funcName,
			payload:  append([]byte(nil), payload...),
		}
		if m.queue.put(j) {
			notified++
		}
	}

	return notified, nil
}

// deferJob enqueues a call of funcName in the given plugin with the data as
// its sole argument.
func (m *Manager) deferJob(p *Plugin, funcName string, data lua.LValue) error {
	payload, err := bridge.ToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to serialize job payload: %w", err)
	}

	if !m.queue.put(&job{
		kind:     jobAsync,
		plugin:   p,
		funcName: funcName,
		payload:  payload,
	}) {
		return errors.New("job queue is shut down")
	}

	return nil
}
