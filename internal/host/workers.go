package host

import (
	lua "github.com/yuin/gopher-lua"

	"luahost/internal/bridge"
	"luahost/pkg/models"
)

func (m *Manager) startWorkers(n int) {
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go m.workerLoop()
	}
}

func (m *Manager) workerLoop() {
	defer m.wg.Done()

	for {
		j, ok := m.queue.take()
		if !ok {
			return
		}
		m.runJob(j)
	}
}

// runJob holds the manager read lock for the whole job so a refresh never
// observes a half-finished invocation.
func (m *Manager) runJob(j *job) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch j.kind {
	case jobRequest:
		j.resp <- m.handleRequest(j.req)
	case jobAsync:
		m.runAsyncJob(j)
	}
}

// runAsyncJob executes a deferred call on a fresh, disposable environment:
// load the plugin source, look up the function, hand it the decoded payload,
// throw the environment away. Repeated script loading is the price of keeping
// workers stateless; a failed job is logged and never stops the worker.
func (m *Manager) runAsyncJob(j *job) {
	p := j.plugin
	if p.closed.Load() {
		m.logf(models.LevelWarning, "WORKER",
			"dropping job %s for unloaded plugin %s", j.funcName, p.Name)
		return
	}

	L := lua.NewState()
	defer L.Close()

	cs := newCallState()
	m.installEnv(L, p, func() *callState { return cs })

	if err := L.DoFile(p.sourcePath()); err != nil {
		m.logf(models.LevelError, "WORKER", "plugin %s: %v", p.Name, err)
		return
	}

	fn, ok := L.GetGlobal(j.funcName).(*lua.LFunction)
	if !ok {
		m.logf(models.LevelError, "WORKER",
			"plugin %s: job function %q not found", p.Name, j.funcName)
		return
	}

	arg, err := bridge.FromJSON(L, j.payload)
	if err != nil {
		m.logf(models.LevelError, "WORKER", "plugin %s: %v", p.Name, err)
		return
	}

	err = L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, arg)
	if err != nil {
		m.logf(models.LevelError, "WORKER",
			"plugin %s: job %s failed: %v", p.Name, j.funcName, err)
	}
}
