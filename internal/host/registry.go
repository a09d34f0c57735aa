package host

import (
	"sort"
	"sync"
)

const defaultPriority = 100

// hookRegistration maps a hook name to a function inside a plugin's
// environment. The plugin reference is non-owning; the manager guarantees the
// plugin outlives every registration that names it.
type hookRegistration struct {
	hookName string
	plugin   *Plugin
	funcName string
	priority int
}

// hookRegistry is the ordered set of hook registrations, kept sorted ascending
// by priority. Ties keep insertion order, so a linear scan for the first match
// always yields the highest-priority handler.
type hookRegistry struct {
	mu   sync.Mutex
	regs []*hookRegistration
}

func newHookRegistry() *hookRegistry {
	return &hookRegistry{}
}

// register adds or replaces the registration for (plugin, hook). Re-sorting
// after every mutation keeps lookups a plain scan.
func (r *hookRegistry) register(p *Plugin, hook string, funcName string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.regs {
		if reg.plugin == p && reg.hookName == hook {
			reg.funcName = funcName
			reg.priority = priority
			r.resort()
			return
		}
	}

	r.regs = append(r.regs, &hookRegistration{
		hookName: hook,
		plugin:   p,
		funcName: funcName,
		priority: priority,
	})
	r.resort()
}

// resort must be called with the lock held. The sort must be stable so equal
// priorities keep insertion order.
func (r *hookRegistry) resort() {
	sort.SliceStable(r.regs, func(i, j int) bool {
		return r.regs[i].priority < r.regs[j].priority
	})
}

// find returns the first (highest-priority) registration for the hook, or nil.
func (r *hookRegistry) find(hook string) *hookRegistration {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.regs {
		if reg.hookName == hook {
			return reg
		}
	}

	return nil
}

// findAll returns every registration for the hook in priority order.
func (r *hookRegistry) findAll(hook string) []*hookRegistration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*hookRegistration
	for _, reg := range r.regs {
		if reg.hookName == hook {
			out = append(out, reg)
		}
	}

	return out
}

// clear drops every registration. Called during refresh before plugins are
// torn down.
func (r *hookRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.regs = nil
}

func (r *hookRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.regs)
}

// countFor returns the number of registrations owned by a plugin.
func (r *hookRegistry) countFor(p *Plugin) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, reg := range r.regs {
		if reg.plugin == p {
			n++
		}
	}

	return n
}

// byName returns registration counts keyed by hook name.
func (r *hookRegistry) byName() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.regs))
	for _, reg := range r.regs {
		out[reg.hookName]++
	}

	return out
}
