// Package host is the plugin runtime: it owns the plugin environments, the
// hook registry, the job queue, and the worker pool, and it routes requests
// and hook calls between isolated script environments.
package host

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"luahost/internal/markdown"
	"luahost/pkg/models"
)

const (
	// DefaultWorkers is the size of the worker pool when none is configured.
	DefaultWorkers = 4

	defaultPluginDir = "./plugins"
	defaultStorePath = "plugin_kv.db"
	defaultQueueSize = 1024

	staticCacheTTL  = 30 * time.Minute
	staticCacheSize = 1000
)

// Options configures a Manager.
type Options struct {
	PluginDir string
	Workers   int
	QueueSize int
	StorePath string
	Logger    models.Logger
}

// Manager owns every plugin and every hook registration. The RW lock gates
// refresh against dispatch: request and job execution hold the read side for
// their whole duration, Refresh and Close take the write side, so a reload
// always observes a quiescent host.
type Manager struct {
	mu       sync.RWMutex
	plugins  []*Plugin
	registry *hookRegistry

	queue   *jobQueue
	wg      sync.WaitGroup
	workers int

	pluginDir string
	store     Store
	markdown  *markdown.Renderer
	logger    models.Logger

	staticCache *ttlcache.Cache[string, staticEntry]
}

// NewManager builds the runtime, starts the worker pool, and performs the
// initial plugin load. Individual plugin failures are logged, never fatal.
func NewManager(opts Options) (*Manager, error) {
	if opts.PluginDir == "" {
		opts.PluginDir = defaultPluginDir
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.StorePath == "" {
		opts.StorePath = defaultStorePath
	}

	store, err := newBoltStore(opts.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kv store: %w", err)
	}

	cache := ttlcache.New[string, staticEntry](
		ttlcache.WithTTL[string, staticEntry](staticCacheTTL),
		ttlcache.WithCapacity[string, staticEntry](staticCacheSize),
	)
	go cache.Start()

	m := &Manager{
		registry:    newHookRegistry(),
		queue:       newJobQueue(opts.QueueSize),
		workers:     opts.Workers,
		pluginDir:   opts.PluginDir,
		store:       store,
		markdown:    markdown.NewRenderer(),
		logger:      opts.Logger,
		staticCache: cache,
	}

	m.startWorkers(opts.Workers)

	if err := m.Refresh(); err != nil {
		m.logf(models.LevelWarning, "MANAGER", "initial plugin load: %v", err)
	}

	return m, nil
}

// Refresh reloads every plugin from disk. It waits for in-flight work (write
// lock), discards still-pending jobs, drops all registrations, tears the old
// plugins down, then rebuilds from the plugin directory.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dropped := m.queue.drain(); len(dropped) > 0 {
		m.logf(models.LevelWarning, "MANAGER", "refresh discarded %d pending jobs", len(dropped))

		for _, j := range dropped {
			if j.kind == jobRequest {
				j.resp <- &Response{
					Status:  503,
					Body:    []byte("Service restarting"),
					Headers: map[string]string{},
				}
			}
		}
	}

	m.registry.clear()
	for _, p := range m.plugins {
		p.close()
	}
	m.plugins = nil
	m.staticCache.DeleteAll()

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil {
		return fmt.Errorf("failed to read plugin directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		dir := filepath.Join(m.pluginDir, name)
		if !hasSource(dir) {
			continue
		}

		p, err := newPlugin(m, name, dir)
		if err != nil {
			m.logf(models.LevelError, "MANAGER", "plugin %s failed to load: %v", name, err)
			continue
		}

		m.applySchema(p)
		m.plugins = append(m.plugins, p)
		m.logf(models.LevelInfo, "MANAGER", "loaded plugin %s from %s", p.Name, p.Path)
	}

	return nil
}

// SubmitRequest queues a request for dispatch on the worker pool. respChan
// must have capacity 1 so a worker never blocks on a caller that gave up
// waiting. Returns false once the host is shutting down.
func (m *Manager) SubmitRequest(req *Request, respChan chan *Response) bool {
	return m.queue.put(&job{kind: jobRequest, req: req, resp: respChan})
}

// Close shuts the host down: stop the queue, join the workers, discard
// whatever was still queued, then tear down registrations and plugins. Jobs
// hold plugin references, so this order is the only safe one.
func (m *Manager) Close() error {
	m.queue.stop()
	m.wg.Wait()

	for _, j := range m.queue.drain() {
		if j.kind == jobRequest {
			j.resp <- &Response{
				Status:  503,
				Body:    []byte("Service shutting down"),
				Headers: map[string]string{},
			}
		}
	}

	m.mu.Lock()
	m.registry.clear()
	for _, p := range m.plugins {
		p.close()
	}
	m.plugins = nil
	m.mu.Unlock()

	m.staticCache.Stop()

	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// HasPlugins returns true if any plugin is loaded.
func (m *Manager) HasPlugins() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.plugins) > 0
}

// Plugins returns the admin-facing view of every loaded plugin.
func (m *Manager) Plugins() []models.PluginInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PluginInfo, 0, len(m.plugins))
	for _, p := range m.plugins {
		kvKeys, _ := m.store.Count(p.Name)

		out = append(out, models.PluginInfo{
			Name:      p.Name,
			Path:      p.Path,
			HookCount: m.registry.countFor(p),
			KVKeys:    kvKeys,
			Manifest:  p.Manifest,
		})
	}

	return out
}

// Stats returns a point-in-time snapshot of the host's runtime state.
func (m *Manager) Stats() models.HostStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return models.HostStats{
		Workers:     m.workers,
		QueueDepth:  m.queue.depth(),
		HeapKB:      int(ms.HeapAlloc / 1024),
		PluginCount: len(m.plugins),
		HooksByName: m.registry.byName(),
	}
}

// HookCount returns the total number of hook registrations.
func (m *Manager) HookCount() int {
	return m.registry.count()
}

// pluginNamed returns the loaded plugin with the given name, or nil. Callers
// hold the manager lock.
func (m *Manager) pluginNamed(name string) *Plugin {
	for _, p := range m.plugins {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// logf writes to the process log and, when configured, to the async system
// log pipeline.
func (m *Manager) logf(level models.LogLevel, source string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	log.Printf("[%s] [%s] %s", level, source, msg)

	if m.logger != nil {
		_ = m.logger(context.Background(), level, source, msg, "")
	}
}

// logSQL records a plugin database statement in the system log only; the
// console stays readable.
func (m *Manager) logSQL(p *Plugin, stmt string, dur time.Duration, err error) {
	if m.logger == nil {
		return
	}

	level := models.LevelSQL
	if err != nil {
		level = models.LevelSQLError
	}

	if len(stmt) > 1000 {
		stmt = stmt[:1000] + "...(truncated)"
	}

	_ = m.logger(context.Background(), level, "PLUGIN:"+p.Name, stmt,
		fmt.Sprintf("Duration: %s", dur))
}
