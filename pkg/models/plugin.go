package models

// Manifest holds the optional metadata a plugin may ship in plugin.yaml.
type Manifest struct {
	Version     string `json:"version,omitempty"     yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description"`
	Author      string `json:"author,omitempty"      yaml:"author"`
}

// PluginInfo is the admin-facing view of a loaded plugin.
type PluginInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	HookCount int       `json:"hookCount"`
	KVKeys    int       `json:"kvKeys"`
	Manifest  *Manifest `json:"manifest,omitempty"`
}

// HostStats is a point-in-time snapshot of the host's runtime state.
type HostStats struct {
	Workers     int            `json:"workers"`
	QueueDepth  int            `json:"queueDepth"`
	HeapKB      int            `json:"heapKb"`
	PluginCount int            `json:"pluginCount"`
	HooksByName map[string]int `json:"hooksByName"`
}
