package host

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writePlugin creates <root>/<name>/plugin.lua with the given source and
// returns the plugin directory.
func writePlugin(t *testing.T, root string, name string, source string) string {
	t.Helper()

	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.lua"), []byte(source), 0644))

	return dir
}

// newTestManager builds a manager over the given plugin directory with a
// small worker pool and a throwaway kv store.
func newTestManager(t *testing.T, pluginDir string) *Manager {
	t.Helper()

	m, err := NewManager(Options{
		PluginDir: pluginDir,
		Workers:   2,
		StorePath: filepath.Join(t.TempDir(), "kv.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = m.Close()
	})

	return m
}

// waitForFile polls until the file exists or the deadline passes, returning
// its contents.
func waitForFile(t *testing.T, path string, timeout time.Duration) string {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data)
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", path)
	return ""
}
