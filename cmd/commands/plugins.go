package commands

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newPluginsCmd creates the "plugins" command to inspect the plugin directory.
func newPluginsCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins found in the plugin directory",
		Run: func(cmd *cobra.Command, args []string) {
			dir := state.Config.PluginDir
			if dir == "" {
				dir = "./plugins"
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				log.Fatalf("Failed to read plugin directory %s: %v", dir, err)
			}

			found := 0
			for _, entry := range entries {
				name := entry.Name()
				if name[0] == '.' {
					continue
				}

				source := filepath.Join(dir, name, "plugin.lua")
				if _, err := os.Stat(source); err != nil {
					continue
				}
				found++

				line := name
				if meta := readManifestLine(filepath.Join(dir, name, "plugin.yaml")); meta != "" {
					line += "  (" + meta + ")"
				}
				fmt.Println(line)
			}

			if found == 0 {
				fmt.Printf("No plugins found in %s\n", dir)
			}
		},
	}

	return cmd
}

// readManifestLine summarizes a plugin.yaml, if any.
func readManifestLine(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	var m struct {
		Version     string `yaml:"version"`
		Description string `yaml:"description"`
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return ""
	}

	switch {
	case m.Version != "" && m.Description != "":
		return m.Version + ", " + m.Description
	case m.Version != "":
		return m.Version
	default:
		return m.Description
	}
}
