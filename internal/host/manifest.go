package host

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"luahost/pkg/models"
)

const manifestFile = "plugin.yaml"

// loadManifest reads the optional plugin.yaml metadata file. A missing or
// malformed manifest never fails a plugin load.
func loadManifest(dir string) *models.Manifest {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil
	}

	var m models.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil
	}

	return &m
}
