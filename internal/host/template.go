package host

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flosch/pongo2/v6"
)

const viewsDir = "views"

// renderView renders a template from the plugin's views directory with the
// handler-supplied variables. Templates are re-read per render so a refresh
// picks up edits.
func renderView(pluginPath string, view string, vars map[string]any) (string, error) {
	if strings.Contains(view, "..") {
		return "", fmt.Errorf("invalid view name %q", view)
	}

	path := filepath.Join(pluginPath, viewsDir, view+".html")

	tpl, err := pongo2.FromFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to load view: %w", err)
	}

	out, err := tpl.Execute(pongo2.Context(vars))
	if err != nil {
		return "", fmt.Errorf("failed to render view: %w", err)
	}

	return out, nil
}
