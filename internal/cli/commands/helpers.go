package commands

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dockhand-build/dockhand/internal/engine"
	"github.com/dockhand-build/dockhand/internal/recipe"
)

// projectDir resolves the project root: the nearest ancestor with a
// recipe file, falling back to the working directory for projects that
// rely entirely on recipe defaults.
func projectDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	if root, err := recipe.FindProjectRoot(cwd); err == nil {
		return root, nil
	}
	return cwd, nil
}

// loadRecipe loads and validates the recipe, applying an optional tag
// override.
func loadRecipe(dir, tagOverride string) (*recipe.Recipe, error) {
	r, err := recipe.Load(dir)
	if err != nil {
		return nil, err
	}
	if tagOverride != "" {
		r.Tag = tagOverride
	}
	if errs := r.Validate(); errs.HasErrors() {
		return nil, errs
	}
	return r, nil
}

// newEngine constructs the container engine the recipe names, with an
// optional command-line override, and verifies the binary is usable.
func newEngine(r *recipe.Recipe, override string, verbose bool, log *zap.Logger) (engine.Engine, error) {
	name := r.Engine
	if override != "" {
		if override != "docker" && override != "podman" {
			return nil, fmt.Errorf("unsupported engine %q (docker or podman)", override)
		}
		name = override
	}

	var streams engine.OutputStreams
	if verbose {
		streams = engine.OutputStreams{Stdout: os.Stdout, Stderr: os.Stderr}
	}

	eng := engine.NewCLIEngine(name, streams, log)
	if err := eng.Available(); err != nil {
		return nil, err
	}
	return eng, nil
}
