package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
	"github.com/dockhand-build/dockhand/internal/manifest"
	"github.com/dockhand-build/dockhand/internal/recipe"
	"github.com/dockhand-build/dockhand/internal/render"
)

var checkJSON bool

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the recipe and the dependency manifest",
		Long: `Validate the build inputs without touching the container engine.

Every problem is reported in one pass: recipe violations (system-path
install prefix, root user, malformed start command) and manifest
violations (syntax, duplicates, unsupported option lines).`,
		Example: `  dockhand check
  dockhand check --json`,
		RunE: runCheck,
	}

	cmd.Flags().BoolVar(&checkJSON, "json", false, "Output findings in JSON format")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	successColor := color.New(color.FgGreen, color.Bold)

	dir, err := projectDir()
	if err != nil {
		return err
	}

	var all pipelineerrors.List

	r, err := recipe.Load(dir)
	if err != nil {
		return err
	}
	all = append(all, r.Validate()...)

	// The manifest path only makes sense against a structurally valid
	// recipe, but manifest findings are still collected alongside.
	// Context resolution matches the assemble stage: absolute paths
	// stand alone, relative ones anchor at the project root.
	contextDir := r.Context
	if !filepath.IsAbs(contextDir) {
		contextDir = filepath.Join(dir, contextDir)
	}
	manifestPath := filepath.Join(contextDir, r.Builder.Manifest)
	if _, statErr := os.Stat(manifestPath); statErr != nil {
		all = append(all, pipelineerrors.Newf(pipelineerrors.StageManifest, pipelineerrors.ErrManifestNotFound,
			"manifest not found at %s", manifestPath))
	} else {
		_, errs := manifest.ParseFile(manifestPath)
		all = append(all, errs...)
	}

	// Dry-run the renderer so template problems surface here instead of
	// mid-build. Only meaningful once the recipe itself holds up.
	if !all.HasErrors() {
		_, renderErrs := render.Render(r)
		all = append(all, renderErrs...)
	}

	if checkJSON {
		out, jsonErr := pipelineerrors.FormatAsJSON(all)
		if jsonErr != nil {
			return jsonErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		if all.HasErrors() {
			return fmt.Errorf("check failed")
		}
		return nil
	}

	if len(all) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), pipelineerrors.FormatListForTerminal(all))
	}
	if all.HasErrors() {
		return fmt.Errorf("check failed")
	}

	successColor.Fprintf(cmd.OutOrStdout(), "✓ Recipe and manifest look good\n")
	return nil
}
