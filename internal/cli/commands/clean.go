package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dockhand-build/dockhand/internal/history"
	"github.com/dockhand-build/dockhand/internal/logging"
	"github.com/dockhand-build/dockhand/internal/pipeline"
	"github.com/dockhand-build/dockhand/internal/render"
)

var (
	cleanEngine  string
	cleanVerbose bool
	cleanHistory bool
)

// NewCleanCommand creates the clean command
func NewCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the built image and the pipeline's work files",
		Long: `Remove the image the recipe describes from the local engine, along
with the published Containerfile under .dockhand/. The build history
ledger is kept unless --history is given.`,
		Example: `  dockhand clean
  dockhand clean --history`,
		RunE: runClean,
	}

	cmd.Flags().StringVar(&cleanEngine, "engine", "", "Override the container engine (docker, podman)")
	cmd.Flags().BoolVarP(&cleanVerbose, "verbose", "v", false, "Show detailed output")
	cmd.Flags().BoolVar(&cleanHistory, "history", false, "Also delete the build history ledger")

	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	infoColor := color.New(color.FgCyan)

	dir, err := projectDir()
	if err != nil {
		return err
	}

	r, err := loadRecipe(dir, "")
	if err != nil {
		return err
	}

	log := logging.New(cleanVerbose)
	defer log.Sync()

	eng, err := newEngine(r, cleanEngine, cleanVerbose, log)
	if err != nil {
		return err
	}

	ref := r.Ref()
	exists, err := eng.ImageExists(cmd.Context(), ref)
	if err != nil {
		return err
	}
	if exists {
		if err := eng.RemoveImage(cmd.Context(), ref); err != nil {
			return err
		}
		infoColor.Fprintf(cmd.OutOrStdout(), "  ✓ Removed image %s\n", ref)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "  - No image %s to remove\n", ref)
	}

	workDir := filepath.Join(dir, pipeline.WorkDirName)
	containerfile := filepath.Join(workDir, render.DefaultFileName)
	if err := os.Remove(containerfile); err == nil {
		infoColor.Fprintf(cmd.OutOrStdout(), "  ✓ Removed %s\n", containerfile)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", containerfile, err)
	}

	if cleanHistory {
		ledger := filepath.Join(workDir, history.FileName)
		if err := os.Remove(ledger); err == nil {
			infoColor.Fprintf(cmd.OutOrStdout(), "  ✓ Removed %s\n", ledger)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", ledger, err)
		}
	}

	return nil
}
