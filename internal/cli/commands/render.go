package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
	"github.com/dockhand-build/dockhand/internal/render"
)

var renderOutput string

// NewRenderCommand creates the render command
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the Containerfile without building",
		Long: `Render the two-stage Containerfile the recipe describes and print it,
without invoking the container engine. Useful for reviewing exactly
what a build would execute.`,
		Example: `  dockhand render
  dockhand render --output Containerfile`,
		RunE: runRender,
	}

	cmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}

	r, err := loadRecipe(dir, "")
	if err != nil {
		return err
	}

	content, errs := render.Render(r)
	if errs.HasErrors() {
		fmt.Fprint(cmd.ErrOrStderr(), pipelineerrors.FormatListForTerminal(errs))
		return fmt.Errorf("render failed")
	}

	if renderOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), string(content))
		return nil
	}

	if err := os.WriteFile(renderOutput, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", renderOutput, err)
	}

	infoColor := color.New(color.FgCyan)
	infoColor.Fprintf(cmd.OutOrStdout(), "  ✓ Wrote %s\n", renderOutput)
	return nil
}
