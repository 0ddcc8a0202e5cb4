package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dockhand-build/dockhand/internal/cli/ui"
	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
	"github.com/dockhand-build/dockhand/internal/history"
	"github.com/dockhand-build/dockhand/internal/logging"
	"github.com/dockhand-build/dockhand/internal/pipeline"
)

var (
	buildJSON      bool
	buildVerbose   bool
	buildTag       string
	buildEngine    string
	buildNoHistory bool
)

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the service image from the recipe",
		Long: `Run the two-stage pipeline: resolve the dependency manifest, then
assemble the runtime image.

The build process:
  1. Resolve - parse and validate requirements.txt
  2. Assemble - render the Containerfile and run the engine build

The rendered Containerfile is published to .dockhand/ only when the
build succeeds; a failed build leaves no partial output behind.`,
		Example: `  # Build with the recipe's defaults
  dockhand build

  # Build with verbose output, streaming engine output
  dockhand build --verbose

  # Build and output errors in JSON format (useful for tooling)
  dockhand build --json

  # Override the image tag for this build
  dockhand build --tag v1.4.2

  # Build with podman instead of the recipe's engine
  dockhand build --engine podman`,
		RunE: runBuild,
	}

	cmd.Flags().BoolVar(&buildJSON, "json", false, "Output errors in JSON format")
	cmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Show detailed build output")
	cmd.Flags().StringVarP(&buildTag, "tag", "t", "", "Override the image tag")
	cmd.Flags().StringVar(&buildEngine, "engine", "", "Override the container engine (docker, podman)")
	cmd.Flags().BoolVar(&buildNoHistory, "no-history", false, "Skip recording the build in the history ledger")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgCyan)
	warningColor := color.New(color.FgYellow)

	dir, err := projectDir()
	if err != nil {
		return err
	}

	r, err := loadRecipe(dir, buildTag)
	if err != nil {
		return reportFailure(cmd, err)
	}

	log := logging.New(buildVerbose)
	defer log.Sync()

	eng, err := newEngine(r, buildEngine, buildVerbose, log)
	if err != nil {
		return reportFailure(cmd, err)
	}

	b := pipeline.NewBuild(dir, r, eng, log)
	runner := pipeline.NewRunner(pipeline.NewStandardGraph(), log)

	if !buildJSON {
		steps := ui.NewSteps(cmd.OutOrStdout(), 2, false)
		runner.Subscribe(pipeline.NotifierFunc(func(e pipeline.Event) {
			switch e.Type {
			case pipeline.EventStageStarted:
				steps.Start(e.Stage)
			case pipeline.EventStageFinished:
				steps.Done()
			case pipeline.EventStageFailed:
				steps.Fail()
			}
		}))
	}

	runErr := runner.Run(cmd.Context(), b)
	elapsed := time.Since(startTime)

	if !buildNoHistory {
		if histErr := recordBuild(cmd.Context(), b, runErr, elapsed, warningColor, cmd); histErr != nil {
			warningColor.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", histErr)
		}
	}

	if runErr != nil {
		return reportFailure(cmd, runErr)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	successColor.Fprintf(cmd.OutOrStdout(), "✓ Build successful in %.2fs\n", elapsed.Seconds())
	infoColor.Fprintf(cmd.OutOrStdout(), "  Image: %s\n", b.ImageRef)
	infoColor.Fprintf(cmd.OutOrStdout(), "  Containerfile: %s\n", b.ContainerfilePath)

	return nil
}

// recordBuild appends the run to the history ledger and warns when the
// same inputs previously produced a different image. With a floating
// resolver that is expected, but it is worth knowing about.
func recordBuild(ctx context.Context, b *pipeline.Build, runErr error, elapsed time.Duration, warningColor *color.Color, cmd *cobra.Command) error {
	ledger, err := history.Open(filepath.Join(b.Dir, pipeline.WorkDirName))
	if err != nil {
		return err
	}
	defer ledger.Close()

	rec := &history.Record{
		BuildID:      b.ID,
		ImageRef:     b.Recipe.Ref(),
		RecipeDigest: b.Recipe.Digest(),
		Status:       history.StatusFailed,
		Duration:     elapsed,
	}
	if b.Manifest != nil {
		rec.ManifestDigest = b.Manifest.Digest()
	}

	if runErr == nil {
		rec.Status = history.StatusSucceeded
		if info, inspectErr := b.Engine.Inspect(ctx, b.ImageRef); inspectErr == nil {
			rec.ImageID = info.ID

			prior, priorErr := ledger.LastWithInputs(ctx, rec.RecipeDigest, rec.ManifestDigest)
			if priorErr == nil && prior != nil && prior.ImageID != "" && prior.ImageID != info.ID {
				warningColor.Fprintf(cmd.ErrOrStderr(),
					"Warning: identical inputs previously produced image %s; the dependency manifest resolves differently between builds\n",
					prior.ImageID)
			}
		}
	}

	return ledger.Insert(ctx, rec)
}

// reportFailure prints pipeline errors in the selected format and
// returns a terse error for the root command.
func reportFailure(cmd *cobra.Command, err error) error {
	var list pipelineerrors.List
	var single pipelineerrors.PipelineError

	switch {
	case errors.As(err, &list):
	case errors.As(err, &single):
		list = pipelineerrors.List{single}
	default:
		return err
	}

	if buildJSON {
		out, jsonErr := pipelineerrors.FormatAsJSON(list)
		if jsonErr != nil {
			return jsonErr
		}
		fmt.Fprintln(os.Stdout, out)
	} else {
		fmt.Fprint(cmd.ErrOrStderr(), pipelineerrors.FormatListForTerminal(list))
	}

	return fmt.Errorf("build failed")
}
