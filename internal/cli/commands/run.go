package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dockhand-build/dockhand/internal/engine"
	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
	"github.com/dockhand-build/dockhand/internal/logging"
)

var (
	runPublish int
	runName    string
	runEngine  string
	runVerbose bool
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the built image",
		Long: `Run the image the recipe describes, mapping the advertised container
port onto a host port.

The image only advertises its listening port; which host port it is
reachable on is decided here, at run time, never baked into the image.`,
		Example: `  # Map the advertised port onto the same host port
  dockhand run

  # Serve on host port 8080 regardless of the advertised port
  dockhand run --publish 8080`,
		RunE: runRun,
	}

	cmd.Flags().IntVarP(&runPublish, "publish", "p", 0, "Host port to publish the advertised port on (default: same port)")
	cmd.Flags().StringVar(&runName, "name", "", "Container name")
	cmd.Flags().StringVar(&runEngine, "engine", "", "Override the container engine (docker, podman)")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Show detailed output")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	infoColor := color.New(color.FgCyan)

	dir, err := projectDir()
	if err != nil {
		return err
	}

	r, err := loadRecipe(dir, "")
	if err != nil {
		return err
	}

	log := logging.New(runVerbose)
	defer log.Sync()

	// Container output always streams to the terminal; that is the point
	// of running in the foreground.
	name := r.Engine
	if runEngine != "" {
		if runEngine != "docker" && runEngine != "podman" {
			return fmt.Errorf("unsupported engine %q (docker or podman)", runEngine)
		}
		name = runEngine
	}
	eng := engine.NewCLIEngine(name, engine.OutputStreams{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}, log)
	if err := eng.Available(); err != nil {
		return err
	}

	ref := r.Ref()
	exists, err := eng.ImageExists(cmd.Context(), ref)
	if err != nil {
		return err
	}
	if !exists {
		return pipelineerrors.Newf(pipelineerrors.StageRuntime, pipelineerrors.ErrEngineNoImage,
			"image %s not found; run 'dockhand build' first", ref)
	}

	hostPort := runPublish
	if hostPort == 0 {
		hostPort = r.Runtime.Start.Port
	}
	if hostPort < 1 || hostPort > 65535 {
		return fmt.Errorf("invalid publish port %d", hostPort)
	}

	infoColor.Fprintf(cmd.OutOrStdout(), "Running %s on http://localhost:%d (container port %d)\n",
		ref, hostPort, r.Runtime.Start.Port)

	return eng.Run(cmd.Context(), engine.RunOptions{
		Image:           ref,
		Name:            runName,
		Remove:          true,
		PublishExternal: hostPort,
		PublishInternal: r.Runtime.Start.Port,
	})
}
