package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dockhand-build/dockhand/internal/engine"
	"github.com/dockhand-build/dockhand/internal/logging"
	"github.com/dockhand-build/dockhand/internal/recipe"
	"github.com/dockhand-build/dockhand/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	var (
		port        int
		watchEngine string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the image whenever build inputs change",
		Long: `Watch the project for changes to application sources, the dependency
manifest, and the recipe, and rerun the whole pipeline on every change.

A WebSocket endpoint at /ws broadcasts build status: stage progress,
failures with their error codes, and successes with the image ref.

Examples:
  # Watch with the default status port
  dockhand watch

  # Use a custom status port
  dockhand watch --port 8090

  # Enable verbose logging
  dockhand watch --verbose
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := projectDir()
			if err != nil {
				return err
			}
			if !recipe.InProject(dir) {
				return fmt.Errorf("no dockhand.yml or requirements.txt found - are you in a dockhand project?")
			}

			log := logging.New(verbose)
			defer log.Sync()

			session, err := watch.NewSession(watch.SessionConfig{
				Dir:  dir,
				Port: port,
				Log:  log,
				NewEngine: func(r *recipe.Recipe) (engine.Engine, error) {
					return newEngine(r, watchEngine, verbose, log)
				},
			})
			if err != nil {
				return fmt.Errorf("failed to create watch session: %w", err)
			}

			if err := session.Start(); err != nil {
				return fmt.Errorf("failed to start watch session: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			banner := color.New(color.FgCyan, color.Bold)
			info := color.New(color.FgWhite)

			fmt.Println()
			banner.Println("dockhand watch")
			info.Printf("   Project: %s\n", dir)
			info.Printf("   Status:  ws://localhost:%d/ws\n", port)
			fmt.Println()
			color.New(color.FgYellow).Println("Press Ctrl+C to stop")
			fmt.Println()

			<-sigChan

			fmt.Println("\n\nShutting down...")

			if err := session.Stop(); err != nil {
				return fmt.Errorf("error stopping watch session: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 8035, "Status server port")
	cmd.Flags().StringVar(&watchEngine, "engine", "", "Override the container engine (docker, podman)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show verbose output")

	return cmd
}
