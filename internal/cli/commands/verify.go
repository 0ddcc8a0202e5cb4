package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dockhand-build/dockhand/internal/cli/ui"
	"github.com/dockhand-build/dockhand/internal/logging"
	"github.com/dockhand-build/dockhand/internal/verify"
)

var (
	verifyJSON         bool
	verifyVerbose      bool
	verifyEngine       string
	verifyProbe        bool
	verifyProbeTimeout time.Duration
	verifyProbePort    int
)

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [image]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Verify the built image against the recipe contract",
		Long: `Check the built image for the properties the pipeline promises:

  • no compiler toolchain in the runtime image
  • no package-manager caches
  • a non-root execution user
  • the advertised port
  • the enumerated runtime environment
  • the declared start command

With --probe, the image is also started and the advertised port is
polled until it accepts connections or the timeout expires.`,
		Example: `  dockhand verify
  dockhand verify --probe
  dockhand verify --probe --probe-timeout 60s
  dockhand verify --json`,
		RunE: runVerify,
	}

	cmd.Flags().BoolVar(&verifyJSON, "json", false, "Output results in JSON format")
	cmd.Flags().BoolVarP(&verifyVerbose, "verbose", "v", false, "Show detailed output")
	cmd.Flags().StringVar(&verifyEngine, "engine", "", "Override the container engine (docker, podman)")
	cmd.Flags().BoolVar(&verifyProbe, "probe", false, "Start the image and wait for the advertised port")
	cmd.Flags().DurationVar(&verifyProbeTimeout, "probe-timeout", 30*time.Second, "How long the probe waits for the port")
	cmd.Flags().IntVar(&verifyProbePort, "probe-port", 0, "Host port the probe publishes on (default: advertised port)")

	return cmd
}

type verifyResultJSON struct {
	Check   string `json:"check"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	successColor := color.New(color.FgGreen, color.Bold)
	errorColor := color.New(color.FgRed, color.Bold)
	passColor := color.New(color.FgGreen)
	skipColor := color.New(color.FgHiBlack)

	dir, err := projectDir()
	if err != nil {
		return err
	}

	r, err := loadRecipe(dir, "")
	if err != nil {
		return err
	}

	log := logging.New(verifyVerbose)
	defer log.Sync()

	eng, err := newEngine(r, verifyEngine, verifyVerbose, log)
	if err != nil {
		return err
	}

	ref := r.Ref()
	if len(args) > 0 {
		ref = args[0]
	}

	// Inspect plus the one-shot containers take a few seconds; keep
	// the terminal alive while they run.
	spinner := ui.NewSpinner(cmd.OutOrStdout(), ui.SpinnerOptions{
		Message: fmt.Sprintf("Verifying %s", ref),
	})
	if !verifyJSON {
		spinner.Start()
	}

	results, err := verify.Run(cmd.Context(), eng, r, ref, verify.Options{
		Probe:        verifyProbe,
		ProbeTimeout: verifyProbeTimeout,
		ProbePort:    verifyProbePort,
	})
	spinner.Stop()
	if err != nil {
		return err
	}

	if verifyJSON {
		out := make([]verifyResultJSON, 0, len(results))
		for _, res := range results {
			j := verifyResultJSON{Check: res.Check, Detail: res.Detail}
			switch {
			case res.Skipped:
				j.Status = "skipped"
			case res.Err != nil:
				j.Status = "failed"
				j.Message = res.Err.Error()
			default:
				j.Status = "passed"
			}
			out = append(out, j)
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			return err
		}
		if !verify.Passed(results) {
			return fmt.Errorf("verification failed")
		}
		return nil
	}

	failed := 0
	for _, res := range results {
		switch {
		case res.Skipped:
			skipColor.Fprintf(cmd.OutOrStdout(), "  - %s (skipped)\n", res.Check)
		case res.Err != nil:
			failed++
			errorColor.Fprintf(cmd.OutOrStdout(), "  ✗ %s\n", res.Check)
			fmt.Fprintf(cmd.OutOrStdout(), "    %v\n", res.Err)
		default:
			passColor.Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", res.Check)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout())
	if failed > 0 {
		errorColor.Fprintf(cmd.OutOrStdout(), "✗ %d check(s) failed for %s\n", failed, ref)
		return fmt.Errorf("verification failed")
	}

	successColor.Fprintf(cmd.OutOrStdout(), "✓ %s satisfies the recipe contract\n", ref)
	return nil
}
