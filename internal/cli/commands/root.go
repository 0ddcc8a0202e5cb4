// Package commands implements the dockhand command line.
package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dockhand",
		Short: "Two-stage container builds for Python ASGI services",
		Long: color.CyanString(`dockhand - reproducible container builds for Python services

dockhand turns a declarative recipe (dockhand.yml) and a dependency
manifest (requirements.txt) into a minimal two-stage container image:
a throwaway builder stage resolves and compiles dependencies, and a
runtime stage carries only the install tree, the required shared
libraries, the application source, and a non-root user.

Features:
  • Builder toolchain never reaches the runtime image
  • Advertised port and start command baked in, host port injected at run
  • Image verification against the recipe contract
  • Build history with input digests`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewRenderCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewCleanCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the dockhand version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)

			titleColor.Print("dockhand version: ")
			valueColor.Println(Version)

			titleColor.Print("Git commit: ")
			valueColor.Println(GitCommit)

			titleColor.Print("Build date: ")
			valueColor.Println(BuildDate)

			titleColor.Print("Go version: ")
			valueColor.Println(goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
