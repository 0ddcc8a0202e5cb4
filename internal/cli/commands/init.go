package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dockhand-build/dockhand/internal/scaffold"
)

var (
	initInteractive bool
	initBaseImage   string
	initPort        int
	initServer      string
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [project-name]",
		Short: "Create a new dockhand project",
		Long: `Create a new project directory with a build recipe, a dependency
manifest, and a minimal ASGI application.

If no project name is provided, you will be prompted to enter one.`,
		Example: `  dockhand init catalog-api
  dockhand init catalog-api --port 9000
  dockhand init --interactive`,
		RunE: runInit,
	}

	cmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Interactive project setup with prompts")
	cmd.Flags().StringVar(&initBaseImage, "base-image", "python:3.11-slim", "Base image for both stages")
	cmd.Flags().IntVar(&initPort, "port", 8000, "Advertised listening port")
	cmd.Flags().StringVar(&initServer, "server", "uvicorn", "ASGI server executable")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgCyan)
	promptColor := color.New(color.FgYellow)

	var projectName string
	if len(args) > 0 {
		projectName = args[0]
	}

	if projectName == "" {
		prompt := &survey.Input{
			Message: "Project name:",
		}
		if err := survey.AskOne(prompt, &projectName, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	if err := scaffold.ValidateProjectName(projectName); err != nil {
		return err
	}

	if initInteractive {
		questions := []*survey.Question{
			{
				Name: "baseImage",
				Prompt: &survey.Select{
					Message: "Base image:",
					Options: []string{"python:3.11-slim", "python:3.12-slim", "python:3.11", "python:3.12"},
					Default: initBaseImage,
				},
			},
			{
				Name: "server",
				Prompt: &survey.Select{
					Message: "ASGI server:",
					Options: []string{"uvicorn", "hypercorn", "daphne"},
					Default: initServer,
				},
			},
			{
				Name: "port",
				Prompt: &survey.Input{
					Message: "Advertised port:",
					Default: strconv.Itoa(initPort),
				},
			},
		}

		answers := struct {
			BaseImage string
			Server    string
			Port      string
		}{}
		if err := survey.Ask(questions, &answers); err != nil {
			return err
		}

		initBaseImage = answers.BaseImage
		initServer = answers.Server
		port, err := strconv.Atoi(answers.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", answers.Port)
		}
		initPort = port
	}

	projectPath := filepath.Join(".", projectName)

	infoColor.Printf("Creating project: %s\n\n", projectName)

	created, err := scaffold.Create(projectPath, scaffold.Options{
		ProjectName: projectName,
		BaseImage:   initBaseImage,
		Server:      initServer,
		Port:        initPort,
	})
	if err != nil {
		return err
	}

	for _, name := range created {
		infoColor.Printf("  ✓ Created %s\n", name)
	}

	fmt.Println()
	successColor.Printf("✓ Created project: %s\n\n", projectName)

	promptColor.Println("Get started:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  dockhand check")
	fmt.Println("  dockhand build")
	fmt.Printf("  dockhand run --publish %d\n", initPort)
	fmt.Println()

	return nil
}
