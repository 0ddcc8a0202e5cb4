// Package scaffold creates new project directories: a build recipe, a
// dependency manifest, a minimal ASGI application, and supporting files.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*
var templatesFS embed.FS

// createFile is swapped out by tests.
var createFile = os.Create

// Options controls the generated project.
type Options struct {
	ProjectName string
	BaseImage   string
	Server      string
	Port        int
}

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateProjectName rejects names that cannot serve as a directory
// name and an image name.
func ValidateProjectName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) == 0 || len(name) > 100 {
		return fmt.Errorf("project name must be 1-100 characters")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("project name cannot be an absolute path")
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("project name can only contain letters, numbers, dashes, and underscores")
	}

	return nil
}

// files maps destination paths to their templates.
var files = map[string]string{
	"dockhand.yml":     "templates/dockhand.yml.tmpl",
	"requirements.txt": "templates/requirements.txt.tmpl",
	"main.py":          "templates/main.py.tmpl",
	".dockerignore":    "templates/dockerignore.tmpl",
	"README.md":        "templates/readme.md.tmpl",
}

// Create generates a project at projectPath. The directory must not
// already exist. Returns the created file paths relative to the
// project root.
func Create(projectPath string, opts Options) ([]string, error) {
	if err := ValidateProjectName(filepath.Base(projectPath)); err != nil {
		return nil, err
	}
	if opts.ProjectName == "" {
		opts.ProjectName = filepath.Base(projectPath)
	}
	if opts.BaseImage == "" {
		opts.BaseImage = "python:3.11-slim"
	}
	if opts.Server == "" {
		opts.Server = "uvicorn"
	}
	if opts.Port == 0 {
		opts.Port = 8000
	}

	if _, err := os.Stat(projectPath); err == nil {
		return nil, fmt.Errorf("directory %s already exists", projectPath)
	}
	if err := os.MkdirAll(projectPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	var created []string
	for destPath, tmplPath := range files {
		if err := renderFile(projectPath, destPath, tmplPath, opts); err != nil {
			// The directory did not exist before this call, so a
			// failed scaffold leaves nothing behind.
			os.RemoveAll(projectPath)
			return nil, err
		}
		created = append(created, destPath)
	}
	sort.Strings(created)

	return created, nil
}

func renderFile(projectPath, destPath, tmplPath string, opts Options) error {
	content, err := templatesFS.ReadFile(tmplPath)
	if err != nil {
		return fmt.Errorf("reading template %s: %w", tmplPath, err)
	}

	tmpl, err := template.New(filepath.Base(tmplPath)).Parse(string(content))
	if err != nil {
		return fmt.Errorf("parsing template %s: %w", tmplPath, err)
	}

	dest := filepath.Join(projectPath, destPath)
	f, err := createFile(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	if err := tmpl.Execute(f, opts); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("rendering %s: %w", tmplPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}

	return nil
}
