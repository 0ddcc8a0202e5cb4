package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewInitCommand(t *testing.T) {
	cmd := NewInitCommand()

	if cmd.Use != "init [project-name]" {
		t.Errorf("expected Use to be 'init [project-name]', got %s", cmd.Use)
	}

	for _, name := range []string{"interactive", "base-image", "port", "server"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag to be registered", name)
		}
	}

	if got := cmd.Flags().Lookup("base-image").DefValue; got != "python:3.11-slim" {
		t.Errorf("expected default base image python:3.11-slim, got %s", got)
	}
	if got := cmd.Flags().Lookup("port").DefValue; got != "8000" {
		t.Errorf("expected default port 8000, got %s", got)
	}
}

func TestRunInit_CreatesProject(t *testing.T) {
	dir := chdirTemp(t)

	cmd := NewInitCommand()
	cmd.SetContext(context.Background())

	if err := runInit(cmd, []string{"catalog-api"}); err != nil {
		t.Fatalf("expected init to succeed, got: %v", err)
	}

	for _, name := range []string{"dockhand.yml", "requirements.txt", "main.py", ".dockerignore", "README.md"} {
		if _, err := os.Stat(filepath.Join(dir, "catalog-api", name)); err != nil {
			t.Errorf("expected %s to be created: %v", name, err)
		}
	}
}

func TestRunInit_InvalidName(t *testing.T) {
	chdirTemp(t)

	cmd := NewInitCommand()
	cmd.SetContext(context.Background())

	if err := runInit(cmd, []string{"bad name!"}); err == nil {
		t.Error("expected init to reject an invalid project name, got nil")
	}
}

func TestRunInit_ExistingDirectory(t *testing.T) {
	dir := chdirTemp(t)

	if err := os.MkdirAll(filepath.Join(dir, "catalog-api"), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	cmd := NewInitCommand()
	cmd.SetContext(context.Background())

	if err := runInit(cmd, []string{"catalog-api"}); err == nil {
		t.Error("expected init to refuse an existing directory, got nil")
	}
}
