package commands

import (
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "dockhand" {
		t.Errorf("expected Use to be 'dockhand', got %s", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	expected := []string{"version", "init", "check", "render", "build", "run", "verify", "watch", "history", "clean"}
	registered := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		registered[sub.Name()] = true
	}

	for _, name := range expected {
		if !registered[name] {
			t.Errorf("expected %q subcommand to be registered", name)
		}
	}
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand()

	if cmd.Use != "version" {
		t.Errorf("expected Use to be 'version', got %s", cmd.Use)
	}

	// Writes to stdout through the color package; just make sure it
	// does not panic with the build-time defaults.
	cmd.Run(cmd, []string{})
}
