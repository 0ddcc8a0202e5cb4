package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	if cmd.Use != "run" {
		t.Errorf("expected Use to be 'run', got %s", cmd.Use)
	}

	for _, name := range []string{"publish", "name", "engine", "verbose"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag to be registered", name)
		}
	}

	if cmd.Flags().ShorthandLookup("p") == nil {
		t.Error("expected -p shorthand for --publish")
	}
}

func TestRunRun_InvalidEngineOverride(t *testing.T) {
	chdirTemp(t)

	// Flag registration resets the package-level var, so the override
	// has to land after the command is constructed.
	cmd := NewRunCommand()
	runEngine = "lxc"
	defer func() { runEngine = "" }()
	cmd.SetContext(context.Background())
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := runRun(cmd, []string{})

	if err == nil {
		t.Fatal("expected run to fail on an unsupported engine, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported engine") {
		t.Errorf("expected unsupported-engine error, got: %v", err)
	}
}
