package commands

import (
	"testing"
)

func TestNewWatchCommand(t *testing.T) {
	cmd := NewWatchCommand()

	if cmd.Use != "watch" {
		t.Errorf("expected Use to be 'watch', got %s", cmd.Use)
	}

	if cmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	portFlag := cmd.Flags().Lookup("port")
	if portFlag == nil {
		t.Fatal("expected --port flag to be registered")
	}
	if portFlag.DefValue != "8035" {
		t.Errorf("expected default status port 8035, got %s", portFlag.DefValue)
	}

	if cmd.Flags().Lookup("engine") == nil {
		t.Error("expected --engine flag to be registered")
	}
	if cmd.Flags().Lookup("verbose") == nil {
		t.Error("expected --verbose flag to be registered")
	}
}
