package main

import (
	"os"

	"github.com/dockhand-build/dockhand/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
