// askql – natural-language to SQL for PostgreSQL.
//
// Entry point: initializes the Cobra root command and launches the
// Bubble Tea chat UI by default (no subcommand required).
package main

import (
	"os"

	"github.com/askql/askql/applog"
	"github.com/askql/askql/cmd"
)

func main() {
	defer applog.Close()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
