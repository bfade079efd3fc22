package main

import (
	"fmt"
	"log/slog"
	"os"

	app "github.com/valter-silva-au/paperless-tasks/internal"
	"github.com/valter-silva-au/paperless-tasks/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.Initialize = func(configPath string, logger *slog.Logger) error {
		if _, err := app.NewApp(configPath, logger); err != nil {
			return fmt.Errorf("initializing ptsync: %w", err)
		}
		return nil
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
