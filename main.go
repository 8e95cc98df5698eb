package main

import (
	"fmt"
	"log/slog"
	"os"

	"radioval/cmd"
	"radioval/internal/conf"
	"radioval/internal/logging"
	"radioval/internal/pipeline"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if settings.Main.Log.Enabled {
		closeLog, err := logging.EnableFileOutput(settings.Main.Log.Path, slog.LevelInfo, logging.FileConfig{
			Rotation:  settings.Main.Log.Rotation,
			MaxSizeMB: int(settings.Main.Log.MaxSize / (1024 * 1024)),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error enabling file logging: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = closeLog() }()
	}

	// Collaborator implementations (source finder, catalogue readers,
	// report renderer, image corrector) are supplied by the integrating
	// deployment; the built-in binary wires the persistence store only.
	rootCmd := cmd.RootCommand(settings, pipeline.Collaborators{})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		os.Exit(1)
	}
}
