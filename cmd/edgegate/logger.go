package main

import (
	"fmt"
	"log/slog"

	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/edgegate-io/edgegate/internal/logging/writers"
	"github.com/urfave/cli/v3"
)

// buildLogHandler resolves the root command's log flags into a slog handler.
func buildLogHandler(cmd *cli.Command) (slog.Handler, error) {
	root := cmd.Root()

	writer, err := writers.CreateWriter(root.String("log-output"))
	if err != nil {
		return nil, fmt.Errorf("failed to set up log output: %w", err)
	}

	level := root.String("log-level")
	switch root.String("log-format") {
	case "json":
		return logging.SetupHandlerJSON(level, writer), nil
	default:
		return logging.SetupHandlerText(level, writer), nil
	}
}
