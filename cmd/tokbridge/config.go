package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokbridge/internal/app"
	"github.com/samcharles93/tokbridge/internal/config"
	"github.com/samcharles93/tokbridge/internal/logger"
)

// current is the App built by setup for the running command.
var current *app.App

// applyFlags overrides config file values with flags the user set explicitly.
func applyFlags(c *cli.Command, cfg *config.Config) {
	if c.IsSet("log-level") {
		cfg.LogLevel = logLevel
	}
	// The library defaults to text; the CLI uses its flag default unless the
	// file chose a format.
	if c.IsSet("log-format") || !cfg.FromFile("log_format") {
		cfg.LogFormat = logFormat
	}
	if debug {
		cfg.LogLevel = "debug"
		cfg.DebugLogs = true
	}
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	applyFlags(cmd, &cfg)
	a, err := app.New(cfg, app.Options{Stderr: os.Stderr})
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	current = a
	return logger.WithContext(ctx, a.Log), nil
}

func teardown(context.Context, *cli.Command) error {
	if current == nil {
		return nil
	}
	return current.Close()
}
