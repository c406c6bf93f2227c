package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokbridge/internal/tokenizer"
	"github.com/samcharles93/tokbridge/internal/version"
)

// versionCmd prints the build and what this build can tokenize offline.
func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version, default model and built-in encodings",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			w := cmd.Root().Writer
			line := "tokbridge " + info.Version
			if info.Commit != "" {
				line += " (" + info.Commit
				if info.BuildTime != "" {
					line += ", built " + info.BuildTime
				}
				line += ")"
			}
			fmt.Fprintln(w, line)
			fmt.Fprintf(w, "default model: %s\n", current.Config.DefaultModel)
			fmt.Fprintf(w, "encodings:     %s\n", strings.Join(tokenizer.BuiltinEncodings, ", "))
			fmt.Fprintf(w, "hub cache:     %s\n", current.Resolver.CacheDir())
			if current.Config.Offline {
				fmt.Fprintln(w, "hub:           offline")
			} else {
				fmt.Fprintf(w, "hub:           %s (revision %s)\n", current.Config.HubEndpoint, current.Config.Revision)
			}
			return nil
		},
	}
}
