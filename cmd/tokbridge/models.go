package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokbridge/internal/logger"
	"github.com/samcharles93/tokbridge/internal/tokenizer"
)

func modelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "models",
		Aliases: []string{"ls", "list-models"},
		Usage:   "List built-in encodings, configured aliases and cached hub tokenizers",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			w := cmd.Root().Writer

			fmt.Fprintln(w, "Built-in:")
			for _, name := range tokenizer.BuiltinEncodings {
				marker := ""
				if name == current.Config.DefaultModel {
					marker = "  (default)"
				}
				fmt.Fprintf(w, "  %s%s\n", name, marker)
			}

			if len(current.Config.Aliases) > 0 {
				names := make([]string, 0, len(current.Config.Aliases))
				for name := range current.Config.Aliases {
					names = append(names, name)
				}
				sort.Strings(names)
				fmt.Fprintln(w, "\nAliases:")
				for _, name := range names {
					fmt.Fprintf(w, "  %-40s -> %s\n", name, current.Config.Aliases[name])
				}
			}

			cached, err := current.Resolver.CachedModels()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(cached) == 0 {
				log.Info("no cached tokenizers", "path", current.Resolver.CacheDir())
				return nil
			}
			fmt.Fprintf(w, "\nCached in %s:\n", current.Resolver.CacheDir())
			for _, m := range cached {
				fmt.Fprintf(w, "  %-40s %s\n", m.Repo, shortSnapshot(m.Snapshot))
			}
			fmt.Fprintf(w, "\n%d cached tokenizer(s)\n", len(cached))
			return nil
		},
	}
}

func shortSnapshot(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12]
}
