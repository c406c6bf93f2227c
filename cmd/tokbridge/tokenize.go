package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tokbridge/internal/bridge"
	"github.com/samcharles93/tokbridge/internal/logger"
)

func tokenizeCmd() *cli.Command {
	var (
		model   string
		token   string
		text    string
		rawJSON bool
	)
	return &cli.Command{
		Name:      "tokenize",
		Aliases:   []string{"tok"},
		Usage:     "Tokenize text with a model",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "model name, alias, tokenizer path or hub repo id",
				Value:       "default",
				Destination: &model,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "hub access token for this request",
				Destination: &token,
			},
			&cli.StringFlag{
				Name:        "text",
				Usage:       "text to tokenize (default: arguments, then stdin)",
				Destination: &text,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the raw result buffer",
				Destination: &rawJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			input, err := inputText(cmd, text, os.Stdin)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			b := current.Bridge
			p, status := b.Tokenize(ctx, bridge.Request{Text: input, Model: model, Token: token})
			if status != bridge.StatusOK {
				return cli.Exit(fmt.Sprintf("error: tokenize %q: %s", model, status), int(status))
			}
			defer b.Release(p)

			w := cmd.Root().Writer
			if rawJSON {
				fmt.Fprintln(w, bridge.String(p))
				return nil
			}
			res, err := bridge.Decode(p)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			printResult(w, res)
			log.Debug("tokenized", "model", model, "tokens", len(res.IDs))
			return nil
		},
	}
}

// inputText picks --text, then joined arguments, then stdin.
func inputText(cmd *cli.Command, text string, stdin io.Reader) (string, error) {
	if cmd.IsSet("text") {
		return text, nil
	}
	if cmd.Args().Len() > 0 {
		return strings.Join(cmd.Args().Slice(), " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func printResult(w io.Writer, res *bridge.Result) {
	for i, id := range res.IDs {
		fmt.Fprintf(w, "%8d  %q\n", id, res.Tokens[i])
	}
	fmt.Fprintf(w, "\n%d token(s)\n", len(res.IDs))
	for _, line := range res.DebugLogs {
		fmt.Fprintf(w, "# %s\n", line)
	}
}
