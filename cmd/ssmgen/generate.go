package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ssmgen/internal/inference"
	"github.com/samcharles93/ssmgen/internal/logger"
)

func generateCmd() *cli.Command {
	var (
		sampling   samplingVars
		prompt     string
		promptFile string
		showTokens bool
		noProgress bool
	)

	flags := append(commonModelFlags(), sampling.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "prompt text",
			Destination: &prompt,
		},
		&cli.StringFlag{
			Name:        "prompt-file",
			Usage:       `read the prompt from a file ("-" for stdin)`,
			Destination: &promptFile,
		},
		&cli.BoolFlag{
			Name:        "show-tokens",
			Usage:       "print the token ids of the full history",
			Destination: &showTokens,
		},
		&cli.BoolFlag{
			Name:        "no-progress",
			Usage:       "disable the progress bar",
			Destination: &noProgress,
		},
	)

	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"gen"},
		Usage:     "Generate a continuation for one prompt",
		ArgsUsage: "[prompt]",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, loadedConfig)

			text, err := resolvePrompt(prompt, promptFile, cmd.Args().First(), os.Stdin, isTerminal(os.Stdin))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			backend, err := newLoader().Load()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			defer func() { _ = backend.Close() }()

			engine, err := backend.NewEngine(inference.WithLogger(log))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg := inference.ResolveRequest(sampling.options(cmd), loadedConfig.GenDefaults())
			log.Debug("sampling", "greedy", cfg.Greedy(), "seed", cfg.Seed,
				"repeat_penalty", cfg.RepeatPenalty, "repeat_last_n", cfg.RepeatWindow, "max_new_tokens", cfg.MaxNewTokens)

			var stream inference.StreamFunc
			var bar *progressbar.ProgressBar
			if !noProgress {
				bar = newProgressBar(cfg.MaxNewTokens, "Generating")
			}
			if bar != nil {
				stream = func(int) { _ = bar.Add(1) }
			}

			res, err := engine.Generate(ctx, inference.Request{Prompt: text, Config: cfg}, stream)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
			}

			fmt.Println(res.Text)
			if showTokens {
				fmt.Println(joinInts(res.Tokens))
			}
			_, _ = fmt.Fprintf(os.Stderr, "%d tokens generated (%.2f token/s)\n", res.Stats.TokensGenerated, res.Stats.TPS)
			return nil
		},
	}
}

func joinInts(ids []int) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}
