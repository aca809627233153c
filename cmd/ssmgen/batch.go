package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/ssmgen/internal/inference"
	"github.com/samcharles93/ssmgen/internal/logger"
	"github.com/samcharles93/ssmgen/internal/logits"
)

// batchRecord is one JSON line of batch output.
type batchRecord struct {
	Index           int     `json:"index"`
	Prompt          string  `json:"prompt"`
	Text            string  `json:"text,omitempty"`
	Generated       int     `json:"generated_tokens"`
	Stop            string  `json:"stop_reason,omitempty"`
	TokensPerSecond float64 `json:"tokens_per_second,omitempty"`
	Attempts        int     `json:"attempts"`
	Error           string  `json:"error,omitempty"`
}

func batchCmd() *cli.Command {
	var (
		sampling   samplingVars
		input      string
		output     string
		parallel   int64
		timeout    time.Duration
		retries    int64
		backoff    time.Duration
		noProgress bool
	)

	flags := append(commonModelFlags(), sampling.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       `file with one prompt per line ("-" for stdin)`,
			Value:       "-",
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "JSON lines output file (default: stdout)",
			Destination: &output,
		},
		&cli.Int64Flag{
			Name:        "parallel",
			Aliases:     []string{"j"},
			Usage:       "number of prompts generated concurrently",
			Value:       4,
			Destination: &parallel,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "per-attempt timeout (0 = none)",
			Destination: &timeout,
		},
		&cli.Int64Flag{
			Name:        "retries",
			Usage:       "extra attempts for failed prompts",
			Value:       2,
			Destination: &retries,
		},
		&cli.DurationFlag{
			Name:        "backoff",
			Usage:       "initial delay between attempts, doubled each retry",
			Value:       200 * time.Millisecond,
			Destination: &backoff,
		},
		&cli.BoolFlag{
			Name:        "no-progress",
			Usage:       "disable the progress bar",
			Destination: &noProgress,
		},
	)

	return &cli.Command{
		Name:  "batch",
		Usage: "Generate continuations for a file of prompts",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, loadedConfig)
			if parallel <= 0 {
				return cli.Exit("error: --parallel must be positive", 1)
			}

			prompts, err := loadPrompts(input)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(prompts) == 0 {
				return cli.Exit("error: no prompts to generate", 1)
			}

			backend, err := newLoader().Load()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			defer func() { _ = backend.Close() }()

			out := io.Writer(os.Stdout)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: create output: %v", err), 1)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			cfg := inference.ResolveRequest(sampling.options(cmd), loadedConfig.GenDefaults())
			policy := retryPolicy{attempts: int(retries) + 1, timeout: timeout, backoff: backoff}
			var (
				bar  *progressbar.ProgressBar
				tick func()
			)
			if !noProgress {
				bar = newProgressBar(len(prompts), "Prompts")
			}
			if bar != nil {
				tick = func() { _ = bar.Add(1) }
			}

			start := time.Now()
			records, err := runBatch(ctx, backend, prompts, cfg, int(parallel), policy, log, tick)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: batch: %v", err), 1)
			}

			enc := json.NewEncoder(out)
			var generated, failed int
			for _, rec := range records {
				if err := enc.Encode(rec); err != nil {
					return cli.Exit(fmt.Sprintf("error: write output: %v", err), 1)
				}
				generated += rec.Generated
				if rec.Error != "" {
					failed++
				}
			}
			elapsed := time.Since(start)
			log.Info("batch complete",
				"prompts", len(records),
				"failed", failed,
				"generated", generated,
				"elapsed", elapsed.Round(time.Millisecond),
				"tokens_per_second", float64(generated)/elapsed.Seconds(),
			)
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("error: %d of %d prompts failed", failed, len(records)), 1)
			}
			return nil
		},
	}
}

func loadPrompts(path string) ([]string, error) {
	if path == "" || path == "-" {
		return readPrompts(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readPrompts(f)
}

// runBatch generates every prompt on its own engine with at most parallel
// engines running at once. A failed prompt is recorded and does not stop the
// others; only engine construction errors abort the batch.
func runBatch(ctx context.Context, backend *inference.Backend, prompts []string, cfg logits.SamplingConfig,
	parallel int, policy retryPolicy, log logger.Logger, tick func(),
) ([]batchRecord, error) {
	records := make([]batchRecord, len(prompts))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, prompt := range prompts {
		g.Go(func() error {
			plog := log.With("prompt_index", i)
			engine, err := backend.NewEngine(inference.WithLogger(plog))
			if err != nil {
				return err
			}
			rec := batchRecord{Index: i, Prompt: prompt}
			res, attempts, err := generateWithRetry(gctx, engine, inference.Request{Prompt: prompt, Config: cfg}, policy, plog)
			rec.Attempts = attempts
			if err != nil {
				rec.Error = err.Error()
			} else {
				rec.Text = res.Text
				rec.Generated = res.Stats.TokensGenerated
				rec.Stop = string(res.Stop)
				rec.TokensPerSecond = res.Stats.TPS
			}
			records[i] = rec
			plog.Debug("prompt finished", "done", done.Add(1), "attempts", attempts)
			if tick != nil {
				tick()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
