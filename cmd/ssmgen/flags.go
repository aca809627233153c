package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ssmgen/internal/codec"
	"github.com/samcharles93/ssmgen/internal/inference"
	"github.com/samcharles93/ssmgen/internal/logits"
)

var (
	modelName     string
	tokenizerPath string
	eosSymbol     string
	ortLibrary    string
	threads       int64
	toySeed       int64
	toyHidden     int64
	configFile    string
	logLevel      string
	logFormat     string
	debug         bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       `"toy" for the built-in model or a path to an .onnx step graph`,
			Value:       inference.ToyModelName,
			Destination: &modelName,
		},
		&cli.StringFlag{
			Name:        "tokenizer",
			Usage:       "path to a tokenizer.json (default: byte-level codec)",
			Destination: &tokenizerPath,
		},
		&cli.StringFlag{
			Name:        "eos",
			Usage:       "end-of-sequence token symbol",
			Value:       codec.EndOfText,
			Destination: &eosSymbol,
		},
		&cli.StringFlag{
			Name:        "onnxruntime-lib",
			Usage:       "path to the onnxruntime shared library",
			Sources:     cli.EnvVars("ONNXRUNTIME_LIB"),
			Destination: &ortLibrary,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Usage:       "intra-op threads for the onnx session (0 = runtime default)",
			Destination: &threads,
		},
		&cli.Int64Flag{
			Name:        "toy-seed",
			Usage:       "weight seed for the toy model",
			Value:       1,
			Destination: &toySeed,
		},
		&cli.Int64Flag{
			Name:        "toy-hidden",
			Usage:       "hidden size of the toy model",
			Value:       32,
			Destination: &toyHidden,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "path to config.yaml",
		Sources:     cli.EnvVars(envConfigPath),
		Destination: &configFile,
	}
}

func newLoader() inference.Loader {
	return inference.Loader{
		Model:          modelName,
		TokenizerPath:  tokenizerPath,
		EOSSymbol:      eosSymbol,
		ORTLibraryPath: ortLibrary,
		Threads:        int(threads),
		ToySeed:        toySeed,
		ToyHidden:      int(toyHidden),
	}
}

// samplingVars holds the sampling flags of one command. Only flags the user
// set become request overrides; the rest fall through to the config file.
type samplingVars struct {
	maxNewTokens  int64
	temperature   float64
	topP          float64
	seed          int64
	repeatPenalty float64
	repeatWindow  int64
}

func (s *samplingVars) flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "max-new-tokens",
			Aliases:     []string{"n", "sample-len"},
			Usage:       "maximum number of tokens to generate",
			Value:       inference.DefaultMaxNewTokens,
			Destination: &s.maxNewTokens,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature (0 = greedy)",
			Destination: &s.temperature,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Usage:       "nucleus sampling probability cutoff",
			Value:       1,
			Destination: &s.topP,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed for sampling",
			Value:       logits.DefaultSeed,
			Destination: &s.seed,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Usage:       "penalty for repeating tokens (1 = off)",
			Value:       1,
			Destination: &s.repeatPenalty,
		},
		&cli.Int64Flag{
			Name:        "repeat-last-n",
			Usage:       "context window the repeat penalty looks at",
			Value:       logits.DefaultRepeatWindow,
			Destination: &s.repeatWindow,
		},
	}
}

func (s *samplingVars) options(c *cli.Command) inference.RequestOptions {
	var opts inference.RequestOptions
	if c.IsSet("max-new-tokens") {
		v := int(s.maxNewTokens)
		opts.MaxNewTokens = &v
	}
	if c.IsSet("temperature") {
		v := s.temperature
		opts.Temperature = &v
	}
	if c.IsSet("top-p") {
		v := s.topP
		opts.TopP = &v
	}
	if c.IsSet("seed") {
		v := s.seed
		opts.Seed = &v
	}
	if c.IsSet("repeat-penalty") {
		v := s.repeatPenalty
		opts.RepeatPenalty = &v
	}
	if c.IsSet("repeat-last-n") {
		v := int(s.repeatWindow)
		opts.RepeatWindow = &v
	}
	return opts
}
