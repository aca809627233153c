package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/ssmgen/internal/inference"
)

const envConfigPath = "SSMGEN_CONFIG"

// loadedConfig is the config file read by the root Before hook.
var loadedConfig Config

// Config represents the ssmgen configuration file (~/.config/ssmgen/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	Model      string `yaml:"model"`
	Tokenizer  string `yaml:"tokenizer"`
	EOSSymbol  string `yaml:"eos_symbol"`
	ORTLibrary string `yaml:"onnxruntime_lib"`
	Threads    *int64 `yaml:"threads"`

	// Sampling defaults
	MaxNewTokens  *int     `yaml:"max_new_tokens"`
	Temperature   *float64 `yaml:"temperature"`
	TopP          *float64 `yaml:"top_p"`
	Seed          *int64   `yaml:"seed"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`
	RepeatWindow  *int     `yaml:"repeat_last_n"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string   `yaml:"server_address"`
	Engines       *int64   `yaml:"engines"`
	RateLimit     *float64 `yaml:"rate_limit"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ssmgen", "config.yaml")
}

// LoadConfig reads path, or the default location when path is empty. A
// missing default file yields a zero Config; a missing explicit file is an
// error.
func LoadConfig(path string) (Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// GenDefaults exposes the sampling section as generation defaults.
func (c Config) GenDefaults() inference.GenDefaults {
	return inference.GenDefaults{
		MaxNewTokens:  c.MaxNewTokens,
		Seed:          c.Seed,
		Temperature:   c.Temperature,
		TopP:          c.TopP,
		RepeatPenalty: c.RepeatPenalty,
		RepeatWindow:  c.RepeatWindow,
	}
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyModelConfig applies config file defaults to the model flags when the
// corresponding CLI flag was not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		modelName = cfg.Model
	}
	if cfg.Tokenizer != "" && !c.IsSet("tokenizer") {
		tokenizerPath = cfg.Tokenizer
	}
	if cfg.EOSSymbol != "" && !c.IsSet("eos") {
		eosSymbol = cfg.EOSSymbol
	}
	if cfg.ORTLibrary != "" && !c.IsSet("onnxruntime-lib") {
		ortLibrary = cfg.ORTLibrary
	}
	if cfg.Threads != nil && !c.IsSet("threads") {
		threads = *cfg.Threads
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, engines *int64, rateLimit *float64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.Engines != nil && !c.IsSet("engines") {
		*engines = *cfg.Engines
	}
	if cfg.RateLimit != nil && !c.IsSet("rate-limit") {
		*rateLimit = *cfg.RateLimit
	}
}
