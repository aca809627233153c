package inference

import "github.com/samcharles93/ssmgen/internal/logits"

// DefaultMaxNewTokens is the budget used when neither the request nor the
// configured defaults set one.
const DefaultMaxNewTokens = 256

// RequestOptions carries per-call overrides. Nil fields fall back to
// GenDefaults and then to the built-in defaults.
type RequestOptions struct {
	MaxNewTokens  *int
	Seed          *int64
	Temperature   *float64
	TopP          *float64
	RepeatPenalty *float64
	RepeatWindow  *int
}

// GenDefaults are operator-level defaults, usually from the config file.
type GenDefaults struct {
	MaxNewTokens  *int
	Seed          *int64
	Temperature   *float64
	TopP          *float64
	RepeatPenalty *float64
	RepeatWindow  *int
}

// ResolveRequest layers opts over defaults over the built-in values. It does
// not validate; Engine.Generate does.
func ResolveRequest(opts RequestOptions, defaults GenDefaults) logits.SamplingConfig {
	cfg := logits.DefaultSampling(DefaultMaxNewTokens)

	if defaults.MaxNewTokens != nil && *defaults.MaxNewTokens > 0 {
		cfg.MaxNewTokens = *defaults.MaxNewTokens
	}
	if defaults.Seed != nil {
		cfg.Seed = *defaults.Seed
	}
	if defaults.Temperature != nil && *defaults.Temperature > 0 {
		cfg.Temperature = logits.Float64(*defaults.Temperature)
	}
	if defaults.TopP != nil && *defaults.TopP > 0 && *defaults.TopP <= 1 {
		cfg.TopP = logits.Float64(*defaults.TopP)
	}
	if defaults.RepeatPenalty != nil && *defaults.RepeatPenalty >= 1 {
		cfg.RepeatPenalty = *defaults.RepeatPenalty
	}
	if defaults.RepeatWindow != nil && *defaults.RepeatWindow > 0 {
		cfg.RepeatWindow = *defaults.RepeatWindow
	}

	if opts.MaxNewTokens != nil {
		cfg.MaxNewTokens = *opts.MaxNewTokens
	}
	if opts.Seed != nil {
		cfg.Seed = *opts.Seed
	}
	if opts.Temperature != nil {
		cfg.Temperature = logits.Float64(*opts.Temperature)
	}
	if opts.TopP != nil {
		cfg.TopP = logits.Float64(*opts.TopP)
	}
	if opts.RepeatPenalty != nil {
		cfg.RepeatPenalty = *opts.RepeatPenalty
	}
	if opts.RepeatWindow != nil {
		cfg.RepeatWindow = *opts.RepeatWindow
	}
	return cfg
}
