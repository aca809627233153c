package logits

import (
	"fmt"
	"math"
)

const (
	// DefaultRepeatWindow is the number of trailing history tokens the
	// repetition penalty looks at when the caller does not set one.
	DefaultRepeatWindow = 64
	// DefaultSeed seeds the sampling RNG when the caller does not set one.
	DefaultSeed int64 = 299792458
)

// SamplingConfig configures one generation call.
//
// Temperature and TopP are optional: a nil (or zero) Temperature selects
// greedy decoding and a nil TopP disables nucleus truncation.
type SamplingConfig struct {
	Temperature   *float64
	TopP          *float64
	Seed          int64
	RepeatPenalty float64
	RepeatWindow  int
	MaxNewTokens  int
}

// DefaultSampling returns greedy decoding with the penalty off and the
// default seed and window. Zero is never read as "unset" by Validate.
func DefaultSampling(maxNewTokens int) SamplingConfig {
	return SamplingConfig{
		Seed:          DefaultSeed,
		RepeatPenalty: 1.0,
		RepeatWindow:  DefaultRepeatWindow,
		MaxNewTokens:  maxNewTokens,
	}
}

// Greedy reports whether the config selects argmax decoding.
func (c SamplingConfig) Greedy() bool {
	return c.Temperature == nil || *c.Temperature == 0
}

// Validate checks the ranges of every field.
func (c SamplingConfig) Validate() error {
	if c.Temperature != nil {
		t := *c.Temperature
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return fmt.Errorf("temperature must be a finite value >= 0, got %v", t)
		}
	}
	if c.TopP != nil {
		p := *c.TopP
		if math.IsNaN(p) || p <= 0 || p > 1 {
			return fmt.Errorf("top_p must be in (0, 1], got %v", p)
		}
	}
	if math.IsNaN(c.RepeatPenalty) || math.IsInf(c.RepeatPenalty, 0) || c.RepeatPenalty < 1 {
		return fmt.Errorf("repeat_penalty must be >= 1.0, got %v", c.RepeatPenalty)
	}
	if c.RepeatWindow <= 0 {
		return fmt.Errorf("repeat_window must be positive, got %d", c.RepeatWindow)
	}
	if c.MaxNewTokens <= 0 {
		return fmt.Errorf("max_new_tokens must be positive, got %d", c.MaxNewTokens)
	}
	return nil
}

// Float64 returns a pointer to v, for optional config fields.
func Float64(v float64) *float64 {
	return &v
}
