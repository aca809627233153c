package inference

import (
	"testing"

	"github.com/samcharles93/ssmgen/internal/logits"
)

func ptr[T any](v T) *T { return &v }

func TestResolveRequestBuiltinDefaults(t *testing.T) {
	t.Parallel()
	cfg := ResolveRequest(RequestOptions{}, GenDefaults{})
	if cfg.MaxNewTokens != DefaultMaxNewTokens || cfg.Seed != logits.DefaultSeed {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RepeatPenalty != 1 || cfg.RepeatWindow != logits.DefaultRepeatWindow {
		t.Fatalf("unexpected penalty defaults %+v", cfg)
	}
	if !cfg.Greedy() || cfg.TopP != nil {
		t.Fatalf("defaults should decode greedily without nucleus truncation: %+v", cfg)
	}
}

func TestResolveRequestLayering(t *testing.T) {
	t.Parallel()
	defaults := GenDefaults{
		MaxNewTokens:  ptr(100),
		Seed:          ptr(int64(9)),
		Temperature:   ptr(0.7),
		TopP:          ptr(0.9),
		RepeatPenalty: ptr(1.1),
		RepeatWindow:  ptr(32),
	}
	cfg := ResolveRequest(RequestOptions{MaxNewTokens: ptr(5), Temperature: ptr(0.0)}, defaults)
	if cfg.MaxNewTokens != 5 {
		t.Fatalf("request budget not applied: %d", cfg.MaxNewTokens)
	}
	if !cfg.Greedy() {
		t.Fatal("explicit zero temperature must select greedy decoding")
	}
	if cfg.Seed != 9 || *cfg.TopP != 0.9 || cfg.RepeatPenalty != 1.1 || cfg.RepeatWindow != 32 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestResolveRequestIgnoresOutOfRangeDefaults(t *testing.T) {
	t.Parallel()
	cfg := ResolveRequest(RequestOptions{}, GenDefaults{
		MaxNewTokens:  ptr(0),
		TopP:          ptr(1.5),
		RepeatPenalty: ptr(0.5),
		RepeatWindow:  ptr(-1),
	})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("bad defaults leaked into the config: %v", err)
	}
}

func TestResolveRequestKeepsInvalidOverridesForValidation(t *testing.T) {
	t.Parallel()
	cfg := ResolveRequest(RequestOptions{TopP: ptr(0.0)}, GenDefaults{})
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a validation error for top_p = 0")
	}
}
