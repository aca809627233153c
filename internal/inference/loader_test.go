package inference

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/ssmgen/internal/logits"
)

func loadToy(t *testing.T) *Backend {
	t.Helper()
	b, err := Loader{Model: ToyModelName, ToySeed: 7, ToyHidden: 16}.Load()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestToyBackendGreedyIsDeterministic(t *testing.T) {
	t.Parallel()
	b := loadToy(t)

	run := func() *Result {
		e, err := b.NewEngine()
		if err != nil {
			t.Fatal(err)
		}
		res, err := e.Generate(context.Background(), Request{Prompt: "Mamba is the", Config: greedy(24)}, nil)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	first, second := run(), run()
	if diff := cmp.Diff(first.Tokens, second.Tokens); diff != "" {
		t.Fatalf("greedy runs diverged (-first +second):\n%s", diff)
	}
	if !strings.HasPrefix(first.Text, "Mamba is the") {
		t.Fatalf("text %q does not start with the prompt", first.Text)
	}
	if first.Stats.PromptTokens != len("Mamba is the") {
		t.Fatalf("prompt tokens = %d", first.Stats.PromptTokens)
	}
}

func TestToyBackendSeededSamplingIsReproducible(t *testing.T) {
	t.Parallel()
	b := loadToy(t)

	cfg := logits.DefaultSampling(32)
	cfg.Temperature = logits.Float64(0.9)
	cfg.TopP = logits.Float64(0.95)
	run := func(seed int64) []int {
		c := cfg
		c.Seed = seed
		e, err := b.NewEngine()
		if err != nil {
			t.Fatal(err)
		}
		res, err := e.Generate(context.Background(), Request{Prompt: "hello", Config: c}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Stats.TokensGenerated > c.MaxNewTokens {
			t.Fatalf("generated %d tokens over a budget of %d", res.Stats.TokensGenerated, c.MaxNewTokens)
		}
		return res.Tokens
	}
	if diff := cmp.Diff(run(1234), run(1234)); diff != "" {
		t.Fatalf("same seed diverged (-first +second):\n%s", diff)
	}
}

func TestToyBackendIndependentEnginesRunConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := loadToy(t)

	const n = 8
	results := make([][]int, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range n {
		g.Go(func() error {
			e, err := b.NewEngine()
			if err != nil {
				return err
			}
			res, err := e.Generate(ctx, Request{Prompt: "shared backend", Config: greedy(16)}, nil)
			if err != nil {
				return err
			}
			results[i] = res.Tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < n; i++ {
		if diff := cmp.Diff(results[0], results[i]); diff != "" {
			t.Fatalf("engine %d diverged (-want +got):\n%s", i, diff)
		}
	}
}

func TestLoaderRejectsUnknownModels(t *testing.T) {
	t.Parallel()
	cases := []Loader{
		{},
		{Model: "mamba-130m.bin"},
		{Model: ToyModelName, TokenizerPath: "does-not-exist.json"},
	}
	for _, l := range cases {
		if b, err := l.Load(); err == nil {
			_ = b.Close()
			t.Fatalf("%+v: expected error", l)
		}
	}
}

func TestBackendEOSResolvesToSpecialToken(t *testing.T) {
	t.Parallel()
	b := loadToy(t)
	e, err := b.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	if e.EOS() != 256 {
		t.Fatalf("eos = %d, want the first id after the byte range", e.EOS())
	}
	ids, err := e.Encode("ab")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{'a', 'b'}, ids); diff != "" {
		t.Fatalf("encode (-want +got):\n%s", diff)
	}
}
