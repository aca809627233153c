package inference

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/samcharles93/ssmgen/internal/logger"
	"github.com/samcharles93/ssmgen/internal/logits"
)

// historyReserve caps the decode capacity reserved up front.
const historyReserve = 1024

// Engine drives prefill and decode for one codec/model pair.
//
// An Engine runs one generation at a time: a Generate call made while
// another is in flight on the same Engine fails with ErrBusy. Independent
// engines share no mutable state and may run concurrently.
type Engine struct {
	codec TokenCodec
	model SequenceModel
	eos   int
	vocab int

	log     logger.Logger
	now     func() time.Time
	onPhase func(Phase)

	busy atomic.Bool
}

type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces time.Now for throughput measurement.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPhaseHook registers fn to observe every state-machine transition.
func WithPhaseHook(fn func(Phase)) Option {
	return func(e *Engine) { e.onPhase = fn }
}

// NewEngine validates the collaborators and resolves the EOS id up front, so
// a vocabulary without a terminator is reported before any work starts.
func NewEngine(codec TokenCodec, model SequenceModel, opts ...Option) (*Engine, error) {
	if codec == nil {
		return nil, newError(ErrConfig, "new engine", errors.New("token codec is required"))
	}
	if model == nil {
		return nil, newError(ErrConfig, "new engine", errors.New("sequence model is required"))
	}
	eos, err := safeEOS(codec)
	if err != nil {
		return nil, newError(ErrConfig, "resolve eos", err)
	}
	vocab := model.VocabSize()
	if vocab <= 0 {
		return nil, newError(ErrConfig, "new engine", fmt.Errorf("model vocabulary size %d", vocab))
	}
	if eos < 0 || eos >= vocab {
		return nil, newError(ErrConfig, "resolve eos", fmt.Errorf("eos id %d outside vocabulary of %d", eos, vocab))
	}

	e := &Engine{
		codec: codec,
		model: model,
		eos:   eos,
		vocab: vocab,
		log:   logger.Discard(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EOS returns the terminator id resolved at construction.
func (e *Engine) EOS() int { return e.eos }

// Encode tokenizes text with the engine's codec.
func (e *Engine) Encode(text string) ([]int, error) {
	ids, err := safeEncode(e.codec, text)
	if err != nil {
		return nil, newError(ErrEncoding, "encode", err)
	}
	return ids, nil
}

// Generate encodes req.Prompt, prefills the model and samples up to
// req.Config.MaxNewTokens tokens, stopping early when EOS is drawn.
//
// ctx is checked before every prefill and decode step; a model step itself is
// never interrupted. On any failure no partial result is returned.
func (e *Engine) Generate(ctx context.Context, req Request, stream StreamFunc) (*Result, error) {
	if ctx == nil {
		return nil, newError(ErrConfig, "generate", errors.New("context is required"))
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, newError(ErrBusy, "generate", nil)
	}
	defer e.busy.Store(false)

	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, newError(ErrConfig, "sampling config", err)
	}

	res, err := e.run(ctx, req.Prompt, cfg, stream)
	if err != nil {
		e.enter(PhaseFailed)
		e.log.Debug("generation failed", "error", err)
		return nil, err
	}
	e.enter(PhaseCompleted)
	e.log.Info("generation complete",
		"prompt_tokens", res.Stats.PromptTokens,
		"generated", res.Stats.TokensGenerated,
		"stop", string(res.Stop),
		"tokens_per_second", res.Stats.TPS,
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context, prompt string, cfg logits.SamplingConfig, stream StreamFunc) (*Result, error) {
	e.enter(PhasePrefilling)
	prefillStart := e.now()

	ids, err := safeEncode(e.codec, prompt)
	if err != nil {
		return nil, newError(ErrEncoding, "encode prompt", err)
	}
	if len(ids) == 0 {
		return nil, newError(ErrEmptyPrompt, "encode prompt", nil)
	}

	state, err := safeInitState(e.model)
	if err != nil {
		return nil, newError(ErrModel, "init state", err)
	}

	var next []float32
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, newError(ErrCancelled, "prefill", err)
		}
		next, state, err = e.step(id, state)
		if err != nil {
			return nil, newError(ErrModel, fmt.Sprintf("prefill token %d", i), err)
		}
	}
	prefillDur := e.now().Sub(prefillStart)

	e.enter(PhaseDecoding)
	sampler := logits.NewSampler(cfg)
	// the budget is only an upper bound; most runs stop at EOS long before it
	history := make([]int, 0, len(ids)+min(cfg.MaxNewTokens, historyReserve))
	history = append(history, ids...)
	penalty := float32(cfg.RepeatPenalty)

	stop := StopMaxTokens
	generated := 0
	genStart := e.now()
	for generated < cfg.MaxNewTokens {
		if err := ctx.Err(); err != nil {
			return nil, newError(ErrCancelled, fmt.Sprintf("decode step %d", generated), err)
		}

		adjusted := logits.ApplyRepeatPenalty(next, history, cfg.RepeatWindow, penalty)
		tok := sampler.Sample(adjusted)
		history = append(history, tok)
		generated++
		if stream != nil {
			stream(tok)
		}
		if tok == e.eos {
			stop = StopEOS
			break
		}
		if generated == cfg.MaxNewTokens {
			break
		}

		next, state, err = e.step(tok, state)
		if err != nil {
			return nil, newError(ErrModel, fmt.Sprintf("decode step %d", generated), err)
		}
	}
	genDur := e.now().Sub(genStart)

	text, err := safeDecode(e.codec, history)
	if err != nil {
		return nil, newError(ErrDecoding, "decode history", err)
	}

	stats := Stats{
		PromptTokens:    len(ids),
		TokensGenerated: generated,
		PrefillDuration: prefillDur,
		Duration:        genDur,
	}
	if genDur > 0 {
		stats.TPS = float64(generated) / genDur.Seconds()
	}
	return &Result{
		Text:   text,
		Tokens: history,
		Stop:   stop,
		Stats:  stats,
	}, nil
}

func (e *Engine) step(token int, state State) ([]float32, State, error) {
	out, next, err := safeStep(e.model, token, state)
	if err != nil {
		return nil, nil, err
	}
	if len(out) != e.vocab {
		return nil, nil, fmt.Errorf("logits dimension %d does not match vocabulary size %d", len(out), e.vocab)
	}
	return out, next, nil
}

func (e *Engine) enter(p Phase) {
	e.log.Debug("phase", "to", p.String())
	if e.onPhase != nil {
		e.onPhase(p)
	}
}
