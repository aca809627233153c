package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/samcharles93/ssmgen/internal/inference"
	"github.com/samcharles93/ssmgen/internal/logits"
)

// Pool hands out a fixed set of engines, one request per engine at a time.
type Pool struct {
	engines  chan *inference.Engine
	size     int
	defaults inference.GenDefaults
}

// NewPool builds size engines with newEngine. Engines built over the same
// backend share its read-only codec and model.
func NewPool(size int, newEngine func() (*inference.Engine, error), defaults inference.GenDefaults) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if newEngine == nil {
		return nil, errors.New("engine factory is required")
	}
	p := &Pool{
		engines:  make(chan *inference.Engine, size),
		size:     size,
		defaults: defaults,
	}
	for i := range size {
		e, err := newEngine()
		if err != nil {
			return nil, fmt.Errorf("engine %d: %w", i, err)
		}
		p.engines <- e
	}
	return p, nil
}

func (p *Pool) Size() int { return p.size }

// WithEngine waits for a free engine, runs fn with it and returns it to the
// pool. A done ctx while waiting yields inference.ErrCancelled.
func (p *Pool) WithEngine(ctx context.Context, fn func(*inference.Engine) error) error {
	select {
	case e := <-p.engines:
		defer func() { p.engines <- e }()
		return fn(e)
	case <-ctx.Done():
		return &inference.Error{Kind: inference.ErrCancelled, Op: "acquire engine", Err: ctx.Err()}
	}
}

// Resolve layers per-request options over the pool defaults.
func (p *Pool) Resolve(opts inference.RequestOptions) logits.SamplingConfig {
	return inference.ResolveRequest(opts, p.defaults)
}

func (p *Pool) Run(ctx context.Context, prompt string, cfg logits.SamplingConfig) (*inference.Result, error) {
	var res *inference.Result
	err := p.WithEngine(ctx, func(e *inference.Engine) error {
		var err error
		res, err = e.Generate(ctx, inference.Request{Prompt: prompt, Config: cfg}, nil)
		return err
	})
	return res, err
}
