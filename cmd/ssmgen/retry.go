package main

import (
	"context"
	"errors"
	"time"

	"github.com/samcharles93/ssmgen/internal/inference"
	"github.com/samcharles93/ssmgen/internal/logger"
)

type generator interface {
	Generate(ctx context.Context, req inference.Request, stream inference.StreamFunc) (*inference.Result, error)
}

// retryPolicy bounds each attempt with timeout and waits backoff, doubling
// after every failure, before the next attempt.
type retryPolicy struct {
	attempts int
	timeout  time.Duration
	backoff  time.Duration
}

// generateWithRetry retries failures that may succeed on a later attempt.
// Errors caused by the request itself are returned immediately. It reports
// the number of attempts made.
func generateWithRetry(ctx context.Context, g generator, req inference.Request, p retryPolicy, log logger.Logger) (*inference.Result, int, error) {
	attempts := max(p.attempts, 1)
	delay := p.backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := generateOnce(ctx, g, req, p.timeout)
		if err == nil {
			return res, attempt, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil || attempt == attempts {
			return nil, attempt, err
		}
		log.Warn("generation attempt failed", "attempt", attempt, "retry_in", delay, "error", err)

		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, attempt, lastErr
			}
			delay *= 2
		}
	}
	return nil, attempts, lastErr
}

func generateOnce(ctx context.Context, g generator, req inference.Request, timeout time.Duration) (*inference.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return g.Generate(ctx, req, nil)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, inference.ErrConfig),
		errors.Is(err, inference.ErrEncoding),
		errors.Is(err, inference.ErrEmptyPrompt):
		return false
	}
	return true
}
