// Package api exposes text generation over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/ssmgen/internal/inference"
	"github.com/samcharles93/ssmgen/internal/logger"
	"github.com/samcharles93/ssmgen/internal/logits"
	"github.com/samcharles93/ssmgen/internal/version"
)

// Generator resolves sampling settings and runs one generation. *Pool
// implements it.
type Generator interface {
	Resolve(opts inference.RequestOptions) logits.SamplingConfig
	Run(ctx context.Context, prompt string, cfg logits.SamplingConfig) (*inference.Result, error)
}

type Server struct {
	gen     Generator
	store   *GenerationStore
	engines int

	limiter *rate.Limiter
	timeout time.Duration
	log     logger.Logger
	clock   func() time.Time
}

type ServerOption func(*Server)

func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRateLimit rejects generate calls beyond the limiter with 429.
func WithRateLimit(l *rate.Limiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

// WithRequestTimeout bounds each generate call, including the wait for a
// free engine.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

func NewServer(store *GenerationStore, gen Generator, opts ...ServerOption) *Server {
	if store == nil {
		store = NewGenerationStore(0)
	}
	s := &Server{
		gen:   gen,
		store: store,
		log:   logger.Discard(),
		clock: time.Now,
	}
	if p, ok := gen.(*Pool); ok {
		s.engines = p.Size()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.POST("/v1/generate", s.handleGenerate, s.rateLimit)
	e.GET("/v1/generations/:id", s.handleGetGeneration)
	e.DELETE("/v1/generations/:id", s.handleDeleteGeneration)
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if s.limiter != nil && !s.limiter.Allow() {
			return writeFailure(c, ErrRateLimited)
		}
		return next(c)
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.String(),
		Engines: s.engines,
		Stored:  s.store.Len(),
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	if s.gen == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "generator not configured", "")
	}
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	cfg := s.gen.Resolve(inference.RequestOptions{
		MaxNewTokens:  req.MaxNewTokens,
		Seed:          req.Seed,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		RepeatPenalty: req.RepeatPenalty,
		RepeatWindow:  req.RepeatWindow,
	})
	sampling := samplingEcho(cfg)
	digest := Digest(req.Prompt, sampling)
	if !req.NoCache {
		if gen, ok := s.store.Lookup(digest); ok {
			gen.Cached = true
			return c.JSON(http.StatusOK, gen)
		}
	}

	ctx := c.Request().Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.gen.Run(ctx, req.Prompt, cfg)
	if err != nil {
		s.log.Warn("generation failed", "error", err)
		return writeFailure(c, err)
	}

	gen := Generation{
		ID:        newGenerationID(),
		Object:    "generation",
		CreatedAt: s.clock().Unix(),
		Prompt:    req.Prompt,
		Text:      res.Text,
		Tokens:    res.Tokens,
		Stop:      string(res.Stop),
		Sampling:  sampling,
		Usage: Usage{
			PromptTokens:    res.Stats.PromptTokens,
			GeneratedTokens: res.Stats.TokensGenerated,
			PrefillMillis:   millis(res.Stats.PrefillDuration),
			DecodeMillis:    millis(res.Stats.Duration),
			TokensPerSecond: res.Stats.TPS,
		},
	}
	s.store.Save(gen, digest)
	s.log.Info("generation stored", "id", gen.ID, "generated", gen.Usage.GeneratedTokens, "stop", gen.Stop)
	return c.JSON(http.StatusOK, gen)
}

func (s *Server) handleGetGeneration(c *echo.Context) error {
	id := c.Param("id")
	gen, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, gen)
}

func (s *Server) handleDeleteGeneration(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, DeleteResponse{
		ID:      id,
		Object:  "generation.deleted",
		Deleted: true,
	})
}

func samplingEcho(cfg logits.SamplingConfig) SamplingEcho {
	return SamplingEcho{
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		Seed:          cfg.Seed,
		RepeatPenalty: cfg.RepeatPenalty,
		RepeatWindow:  cfg.RepeatWindow,
		MaxNewTokens:  cfg.MaxNewTokens,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
