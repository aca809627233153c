package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/samcharles93/ssmgen/internal/api"
	"github.com/samcharles93/ssmgen/internal/inference"
	"github.com/samcharles93/ssmgen/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr           string
		readTimeout    time.Duration
		requestTimeout time.Duration
		engines        int64
		rateLimit      float64
		burst          int64
		storeCapacity  int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation REST API",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.DurationFlag{
				Name:        "request-timeout",
				Usage:       "per-request generation timeout (0 = none)",
				Value:       2 * time.Minute,
				Destination: &requestTimeout,
			},
			&cli.Int64Flag{
				Name:        "engines",
				Usage:       "number of concurrent generation engines",
				Value:       2,
				Destination: &engines,
			},
			&cli.Float64Flag{
				Name:        "rate-limit",
				Usage:       "generate requests per second (0 = unlimited)",
				Destination: &rateLimit,
			},
			&cli.Int64Flag{
				Name:        "burst",
				Usage:       "rate limiter burst size",
				Value:       4,
				Destination: &burst,
			},
			&cli.Int64Flag{
				Name:        "store-capacity",
				Usage:       "number of finished generations kept for lookup",
				Value:       api.DefaultStoreCapacity,
				Destination: &storeCapacity,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, loadedConfig)
			applyServeConfig(cmd, loadedConfig, &addr, &engines, &rateLimit)

			backend, err := newLoader().Load()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			defer func() { _ = backend.Close() }()

			engineLog := log.WithGroup("engine")
			pool, err := api.NewPool(int(engines), func() (*inference.Engine, error) {
				return backend.NewEngine(inference.WithLogger(engineLog))
			}, loadedConfig.GenDefaults())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			opts := []api.ServerOption{
				api.WithServerLogger(log),
				api.WithRequestTimeout(requestTimeout),
			}
			if rateLimit > 0 {
				opts = append(opts, api.WithRateLimit(rate.NewLimiter(rate.Limit(rateLimit), int(max(burst, 1)))))
			}
			server := api.NewServer(api.NewGenerationStore(int(storeCapacity)), pool, opts...)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "model", modelName, "engines", pool.Size())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
