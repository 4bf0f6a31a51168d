package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"copilot-orchestrator/internal/adapter/httpapi"
	"copilot-orchestrator/internal/di"
	"copilot-orchestrator/internal/infra"
	"copilot-orchestrator/internal/infra/config"
	"copilot-orchestrator/internal/infra/logger"
	"copilot-orchestrator/internal/infra/telemetry"
)

func main() {
	// 1. Load and validate config
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log := logger.NewWithOTel(cfg.LogLevel, cfg.Telemetry.Enabled())
	slog.SetDefault(log)

	// 3. Initialize telemetry
	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Env)
	if err != nil {
		log.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// 4. Initialize DB
	pool, err := infra.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Wire components
	components, err := di.NewApplicationComponents(ctx, cfg, pool, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	// 6. Start ingest worker
	components.Worker.Start()
	defer components.Worker.Stop()

	// 7. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.Telemetry.Enabled() {
		e.Use(otelecho.Middleware(cfg.Telemetry.ServiceName))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/healthz" || path == "/readyz"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				slog.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				slog.ErrorContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// 8. Contract validation from the embedded OpenAPI document
	validator, err := httpapi.RequestValidator()
	if err != nil {
		log.Error("failed to build request validator", "error", err)
		os.Exit(1)
	}

	// 9. Register handlers
	handler := httpapi.NewHandler(
		components.AnswerUsecase,
		components.IngestUsecase,
		components.JobRepo,
		pool.Ping,
		log,
	)
	handler.Register(e, validator)

	// 10. Start server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Info("starting server", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}
