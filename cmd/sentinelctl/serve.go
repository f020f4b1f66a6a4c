package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"
	"go.uber.org/zap"

	"github.com/goliatone/go-sentinel/components/sentinel/gorouter"
	"github.com/goliatone/go-sentinel/pkg/sentinel"
)

type serveCmd struct {
	Addr        string        `help:"Listen address (overrides SENTINEL_ADDR)."`
	BasePath    string        `name:"base-path" help:"Mount prefix (overrides SENTINEL_BASE_PATH)."`
	MetricsAddr string        `name:"metrics-addr" help:"Prometheus listen address (overrides SENTINEL_METRICS_ADDR)."`
	Transport   string        `default:"fiber" enum:"fiber,http" help:"fiber serves the HTML dashboard, http serves the JSON API only."`
	Grace       time.Duration `default:"10s" help:"Shutdown grace period."`
}

func (cmd *serveCmd) Run(ctx context.Context, root *cli) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if cmd.Addr != "" {
		cfg.Addr = cmd.Addr
	}
	if cmd.BasePath != "" {
		cfg.BasePath = cmd.BasePath
	}
	if cmd.MetricsAddr != "" {
		cfg.MetricsAddr = cmd.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := sentinel.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close sentinel", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *http.Server
	if cfg.MetricsAddr != "" {
		metrics = &http.Server{Addr: cfg.MetricsAddr, Handler: metricsRouter(app), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("starting metrics server", zap.String("addr", cfg.MetricsAddr))
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	var serveErr error
	switch cmd.Transport {
	case "http":
		serveErr = cmd.serveHTTP(ctx, app, logger)
	default:
		serveErr = cmd.serveFiber(ctx, app, logger)
	}

	if metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cmd.Grace)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}
	return serveErr
}

func (cmd *serveCmd) serveHTTP(ctx context.Context, app *sentinel.App, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              app.Config.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", app.Config.Addr), zap.String("base_path", app.Config.BasePath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		return fmt.Errorf("sentinelctl: http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cmd.Grace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (cmd *serveCmd) serveFiber(ctx context.Context, app *sentinel.App, logger *zap.Logger) error {
	server := router.NewFiberAdapter()
	if err := gorouter.Register(gorouter.Config[*fiber.App]{
		Router:     server.Router(),
		Controller: app.Controller,
		API:        app.Executor,
		Broadcast:  app.Broadcast,
		BasePath:   app.Config.BasePath,
	}); err != nil {
		return fmt.Errorf("sentinelctl: register routes: %w", err)
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting dashboard", zap.String("url", "http://localhost"+app.Config.Addr+app.Config.BasePath+"/sentinel"))
		errc <- server.Serve(app.Config.Addr)
	}()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("sentinelctl: fiber server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cmd.Grace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func metricsRouter(app *sentinel.App) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", app.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
