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

	"go.uber.org/zap"

	"github.com/goliatone/go-sentinel/pkg/mockbackend"
)

type mockBackendCmd struct {
	Addr     string        `default:":9877" help:"Listen address."`
	Email    string        `default:"ops@nexus.test" help:"Accepted operator email."`
	Password string        `default:"sentinel" env:"MOCK_BACKEND_PASSWORD" help:"Accepted operator password."`
	Secret   string        `env:"MOCK_BACKEND_SECRET" help:"HMAC secret for issued tokens (random when empty)."`
	TokenTTL time.Duration `name:"token-ttl" default:"12h" help:"Lifetime of issued tokens."`
}

func (cmd *mockBackendCmd) Run(ctx context.Context, root *cli) error {
	_, logger, err := root.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	backend := mockbackend.New(mockbackend.Options{
		Email:    cmd.Email,
		Password: cmd.Password,
		Secret:   []byte(cmd.Secret),
		TokenTTL: cmd.TokenTTL,
		Logger:   logger,
	})
	server := &http.Server{Addr: cmd.Addr, Handler: backend.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting mock backend", zap.String("addr", cmd.Addr), zap.String("email", cmd.Email))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("sentinelctl: mock backend: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
