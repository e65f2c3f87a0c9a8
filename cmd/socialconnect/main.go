// Command socialconnect runs the reference host: a small web service that
// signs users in with Google or LinkedIn and serves their profile.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	socialconnect "github.com/mselvan/social-connect"
	"github.com/mselvan/social-connect/internal/logging"
	"github.com/mselvan/social-connect/internal/server"
	"github.com/mselvan/social-connect/internal/telemetry"
)

const serviceName = "socialconnect"

func main() {
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		logging.New(os.Stderr, slog.LevelInfo, logging.SentryConfig{}).Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, slog.LevelInfo, cfg.Sentry)
	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", slog.Any("error", err))
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
	sentry.Flush(2 * time.Second)
}

func run(cfg server.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Otel)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("flush traces", slog.Any("error", err))
		}
	}()

	store, closeStore, err := server.OpenStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	providers, err := server.Providers(cfg,
		socialconnect.WithLogger(logger),
		socialconnect.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.ProviderTimeout}),
	)
	if err != nil {
		return err
	}

	return server.New(cfg.HTTP, providers, store, logger).Run(ctx)
}
