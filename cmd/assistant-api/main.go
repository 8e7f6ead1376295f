// Package main provides the retail assistant API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spherical-ai/spherical/libs/retail-assistant/cmd/assistant-api/middleware"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	dev := os.Getenv("ASSISTANT_DEV") == "1"
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--config":
			if i+1 < len(os.Args) {
				cfgPath = os.Args[i+1]
				i++
			}
		case "--dev":
			dev = true
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Bool("redis", cfg.Redis.Enabled).
		Bool("dev", dev).
		Msg("Starting retail assistant API")

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger, app.Options{Dev: dev})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer application.Close()

	appCfg := &AppConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		AuthConfig:     middleware.AuthConfig{Token: cfg.Server.APIToken},
		Ready: func(ctx context.Context) error {
			_, err := application.Index.Count(ctx)
			return err
		},
	}

	router := NewRouter(logger, application.Service, appCfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
