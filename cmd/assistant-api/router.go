package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spherical-ai/spherical/libs/retail-assistant/cmd/assistant-api/handlers"
	"github.com/spherical-ai/spherical/libs/retail-assistant/cmd/assistant-api/middleware"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

// AppConfig holds router configuration.
type AppConfig struct {
	RequestTimeout time.Duration
	AuthConfig     middleware.AuthConfig
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// DefaultAppConfig returns default configuration values.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		RequestTimeout: 45 * time.Second,
	}
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, service *assistant.Service, cfg *AppConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Trace)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"retail-assistant"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				logger.Warn().Err(err).Msg("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	searchHandler := handlers.NewSearchHandler(logger, service)
	cartHandler := handlers.NewCartHandler(logger, service)
	replyHandler := handlers.NewReplyHandler(logger, service)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.AuthConfig))

		r.Post("/search", searchHandler.Search)

		r.Route("/carts/{phone}", func(r chi.Router) {
			r.Get("/items", cartHandler.List)
			r.Post("/items", cartHandler.Add)
			r.Delete("/items", cartHandler.Clear)
			r.Delete("/items/{index}", cartHandler.Remove)
			r.Post("/checkout", cartHandler.Checkout)
		})

		r.Post("/replies/fallback", replyHandler.Fallback)
	})

	return r
}
