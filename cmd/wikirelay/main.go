package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	wrhttp "github.com/wikirelay/wikirelay/internal/adapter/http"
	wrnats "github.com/wikirelay/wikirelay/internal/adapter/nats"
	"github.com/wikirelay/wikirelay/internal/adapter/otel"
	"github.com/wikirelay/wikirelay/internal/config"
	"github.com/wikirelay/wikirelay/internal/dispatch"
	"github.com/wikirelay/wikirelay/internal/logger"
	"github.com/wikirelay/wikirelay/internal/middleware"
	"github.com/wikirelay/wikirelay/internal/render"
	"github.com/wikirelay/wikirelay/internal/service"
	"github.com/wikirelay/wikirelay/internal/suppress"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"webhook_targets", len(cfg.Webhook.URLs.Values),
	)

	ctx := context.Background()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Pipeline ---
	dispatcher := dispatch.New(cfg.Webhook, cfg.Dispatch, log, metrics)
	defer dispatcher.Close()

	relay := service.NewRelay(
		suppress.NewFilter(cfg.Suppression, log),
		render.New(cfg.Format),
		dispatcher,
		cfg.Suppression,
		log,
		metrics,
	)

	// --- NATS ingest (optional) ---
	if cfg.NATS.URL != "" {
		consumer, err := wrnats.Connect(ctx, cfg.NATS.URL, log)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = consumer.Close() }()

		if err := consumer.Start(ctx, relay); err != nil {
			return fmt.Errorf("nats consumer: %w", err)
		}
	}

	// --- HTTP ingest ---
	handlers := &wrhttp.Handlers{
		Relay:     relay,
		Targets:   dispatcher,
		BodyLimit: cfg.Ingest.BodyLimit,
		Log:       log,
	}

	limiter := middleware.NewRateLimiter(cfg.Ingest.RateRPS, cfg.Ingest.RateBurst)
	defer limiter.Stop()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(otel.HTTPMiddleware)
	r.Use(limiter.Middleware)

	wrhttp.MountRoutes(r, handlers, cfg.Ingest)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown order: stop accepting requests, then drain queued deliveries
	// via the deferred dispatcher.Close.
	return srv.Shutdown(shutdownCtx)
}
