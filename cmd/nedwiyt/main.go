package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"nedwiyt/internal/amqp"
	"nedwiyt/internal/cache"
	"nedwiyt/internal/cli"
	apphttp "nedwiyt/internal/http"
	"nedwiyt/internal/log"
	"nedwiyt/internal/services"
	"nedwiyt/internal/websocket"
)

func main() {
	cfg, logger := cli.MustLoad(log.ComponentApp)
	logger.Info("Starting nedwiyt", "backend", cfg.Backend, "port", cfg.Port)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.Backend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	opts := services.Options{
		LowStockThreshold: cfg.LowStockThreshold,
		Location:          cfg.Location(),
		Logger:            logger,
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// the dashboard works without the export pipeline
			logger.Warn("AMQP unavailable, inventory events disabled", "error", err)
		} else {
			defer client.Close()
			opts.Publisher = client
			logger.Info("Publishing inventory events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	registry := services.NewSessionRegistry(res.Authenticator, res.Connector, opts, cfg.SessionCacheSize, cfg.SessionTTL)
	hub := websocket.NewHub(logger)

	caches := cache.NewManager(logger)
	caches.Register(registry.Cache())
	for _, c := range res.Caches {
		caches.Register(c)
	}
	caches.StartCleanup(ctx, 5*time.Minute)
	defer caches.Stop()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:          ":" + cfg.Port,
		RateLimit:     cfg.RateLimit,
		SecureCookies: os.Getenv("SECURE_COOKIES") == "true",
		Backend:       cfg.Backend,
	}, apphttp.Deps{
		Registry: registry,
		Hub:      hub,
		Pinger:   res.Pinger,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "addr", srv.Addr)
		cancel()
		return
	}
	logger.Info("Server stopped gracefully")
}
