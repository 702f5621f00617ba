// Package cli consolidates the start-up steps shared by cmd/nedwiyt,
// cmd/nedwiyt-worker and cmd/nedwiyt-admin, and builds the admin command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nedwiyt/internal/backend"
	"nedwiyt/internal/config"
	"nedwiyt/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.NewFromEnv(cfg.LogLevel, cfg.LogFormat, component)
	log.SetDefault(logger)
	return logger
}

// LoadConfig loads .env when present, then the environment, and validates.
func LoadConfig() (*config.Config, error) {
	cfg := config.LoadWithDotEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

// MustLoad is LoadConfig plus SetupLogger for long-running binaries. It
// exits the process on an invalid configuration.
func MustLoad(component string) (*config.Config, *log.Logger) {
	cfg := config.LoadWithDotEnv()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend creates the data backend selected by cfg.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Opening backend", "backend", bc.Describe())
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
