package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"nedwiyt/internal/amqp"
	"nedwiyt/internal/cli"
	"nedwiyt/internal/log"
	"nedwiyt/internal/services"
	"nedwiyt/internal/sheets"
	gsheet "nedwiyt/internal/sheets/google"
	mem "nedwiyt/internal/sheets/memory"
	"nedwiyt/internal/worker"
)

func main() {
	cfg, logger := cli.MustLoad(log.ComponentWorker)
	logger.Info("Starting nedwiyt-worker", "backend", cfg.Backend)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Error("ADMIN_EMAIL and ADMIN_PASSWORD are required: the worker reads the inventory as that account")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.Backend)
		os.Exit(1)
	}
	defer res.Close()

	var exporter sheets.Exporter
	if cfg.ExportEnabled() {
		g, err := gsheet.New(ctx, gsheet.Credentials{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			JSON:          cfg.GoogleServiceAccountJSON,
			File:          cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = g
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory")
	}

	state := services.NewInventoryState(res.Authenticator, res.Connector, services.Options{
		LowStockThreshold: cfg.LowStockThreshold,
		Location:          cfg.Location(),
		Logger:            logger,
	})
	exports := worker.NewExportWorker(worker.NewStateSource(state, cfg.AdminEmail, cfg.AdminPassword), exporter, logger)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	// startup export covers anything published while the worker was down
	if err := exports.Backup(ctx); err != nil {
		logger.Error("Startup export failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeInventoryEvents(gctx, cfg.WorkerConcurrency, exports.HandleEvent)
	})
	g.Go(func() error {
		exports.RunBackups(gctx, cfg.BackupInterval)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		cancel()
		return
	}
	logger.Info("Worker stopped gracefully", "exports", exports.Exports())
}
