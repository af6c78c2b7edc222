package main

import (
	"context"
	"os"
	"time"

	"smartbill/internal/amqp"
	"smartbill/internal/cli"
	"smartbill/internal/export"
	applog "smartbill/internal/log"
	"smartbill/internal/report"
	"smartbill/internal/services"
	"smartbill/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), "smartbill-worker")
	logger.Info("Starting smartbill-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	settings := cli.InitSettings(logger, cfg.SettingsFile)

	writer, closeWriter, err := export.NewWriter(context.Background(), cfg.Export())
	if err != nil {
		logger.Error("Failed to initialize export sink", "error", err, "sink", cfg.ExportSink)
		os.Exit(1)
	}
	defer closeWriter()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	st := settings.Get()
	exports := services.NewExportService(repo, nil, writer, services.ExportOptions{
		Report: report.Options{Currency: st.CurrencySymbol(), Reflow: st.ReflowOptions()},
	})
	exportWorker := worker.NewExportWorker(exports, cfg.ExportBatchSize).
		WithLogger(applog.NewStructuredLogger(logger.WithComponent(applog.ComponentWorker)), cfg.ExportSink)

	// Pending sweep covers jobs whose message was lost or never published.
	poller := worker.NewPoller("export", cfg.ExportInterval, exportWorker.ProcessPendingJobs)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := poller.Stop(ctx); err != nil {
			logger.Warn("Poller did not stop cleanly", "error", err)
		}
	})

	if err := settings.Watch(ctx); err != nil {
		logger.Warn("Settings hot reload disabled", "error", err, "path", cfg.SettingsFile)
	}

	if err := poller.Start(ctx); err != nil {
		logger.Error("Failed to start pending export poller", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := amqpClient.ConsumeExportRequests(ctx, exportWorker.HandleExportMessage); err != nil && ctx.Err() == nil {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	logger.Info("Worker running",
		"sink", cfg.ExportSink,
		"queue", cfg.AMQPQueue,
		"batch_size", cfg.ExportBatchSize,
		"interval", cfg.ExportInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
