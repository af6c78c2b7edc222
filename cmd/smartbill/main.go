package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"smartbill/internal/amqp"
	"smartbill/internal/cache"
	"smartbill/internal/cli"
	"smartbill/internal/core"
	"smartbill/internal/export"
	apphttp "smartbill/internal/http"
	"smartbill/internal/report"
	"smartbill/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), "smartbill")
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	settings := cli.InitSettings(logger, cfg.SettingsFile)
	// Viewing a bill and exporting it fetch the same record back to back.
	billCache := cache.NewLRU[core.BillRecord](1000, 2*time.Minute)
	loader := services.NewLoader(cli.NewGateway(cfg)).WithBillCache(billCache)

	// With a broker the worker writes reports; without one they are written
	// inline by the request that created them.
	var (
		publisher   services.Publisher
		writer      export.Writer
		closeWriter = func() error { return nil }
	)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Export requests will be published", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		var err error
		writer, closeWriter, err = export.NewWriter(context.Background(), cfg.Export())
		if err != nil {
			logger.Error("Failed to initialize export sink", "error", err, "sink", cfg.ExportSink)
			os.Exit(1)
		}
	}
	defer closeWriter()

	st := settings.Get()
	exports := services.NewExportService(repo, publisher, writer, services.ExportOptions{
		Report: report.Options{Currency: st.CurrencySymbol(), Reflow: st.ReflowOptions()},
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Loader:             loader,
		Exports:            exports,
		Storage:            repo,
		Settings:           settings,
		Logger:             logger,
		CookieSecure:       cfg.SessionCookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = cfg.APITimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	cache.NewSweeper(billCache).Start(ctx, time.Minute)

	if err := settings.Watch(ctx); err != nil {
		logger.Warn("Settings hot reload disabled", "error", err, "path", cfg.SettingsFile)
	}

	logger.Info("Starting smartbill server",
		"port", cfg.Port,
		"api_url", cfg.APIURL,
		"export_sink", cfg.ExportSink,
		"amqp", cfg.AMQPURL != "",
		"log_level", cfg.LogLevel)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
