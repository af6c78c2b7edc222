package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"smartbill/internal/cli"
	"smartbill/internal/services"
)

func main() {
	cli.LoadEnvFile()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, "smartbill-cli")
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	settings := cli.InitSettings(logger, cfg.SettingsFile)

	app := &cli.App{
		Loader:   services.NewLoader(cli.NewGateway(cfg)),
		Sessions: repo.Sessions(),
		Settings: settings.Get(),
		Out:      os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args[1:])
	stop()

	switch {
	case err == nil:
	case errors.Is(err, cli.ErrUsage):
		repo.Close()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		repo.Close()
		os.Exit(1)
	}
}
