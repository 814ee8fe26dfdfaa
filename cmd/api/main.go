package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/Lectern/internal/app"
	"github.com/markdave123-py/Lectern/internal/config"
	"github.com/markdave123-py/Lectern/internal/logger"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logg.Sync()

	application, err := app.NewApp(ctx, cfg, logg)
	if err != nil {
		logg.Fatal("startup failed", "error", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logg.Warn("closing clients", "error", err)
		}
	}()

	logg.Info("Lectern is running", "port", cfg.Port, "workers", cfg.NumWorkers)
	if err := application.Run(ctx); err != nil {
		logg.Error("server stopped", "error", err)
	}
	logg.Info("shut down")
}
