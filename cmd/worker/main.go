package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Khaja-0531/flight-finders/config"
	"github.com/Khaja-0531/flight-finders/internal/bootstrap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := cfg.Log.NewLogger(os.Stdout).With(slog.String("component", "worker"))
	slog.SetDefault(logger)

	if cfg.Database.Driver == config.DriverMemory {
		log.Fatalf("the worker needs a shared database; the memory driver runs its jobs inside the app")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := bootstrap.OpenStorage(ctx, cfg.Database)
	if err != nil {
		logger.Error("open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer storage.Close()

	redisCache := bootstrap.OpenCache(ctx, cfg, logger)
	services := bootstrap.NewServices(cfg, storage, redisCache, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bootstrap.ServeMetrics(ctx, cfg.Worker.MetricsAddress) })
	g.Go(func() error { return bootstrap.RunWorker(ctx, cfg, storage, services.Bookings, logger) })

	logger.Info("worker started", slog.String("metrics", cfg.Worker.MetricsAddress), slog.Bool("kafka", cfg.Kafka.Enabled))
	if err := g.Wait(); err != nil {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
