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
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

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

	opts := bootstrap.Options{Logger: logger, Health: storage.Ping, Users: storage.Users}
	if redisCache != nil {
		opts.Idempotency = redisCache
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bootstrap.Run(ctx, cfg, services, opts) })
	// The memory store is private to this process, so its outbox and sweep run here.
	if storage.InProcess() {
		g.Go(func() error { return bootstrap.RunWorker(ctx, cfg, storage, services.Bookings, logger) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}
