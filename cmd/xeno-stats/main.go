// Package main runs the stats worker, which keeps lifetime spend, visit
// counts and last order dates in step with the order ledger.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sumitkumar2005/xeno-crm/internal/bootstrap"
	"github.com/sumitkumar2005/xeno-crm/internal/cache"
	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/stats"
	"github.com/sumitkumar2005/xeno-crm/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration & Logging
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App).With(slog.String("service", "xeno-stats"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	if !cfg.Stats.Enabled {
		return errors.New("stats worker disabled (XENO_STATS_ENABLED=false); the API recomputes inline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Infrastructure
	infra, err := bootstrap.Open(ctx, log, cfg, bootstrap.Options{Redis: true})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		infra.Close(shutdownCtx)
	}()

	// 3. Wiring
	svc := worker.New(log, &cfg.Stats,
		cache.NewRedisQueue(infra.Redis, cfg.Redis.Key("stats", "queue")),
		cache.NewRedisLocker(infra.Redis, cfg.Redis.Key("lock")),
		stats.NewAggregator(infra.Store),
		infra.Store,
	)

	// 4. Run until signalled
	if err := svc.Run(ctx); err != nil {
		return err
	}

	log.Info("service exited successfully")
	return nil
}
