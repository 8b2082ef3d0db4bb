// Package main runs the xeno-crm REST API.
//
// It is the composition root for the HTTP surface: customers, orders,
// campaigns with their delivery simulation, and the copy suggestion endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sumitkumar2005/xeno-crm/internal/auth"
	"github.com/sumitkumar2005/xeno-crm/internal/bootstrap"
	"github.com/sumitkumar2005/xeno-crm/internal/cache"
	"github.com/sumitkumar2005/xeno-crm/internal/campaign"
	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/delivery"
	"github.com/sumitkumar2005/xeno-crm/internal/httpapi"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
	"github.com/sumitkumar2005/xeno-crm/internal/stats"
	"github.com/sumitkumar2005/xeno-crm/internal/suggest"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App).With(slog.String("service", "xeno-api"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------------------------------------------------------------------------
	// 2. Infrastructure
	// -------------------------------------------------------------------------
	// Redis carries the stats queue; without the worker, recomputes run inline.
	infra, err := bootstrap.Open(ctx, log, cfg, bootstrap.Options{Redis: cfg.Stats.Enabled})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		infra.Close(shutdownCtx)
	}()

	// -------------------------------------------------------------------------
	// 3. Wiring
	// -------------------------------------------------------------------------
	engine := segment.New(log, segment.WithSampleSize(cfg.Dispatch.PreviewSampleSize))
	simulator := delivery.NewSimulator(infra.Store, delivery.WithSuccessRate(cfg.Dispatch.SuccessRate))

	suggestions, err := suggest.NewService(suggest.TemplateGenerator{}, &cfg.Suggest)
	if err != nil {
		return err
	}
	defer suggestions.Close()

	var (
		queue cache.StatsQueue
		guard *stats.Guard
	)
	if infra.Redis != nil {
		queue = cache.NewRedisQueue(infra.Redis, cfg.Redis.Key("stats", "queue"))
		// Same lock namespace as xeno-stats.
		guard = stats.NewGuard(cache.NewRedisLocker(infra.Redis, cfg.Redis.Key("lock")), cfg.Stats.LockTTL)
	}

	api := httpapi.NewAPI(httpapi.Dependencies{
		Logger:               log,
		Store:                infra.Store,
		Campaigns:            campaign.NewService(infra.Store, engine, simulator),
		Suggest:              suggestions,
		Stats:                stats.NewAggregator(infra.Store),
		Queue:                queue,
		StatsGuard:           guard,
		Verifier:             auth.NewVerifier(&cfg.Auth),
		RecomputeConcurrency: cfg.Stats.Concurrency,
		MaxBodyBytes:         cfg.Server.HTTP.MaxBodyBytes,
	})

	// -------------------------------------------------------------------------
	// 4. HTTP Server
	// -------------------------------------------------------------------------
	httpCfg := &cfg.Server.HTTP
	listener, err := net.Listen("tcp", httpCfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", httpCfg.Addr(), err)
	}

	srv := &http.Server{
		Handler:           api.Router,
		ReadTimeout:       httpCfg.ReadTimeout,
		ReadHeaderTimeout: httpCfg.ReadHeaderTimeout,
		WriteTimeout:      httpCfg.WriteTimeout,
		IdleTimeout:       httpCfg.IdleTimeout,
		MaxHeaderBytes:    httpCfg.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", listener.Addr().String()), slog.Bool("tls", httpCfg.TLSEnabled))
		var err error
		if httpCfg.TLSEnabled {
			err = srv.ServeTLS(listener, httpCfg.TLSCert, httpCfg.TLSKey)
		} else {
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received, draining")
	}

	infra.Observability.SetDraining()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info("service exited successfully")
	return nil
}
