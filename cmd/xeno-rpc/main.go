// Package main runs the xeno-crm gRPC segmentation service.
//
// Internal callers use it to preview rule chains against the customer base
// and to test single customers without going through the REST API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sumitkumar2005/xeno-crm/internal/auth"
	"github.com/sumitkumar2005/xeno-crm/internal/bootstrap"
	"github.com/sumitkumar2005/xeno-crm/internal/campaign"
	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/delivery"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/rpcapi"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
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

	log := logger.New(&cfg.App).With(slog.String("service", "xeno-rpc"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------------------------------------------------------------------------
	// 2. Infrastructure (PostgreSQL only)
	// -------------------------------------------------------------------------
	infra, err := bootstrap.Open(ctx, log, cfg, bootstrap.Options{})
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
	// Previews never dispatch, but the campaign service owns the preview path.
	campaigns := campaign.NewService(infra.Store, engine, delivery.NewSimulator(infra.Store))
	api := rpcapi.NewAPI(campaigns, infra.Store, engine)

	// -------------------------------------------------------------------------
	// 4. gRPC Server
	// -------------------------------------------------------------------------
	rpcCfg := &cfg.Server.RPC
	listener, err := net.Listen("tcp", rpcCfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", rpcCfg.Addr(), err)
	}

	srv := rpcapi.NewServer(rpcCfg, log, auth.NewVerifier(&cfg.Auth), api)

	errChan := make(chan error, 1)
	go func() {
		log.Info("grpc server listening",
			slog.String("addr", listener.Addr().String()),
			slog.Bool("reflection", rpcCfg.Reflection),
		)
		if err := srv.GRPC.Serve(listener); err != nil {
			errChan <- fmt.Errorf("failed to serve gRPC: %w", err)
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

	// GracefulStop takes no deadline; fall back to a hard stop when it overruns.
	stopped := make(chan struct{})
	go func() {
		srv.Drain()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("graceful stop timed out, forcing")
		srv.GRPC.Stop()
	}

	log.Info("service exited successfully")
	return nil
}
