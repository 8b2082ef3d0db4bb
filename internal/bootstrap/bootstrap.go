// Package bootstrap opens the infrastructure shared by the xeno-crm binaries:
// tracing, the PostgreSQL pool, the optional Redis client, pool monitors and
// the observability server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sumitkumar2005/xeno-crm/internal/cache"
	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/database"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/observability"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
)

const poolMonitorInterval = 15 * time.Second

// Options selects the optional pieces of infrastructure.
type Options struct {
	Redis bool
}

// Infra is the opened infrastructure. Close releases it in reverse order.
type Infra struct {
	Logger        *slog.Logger
	Pool          *pgxpool.Pool
	Store         *store.PostgresStore
	Redis         *redis.Client
	Observability *observability.Server

	stopTracing  observability.ShutdownFunc
	stopMonitors context.CancelFunc
}

// Open connects everything and starts the observability server. On error
// whatever was already opened is closed again.
func Open(ctx context.Context, log *slog.Logger, cfg *config.Config, opts Options) (_ *Infra, err error) {
	ctx = logger.WithContext(ctx, log)
	in := &Infra{Logger: log}
	defer func() {
		if err != nil {
			in.Close(context.Background())
		}
	}()

	// 1. Tracing
	in.stopTracing, err = observability.InitTracing(ctx, log, &cfg.App, &cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	// 2. PostgreSQL
	in.Pool, err = database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	in.Store = store.NewPostgresStore(in.Pool)
	checkers := []observability.Checker{database.NewHealthChecker(in.Pool)}

	// 3. Redis
	if opts.Redis {
		in.Redis, err = cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		checkers = append(checkers, cache.NewHealthChecker(in.Redis, cfg.Redis.Key("stats", "queue")))
	}

	// 4. Pool monitors
	monCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	in.stopMonitors = cancel
	go database.RunPoolMonitor(monCtx, in.Pool, poolMonitorInterval)
	if in.Redis != nil {
		go cache.RunPoolMonitor(monCtx, in.Redis, poolMonitorInterval)
	}

	// 5. Admin server
	in.Observability = observability.NewServer(log, &cfg.Observability, checkers...)
	if err := in.Observability.Start(); err != nil {
		return nil, err
	}

	return in, nil
}

// Close shuts down the observability server, the monitors, the connections
// and finally flushes pending spans. Nil members are skipped.
func (in *Infra) Close(ctx context.Context) {
	var errs []error

	if in.Observability != nil {
		errs = append(errs, in.Observability.Shutdown(ctx))
	}
	if in.stopMonitors != nil {
		in.stopMonitors()
	}
	if in.Redis != nil {
		errs = append(errs, in.Redis.Close())
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
	if in.stopTracing != nil {
		errs = append(errs, in.stopTracing(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		in.Logger.Warn("infrastructure shutdown incomplete", slog.String("error", err.Error()))
	}
}
