// Package worker implements the background process that keeps the derived
// customer fields (lifetime spend, visits, last order date) in step with the
// order ledger.
//
// Order writers push customer ids onto a Redis queue; the worker pops them one
// at a time, takes a short per-customer lock and recomputes. A periodic
// reconcile pass recomputes every customer to repair anything a lost queue
// message left stale.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sumitkumar2005/xeno-crm/internal/cache"
	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/observability"
	"github.com/sumitkumar2005/xeno-crm/internal/stats"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

// Recomputer rewrites customer stats from their orders.
type Recomputer interface {
	Recompute(ctx context.Context, customerID uuid.UUID) (store.CustomerStats, error)
}

// CustomerLister enumerates customers for the reconcile pass.
type CustomerLister interface {
	ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Service runs the recompute loop.
type Service struct {
	logger    *slog.Logger
	config    *config.StatsConfig
	queue     cache.StatsQueue
	guard     *stats.Guard
	recompute Recomputer
	customers CustomerLister
	sleep     func(ctx context.Context, d time.Duration) bool
}

// New creates a stats worker.
func New(log *slog.Logger, cfg *config.StatsConfig, queue cache.StatsQueue, locker cache.Locker, r Recomputer, customers CustomerLister) *Service {
	if log == nil {
		log = slog.Default()
	}

	validation.AssertNotNil(cfg, "stats config")
	validation.AssertNotNilInterface(queue, "stats queue")
	validation.AssertNotNilInterface(locker, "locker")
	validation.AssertNotNilInterface(r, "recomputer")
	validation.AssertNotNilInterface(customers, "customer lister")

	return &Service{
		logger:    log.With(slog.String("component", "stats_worker")),
		config:    cfg,
		queue:     queue,
		guard:     stats.NewGuard(locker, cfg.LockTTL),
		recompute: r,
		customers: customers,
		sleep:     sleepCtx,
	}
}

// Run blocks until ctx is cancelled. It returns nil on a clean shutdown.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithContext(ctx, s.logger)
	s.logger.Info("starting stats worker",
		slog.String("pop_timeout", s.config.PopTimeout.String()),
		slog.String("reconcile_interval", s.config.ReconcileInterval.String()),
		slog.Int("concurrency", s.config.Concurrency),
	)

	done := make(chan struct{})
	if s.config.ReconcileInterval > 0 {
		go func() {
			defer close(done)
			s.reconcileLoop(ctx)
		}()
	} else {
		close(done)
	}

	for ctx.Err() == nil {
		s.ProcessNext(ctx)
	}

	<-done
	s.logger.Info("stats worker stopping...")
	return nil
}

func (s *Service) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("reconcile pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ProcessNext pops at most one job and handles it. Queue errors are logged
// and followed by a short pause so a dead Redis does not spin the loop.
func (s *Service) ProcessNext(ctx context.Context) {
	job, err := s.queue.Pop(ctx, s.config.PopTimeout)
	if err != nil {
		switch {
		case errors.Is(err, cache.ErrQueueEmpty):
			s.refreshDepth(ctx)
		case ctx.Err() != nil:
		default:
			s.logger.Error("failed to pop stats job", slog.String("error", err.Error()))
			s.sleep(ctx, s.config.BaseRetryDelay)
		}
		return
	}

	s.Handle(ctx, job)
}

// Handle recomputes the customer named by job.
func (s *Service) Handle(ctx context.Context, job cache.StatsJob) {
	log := s.logger.With(slog.String("customer_id", job.CustomerID))

	// 1. Parse
	id, err := uuid.Parse(job.CustomerID)
	if err != nil {
		log.Warn("dropping malformed stats job", slog.String("error", err.Error()))
		observability.StatsRecomputeTotal.WithLabelValues("skipped").Inc()
		return
	}

	// 2. Recompute under the customer lock. A held lock means another worker,
	// the reconcile pass or the API owns the customer.
	err = s.guard.Do(ctx, id, func(ctx context.Context) error {
		return s.recomputeWithRetry(ctx, id)
	})
	switch {
	case errors.Is(err, stats.ErrLocked):
		s.requeue(ctx, log, job.CustomerID)
		return
	case err != nil:
		log.Error("stats recompute failed", slog.String("error", err.Error()))
		return
	}

	// 3. Freshness
	if !job.EnqueuedAt.IsZero() {
		observability.StatsJobDuration.Observe(time.Since(job.EnqueuedAt).Seconds())
	}
	log.Debug("stats recomputed")
}

func (s *Service) recomputeWithRetry(ctx context.Context, id uuid.UUID) error {
	delay := s.config.BaseRetryDelay
	var err error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if _, err = s.recompute.Recompute(ctx, id); err == nil {
			return nil
		}
		// A deleted customer will not come back.
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		if attempt == s.config.MaxRetries || !s.sleep(ctx, delay) {
			break
		}
		delay *= 2
	}
	return err
}

// requeue puts the id back after a pause, so the current lock holder's
// recompute cannot miss orders written after it read the ledger.
func (s *Service) requeue(ctx context.Context, log *slog.Logger, customerID string) {
	if !s.sleep(ctx, s.config.BaseRetryDelay) {
		return
	}
	if err := s.queue.Enqueue(ctx, customerID); err != nil {
		log.Warn("failed to requeue locked customer", slog.String("error", err.Error()))
		return
	}
	log.Debug("customer locked elsewhere, requeued")
}

func (s *Service) refreshDepth(ctx context.Context) {
	n, err := s.queue.Depth(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("failed to read queue depth", slog.String("error", err.Error()))
		}
		return
	}
	observability.StatsQueueDepth.Set(float64(n))
}

// reconcileResult summarizes one reconcile pass.
type reconcileResult struct {
	mu        sync.Mutex
	succeeded int
	deferred  int
	failed    int
}

func (r *reconcileResult) add(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case err == nil:
		r.succeeded++
	case errors.Is(err, stats.ErrLocked):
		r.deferred++
	default:
		r.failed++
	}
}

// Reconcile recomputes every customer under the same lock as Handle. A
// customer whose lock is held is pushed onto the queue so it is recomputed
// after the current owner finishes. Individual failures are logged and
// counted; only listing errors and cancellation are returned.
func (s *Service) Reconcile(ctx context.Context) error {
	start := time.Now()

	// 1. Enumerate
	ids, err := s.customers.ListCustomerIDs(ctx)
	if err != nil {
		return err
	}

	// 2. Recompute, bounded
	var res reconcileResult
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.config.Concurrency, 1))
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res.add(s.reconcileOne(gctx, id))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("reconcile pass completed",
		slog.Int("customers", len(ids)),
		slog.Int("succeeded", res.succeeded),
		slog.Int("deferred", res.deferred),
		slog.Int("failed", res.failed),
		slog.String("duration", time.Since(start).String()),
	)
	return nil
}

func (s *Service) reconcileOne(ctx context.Context, id uuid.UUID) error {
	err := s.guard.Do(ctx, id, func(ctx context.Context) error {
		_, err := s.recompute.Recompute(ctx, id)
		return err
	})
	switch {
	case errors.Is(err, stats.ErrLocked):
		if qerr := s.queue.Enqueue(ctx, id.String()); qerr != nil {
			s.logger.Warn("failed to queue locked customer during reconcile",
				slog.String("customer_id", id.String()),
				slog.String("error", qerr.Error()),
			)
		}
	case err != nil && ctx.Err() == nil:
		s.logger.Warn("skipping customer after failed recompute",
			slog.String("customer_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// sleepCtx waits d or until ctx ends. It reports whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
