// Package stats derives a customer's lifetime spend, visit count and last
// order date from their order history and writes them back to the store.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/observability"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

var tracer = otel.Tracer("xeno-crm/stats")

// Repository is the slice of the store the aggregator needs.
type Repository interface {
	FindOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*store.Order, error)
	UpdateCustomerStats(ctx context.Context, id uuid.UUID, stats store.CustomerStats) error
}

// AggregationError reports a failed recompute for one customer.
type AggregationError struct {
	CustomerID uuid.UUID
	Err        error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("recompute stats for customer %s: %v", e.CustomerID, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// Aggregate folds an order set into stats. It is independent of input order.
func Aggregate(orders []*store.Order) store.CustomerStats {
	out := store.CustomerStats{LifetimeSpend: decimal.Zero}
	var last time.Time
	for _, o := range orders {
		out.LifetimeSpend = out.LifetimeSpend.Add(o.Amount)
		out.Visits++
		if o.Date.After(last) {
			last = o.Date
		}
	}
	if out.Visits > 0 {
		last = last.UTC()
		out.LastOrderDate = &last
	}
	return out
}

// Aggregator is the only writer of customer stats.
type Aggregator struct {
	repo Repository
}

func NewAggregator(repo Repository) *Aggregator {
	validation.AssertNotNilInterface(repo, "stats repository")
	return &Aggregator{repo: repo}
}

// Recompute reads every order of the customer and overwrites the derived
// fields. Running it twice yields the same stored values.
// Failures are returned as *AggregationError; a missing customer unwraps to store.ErrNotFound.
func (a *Aggregator) Recompute(ctx context.Context, customerID uuid.UUID) (store.CustomerStats, error) {
	ctx, span := tracer.Start(ctx, "stats.recompute",
		trace.WithAttributes(attribute.String("customer.id", customerID.String())))
	defer span.End()

	stats, err := a.recompute(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recompute failed")
		observability.StatsRecomputeTotal.WithLabelValues("fail").Inc()
		return store.CustomerStats{}, &AggregationError{CustomerID: customerID, Err: err}
	}

	span.SetAttributes(attribute.Int("customer.visits", stats.Visits))
	observability.StatsRecomputeTotal.WithLabelValues("success").Inc()
	return stats, nil
}

func (a *Aggregator) recompute(ctx context.Context, customerID uuid.UUID) (store.CustomerStats, error) {
	// 1. Fetch the full order set
	orders, err := a.repo.FindOrdersByCustomer(ctx, customerID)
	if err != nil {
		return store.CustomerStats{}, fmt.Errorf("load orders: %w", err)
	}

	// 2. Fold
	stats := Aggregate(orders)

	// 3. Write back (ErrNotFound when the customer is gone)
	if err := a.repo.UpdateCustomerStats(ctx, customerID, stats); err != nil {
		return store.CustomerStats{}, fmt.Errorf("write stats: %w", err)
	}
	return stats, nil
}

// BatchResult summarizes RecomputeMany.
type BatchResult struct {
	Succeeded int
	Failed    []*AggregationError
}

// RecomputeMany recomputes distinct customers concurrently, at most
// concurrency at a time. A failing customer is logged and skipped; it never
// aborts the others. The only returned error is context cancellation.
func (a *Aggregator) RecomputeMany(ctx context.Context, ids []uuid.UUID, concurrency int) (BatchResult, error) {
	log := logger.FromContext(ctx)

	results := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	launched := 0
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		launched++
		g.Go(func() error {
			_, err := a.Recompute(gctx, id)
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var res BatchResult
	for i, err := range results[:launched] {
		if err == nil {
			res.Succeeded++
			continue
		}
		var aggErr *AggregationError
		if !errors.As(err, &aggErr) {
			aggErr = &AggregationError{CustomerID: ids[i], Err: err}
		}
		log.Warn("skipping customer after failed recompute",
			slog.String("customer_id", ids[i].String()),
			slog.Any("error", aggErr.Err),
		)
		res.Failed = append(res.Failed, aggErr)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
