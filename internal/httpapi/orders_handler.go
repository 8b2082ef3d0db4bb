package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/stats"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
)

// handleCreateOrder processes POST /api/v1/orders.
//
// 1. Decodes, sanitizes and validates the payload (including the amount policy).
// 2. Inserts the order; an unknown customer is a 404.
// 3. Recomputes the customer's derived stats under the stats lock. When the
// lock is held the customer is queued instead; a failure is logged and left
// to the reconcile pass. The order is already stored either way.
func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	// 1. Decode & validate
	var req CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	// 2. Persist
	order := req.toOrder()
	if err := a.store.CreateOrder(r.Context(), order); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, codeNotFound, "Customer not found")
			return
		}
		log.Error("failed to create order", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to create order")
		return
	}

	// 3. Refresh derived stats
	a.refreshStats(r.Context(), order.CustomerID)

	log.Info("order created", slog.String("order_id", order.ID.String()))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, order)
}

// handleListOrders processes GET /api/v1/orders (most recent first).
func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.store.ListOrders(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list orders", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to list orders")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, nonNil(orders))
}

// handleListCustomerOrders processes GET /api/v1/orders/customer/{customerID}.
func (a *API) handleListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "customerID must be a valid UUID")
		return
	}

	if _, err := a.store.FindCustomerByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, codeNotFound, "Customer not found")
			return
		}
		log.Error("failed to load customer", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to load customer")
		return
	}

	orders, err := a.store.FindOrdersByCustomer(r.Context(), id)
	if err != nil {
		log.Error("failed to list customer orders", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to list orders")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, nonNil(orders))
}

// handleBulkOrders processes POST /api/v1/orders/bulk.
//
// All orders are inserted in one transaction. Each distinct customer is then
// pushed onto the stats queue; if the queue is unavailable the stats are
// recomputed inline.
func (a *API) handleBulkOrders(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	// 1. Decode & validate
	var req BulkOrdersRequest
	if !decode(w, r, &req) {
		return
	}
	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	// 2. Insert atomically
	orders := make([]*store.Order, len(req.Orders))
	for i := range req.Orders {
		orders[i] = req.Orders[i].toOrder()
	}
	if err := a.store.CreateOrders(r.Context(), orders); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, codeNotFound, "One or more customers not found")
			return
		}
		log.Error("failed to import orders", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to import orders")
		return
	}

	// 3. Schedule stats refresh
	ids := distinctCustomers(orders)
	queued := a.enqueueStats(r.Context(), ids)
	if !queued {
		res, err := a.stats.RecomputeMany(r.Context(), ids, a.recomputeConcurrency)
		if err != nil {
			log.Warn("inline stats recompute interrupted", slog.String("error", err.Error()))
		} else if len(res.Failed) > 0 {
			log.Warn("inline stats recompute had failures", slog.Int("failed", len(res.Failed)))
		}
	}

	log.Info("orders imported",
		slog.Int("orders", len(orders)),
		slog.Int("customers", len(ids)),
		slog.Bool("queued", queued),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, BulkOrdersResponse{Inserted: len(orders), Customers: len(ids), Queued: queued})
}

// refreshStats recomputes one customer after an order write.
func (a *API) refreshStats(ctx context.Context, id uuid.UUID) {
	log := logger.FromContext(ctx).With(slog.String("customer_id", id.String()))

	recompute := func(ctx context.Context) error {
		_, err := a.stats.Recompute(ctx, id)
		return err
	}

	var err error
	if a.guard != nil {
		err = a.guard.Do(ctx, id, recompute)
	} else {
		err = recompute(ctx)
	}

	switch {
	case errors.Is(err, stats.ErrLocked):
		// The owner may have read the ledger before this order.
		if !a.enqueueStats(ctx, []uuid.UUID{id}) {
			log.Warn("customer stats locked and queue unavailable, left to reconcile")
		}
	case err != nil:
		log.Error("failed to update customer stats after order", slog.String("error", err.Error()))
	}
}

func (a *API) enqueueStats(ctx context.Context, ids []uuid.UUID) bool {
	if a.queue == nil {
		return false
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	if err := a.queue.Enqueue(ctx, raw...); err != nil {
		logger.FromContext(ctx).Error("failed to enqueue stats jobs, recomputing inline", slog.String("error", err.Error()))
		return false
	}
	return true
}

// distinctCustomers returns the customer ids of orders in first-seen order.
func distinctCustomers(orders []*store.Order) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.CustomerID]; ok {
			continue
		}
		seen[o.CustomerID] = struct{}{}
		ids = append(ids, o.CustomerID)
	}
	return ids
}
