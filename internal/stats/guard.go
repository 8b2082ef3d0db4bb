package stats

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sumitkumar2005/xeno-crm/internal/cache"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

// ErrLocked is returned when another recompute owns the customer. The caller
// must make sure the customer is recomputed again later.
var ErrLocked = errors.New("stats: customer locked by another recompute")

// LockKey is the lock every recompute path takes for one customer.
func LockKey(id uuid.UUID) string {
	return "stats:" + id.String()
}

// Guard serializes recomputes of one customer across processes. The worker,
// its reconcile pass and the order API all recompute through it.
type Guard struct {
	locker cache.Locker
	ttl    time.Duration
}

func NewGuard(locker cache.Locker, ttl time.Duration) *Guard {
	validation.AssertNotNilInterface(locker, "locker")
	return &Guard{locker: locker, ttl: ttl}
}

// Do runs fn while holding LockKey(id). A held lock yields ErrLocked and fn
// is not called. When the lock backend fails fn runs unlocked.
func (g *Guard) Do(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx)

	release, ok, err := g.locker.TryLock(ctx, LockKey(id), g.ttl)
	switch {
	case err != nil:
		log.Warn("stats lock unavailable, recomputing without it",
			slog.String("customer_id", id.String()),
			slog.String("error", err.Error()),
		)
		return fn(ctx)
	case !ok:
		return ErrLocked
	}

	defer func() {
		// Released even after ctx is cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := release(rctx); err != nil {
			log.Warn("failed to release stats lock",
				slog.String("customer_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
	return fn(ctx)
}
