package rpcapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

// Previewer runs a non-committing segmentation pass.
type Previewer interface {
	Preview(ctx context.Context, rules []segment.Condition) (segment.Preview[*store.Customer], error)
}

// CustomerFinder loads a single customer.
type CustomerFinder interface {
	FindCustomerByID(ctx context.Context, id uuid.UUID) (*store.Customer, error)
}

// API implements SegmentServer.
type API struct {
	previewer Previewer
	customers CustomerFinder
	engine    *segment.Engine
}

var _ SegmentServer = (*API)(nil)

func NewAPI(previewer Previewer, customers CustomerFinder, engine *segment.Engine) *API {
	validation.AssertNotNilInterface(previewer, "previewer")
	validation.AssertNotNilInterface(customers, "customer finder")
	validation.AssertNotNil(engine, "segment engine")

	return &API{previewer: previewer, customers: customers, engine: engine}
}

// Register connects this implementation to the grpc.Server engine.
func (a *API) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, a)
}

// Preview returns the population size, the match count and a bounded sample.
//
// It returns:
//   - OK with the preview.
//   - INTERNAL if the customers could not be loaded.
func (a *API) Preview(ctx context.Context, req *PreviewRequest) (*PreviewResponse, error) {
	log := logger.FromContext(ctx)
	log.Debug("previewing segment", slog.Int("rules", len(req.Rules)))

	p, err := a.previewer.Preview(ctx, req.Rules)
	if err != nil {
		log.Error("preview failed", slog.String("error", err.Error()))
		return nil, status.Error(codes.Internal, "failed to load customers")
	}

	sample := make([]CustomerSummary, len(p.Sample))
	for i, c := range p.Sample {
		sample[i] = summarize(c)
	}
	return &PreviewResponse{
		TotalCustomers:   p.TotalCount,
		MatchedCount:     p.MatchedCount,
		MatchedCustomers: sample,
	}, nil
}

// Evaluate reports whether one customer satisfies the rules.
//
// It returns:
//   - INVALID_ARGUMENT if customer_id is missing or not a UUID.
//   - NOT_FOUND if the customer does not exist.
//   - INTERNAL on storage failures.
func (a *API) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	log := logger.FromContext(ctx)

	// 1. Input validation
	if req.CustomerID == "" {
		log.Warn("bad request: missing customer_id")
		return nil, status.Error(codes.InvalidArgument, "customer_id is required")
	}
	id, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "customer_id must be a UUID")
	}

	// 2. Load
	c, err := a.customers.FindCustomerByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "customer not found")
		}
		log.Error("failed to load customer", slog.String("customer_id", req.CustomerID), slog.String("error", err.Error()))
		return nil, status.Error(codes.Internal, "failed to load customer")
	}

	// 3. Evaluate
	return &EvaluateResponse{Matched: a.engine.Matches(c, req.Rules)}, nil
}

func summarize(c *store.Customer) CustomerSummary {
	return CustomerSummary{
		ID:            c.ID.String(),
		Name:          c.Name,
		Email:         c.Email,
		LifetimeSpend: c.LifetimeSpend.String(),
		Visits:        c.Visits,
		LastOrderDate: c.LastOrderDate,
	}
}
