// Package campaign orchestrates segmentation and delivery: it previews an
// audience, creates campaigns and dispatches them, and reports delivery
// summaries and logs.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/observability"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

var tracer = otel.Tracer("xeno-crm/campaign")

// summaryConcurrency bounds parallel log reads when listing campaigns.
const summaryConcurrency = 8

// Repository is the slice of the store the service needs.
type Repository interface {
	FindCustomers(ctx context.Context) ([]*store.Customer, error)
	CreateCampaign(ctx context.Context, c *store.Campaign) error
	FindCampaignByID(ctx context.Context, id uuid.UUID) (*store.Campaign, error)
	ListCampaignsByOwner(ctx context.Context, ownerID string) ([]*store.Campaign, error)
	FindLogsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*store.CommunicationLog, error)
}

// Dispatcher delivers a campaign to its audience.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *store.Campaign, recipients []*store.Customer) ([]*store.CommunicationLog, error)
}

// Service is safe for concurrent use.
type Service struct {
	repo       Repository
	engine     *segment.Engine
	dispatcher Dispatcher
}

func NewService(repo Repository, engine *segment.Engine, dispatcher Dispatcher) *Service {
	validation.AssertNotNilInterface(repo, "campaign repository")
	validation.AssertNotNil(engine, "segment engine")
	validation.AssertNotNilInterface(dispatcher, "dispatcher")

	return &Service{repo: repo, engine: engine, dispatcher: dispatcher}
}

// Preview matches rules against the whole population without side effects.
func (s *Service) Preview(ctx context.Context, rules []segment.Condition) (segment.Preview[*store.Customer], error) {
	ctx, span := tracer.Start(ctx, "campaign.preview", trace.WithAttributes(attribute.Int("rules.count", len(rules))))
	defer span.End()

	customers, err := s.repo.FindCustomers(ctx)
	if err != nil {
		return segment.Preview[*store.Customer]{}, fmt.Errorf("load customers: %w", err)
	}

	start := time.Now()
	p := segment.PreviewSegment(s.engine, customers, rules)
	s.observe(span, start, p.MatchedCount)

	return p, nil
}

// CreateInput carries a new campaign.
type CreateInput struct {
	OwnerID string
	Rules   []segment.Condition
	Message string
}

// CreateResult is the stored campaign and the logs of its dispatch.
type CreateResult struct {
	Campaign *store.Campaign
	Logs     []*store.CommunicationLog
}

// Create stores the campaign, segments the population and dispatches to the
// matches. A dispatch failure is returned as is (a *delivery.DispatchError);
// the campaign row stays, with no logs.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	ctx, span := tracer.Start(ctx, "campaign.create", trace.WithAttributes(
		attribute.String("campaign.owner", in.OwnerID),
		attribute.Int("rules.count", len(in.Rules)),
	))
	defer span.End()

	// 1. Persist the campaign
	c := &store.Campaign{OwnerID: in.OwnerID, Rules: in.Rules, Message: in.Message}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	span.SetAttributes(attribute.String("campaign.id", c.ID.String()))
	ctx = logger.With(ctx, slog.String("campaign_id", c.ID.String()))

	// 2. Segment
	customers, err := s.repo.FindCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	start := time.Now()
	matched := segment.Segment(s.engine, customers, c.Rules)
	s.observe(span, start, len(matched))

	// 3. Dispatch
	logs, err := s.dispatcher.Dispatch(ctx, c, matched)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("campaign dispatched",
		slog.Int("population", len(customers)),
		slog.Int("targeted", len(matched)),
	)
	return &CreateResult{Campaign: c, Logs: logs}, nil
}

// Summary is a campaign with its delivery counts.
type Summary struct {
	Campaign *store.Campaign
	Total    int
	Sent     int
	Failed   int
}

// List returns the owner's campaigns, newest first, with delivery counts.
// Logs for the campaigns are fetched concurrently and recombined in order.
func (s *Service) List(ctx context.Context, ownerID string) ([]Summary, error) {
	ctx, span := tracer.Start(ctx, "campaign.list")
	defer span.End()

	campaigns, err := s.repo.ListCampaignsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}

	summaries := make([]Summary, len(campaigns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, c := range campaigns {
		g.Go(func() error {
			logs, err := s.repo.FindLogsByCampaign(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("logs for campaign %s: %w", c.ID, err)
			}
			summaries[i] = summarize(c, logs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("campaigns.count", len(summaries)))
	return summaries, nil
}

// Logs returns the campaign's logs, newest first. store.ErrNotFound when the
// campaign does not exist.
func (s *Service) Logs(ctx context.Context, campaignID uuid.UUID) ([]*store.CommunicationLog, error) {
	if _, err := s.repo.FindCampaignByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.repo.FindLogsByCampaign(ctx, campaignID)
}

func summarize(c *store.Campaign, logs []*store.CommunicationLog) Summary {
	sum := Summary{Campaign: c, Total: len(logs)}
	for _, l := range logs {
		if l.Status == store.StatusSent {
			sum.Sent++
		} else {
			sum.Failed++
		}
	}
	return sum
}

func (s *Service) observe(span trace.Span, start time.Time, matched int) {
	observability.SegmentEvalDuration.Observe(time.Since(start).Seconds())
	observability.SegmentMatched.Observe(float64(matched))
	span.SetAttributes(attribute.Int("segment.matched", matched))
}
