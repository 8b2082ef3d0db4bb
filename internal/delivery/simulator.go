// Package delivery simulates sending a campaign message to each matched
// customer and records one communication log per recipient.
package delivery

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sumitkumar2005/xeno-crm/internal/observability"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

// Placeholder is replaced (first occurrence only) by the recipient's name.
const Placeholder = "{{name}}"

// DefaultSuccessRate is the probability that a simulated delivery is SENT.
const DefaultSuccessRate = 0.9

var tracer = otel.Tracer("xeno-crm/delivery")

// Drawer yields uniform values in [0, 1).
type Drawer interface {
	Float64() float64
}

// LogWriter persists communication logs atomically.
type LogWriter interface {
	InsertLogs(ctx context.Context, logs []*store.CommunicationLog) error
}

// DispatchError reports that the log batch of a campaign could not be
// written. Nothing from the batch was stored.
type DispatchError struct {
	CampaignID uuid.UUID
	Recipients int
	Err        error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch campaign %s to %d recipients: %v", e.CampaignID, e.Recipients, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Render personalizes template for one recipient.
func Render(template, name string) string {
	return strings.Replace(template, Placeholder, name, 1)
}

// Simulator renders messages, draws outcomes and writes the log batch.
type Simulator struct {
	logs        LogWriter
	successRate float64
	newDrawer   func() Drawer
	now         func() time.Time
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSuccessRate overrides p. Values outside [0, 1] are clamped.
func WithSuccessRate(p float64) Option {
	return func(s *Simulator) { s.successRate = min(max(p, 0), 1) }
}

// WithDrawer injects the source of randomness, one Drawer per dispatch.
func WithDrawer(factory func() Drawer) Option {
	return func(s *Simulator) { s.newDrawer = factory }
}

// WithClock overrides the log timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

func NewSimulator(logs LogWriter, opts ...Option) *Simulator {
	validation.AssertNotNilInterface(logs, "log writer")

	s := &Simulator{
		logs:        logs,
		successRate: DefaultSuccessRate,
		newDrawer:   newPCGDrawer,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newPCGDrawer seeds a private generator so concurrent dispatches share no RNG state.
func newPCGDrawer() Drawer {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Dispatch produces exactly one log per recipient, in recipient order, and
// stores them in a single batch. On failure nothing is returned but a *DispatchError.
func (s *Simulator) Dispatch(ctx context.Context, campaign *store.Campaign, recipients []*store.Customer) ([]*store.CommunicationLog, error) {
	ctx, span := tracer.Start(ctx, "delivery.dispatch", trace.WithAttributes(
		attribute.String("campaign.id", campaign.ID.String()),
		attribute.Int("campaign.recipients", len(recipients)),
	))
	defer span.End()

	logs := make([]*store.CommunicationLog, 0, len(recipients))
	if len(recipients) == 0 {
		return logs, nil
	}

	// 1. Render and draw per recipient
	draw := s.newDrawer()
	now := s.now()
	sent := 0
	for _, c := range recipients {
		status := store.StatusFailed
		if draw.Float64() < s.successRate {
			status = store.StatusSent
			sent++
		}
		logs = append(logs, &store.CommunicationLog{
			ID:            uuid.New(),
			CampaignID:    campaign.ID,
			CustomerName:  c.Name,
			CustomerEmail: c.Email,
			Message:       Render(campaign.Message, c.Name),
			Status:        status,
			CreatedAt:     now,
		})
	}

	// 2. Persist as one batch
	if err := s.logs.InsertLogs(ctx, logs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "log batch insert failed")
		observability.DeliveryDispatchFailures.Inc()
		return nil, &DispatchError{CampaignID: campaign.ID, Recipients: len(recipients), Err: err}
	}

	failed := len(logs) - sent
	observability.DeliveryMessages.WithLabelValues(string(store.StatusSent)).Add(float64(sent))
	observability.DeliveryMessages.WithLabelValues(string(store.StatusFailed)).Add(float64(failed))
	span.SetAttributes(attribute.Int("delivery.sent", sent), attribute.Int("delivery.failed", failed))

	return logs, nil
}
