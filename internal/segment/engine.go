// Package segment implements audience segmentation: evaluation of ordered
// rule chains (field, operator, value, connector) against customer profiles,
// and the segment/preview passes built on top of it.
package segment

import (
	"log/slog"
	"time"
)

// DefaultSampleSize caps the customers returned by a preview.
const DefaultSampleSize = 50

// Engine evaluates rule chains. It is stateless apart from its configuration
// and safe for concurrent use.
type Engine struct {
	logger     *slog.Logger
	now        func() time.Time
	sampleSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for inactive_days.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSampleSize sets the preview cap. Non-positive values keep the default.
func WithSampleSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sampleSize = n
		}
	}
}

// New creates an Engine. If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:     logger,
		now:        time.Now,
		sampleSize: DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SampleSize returns the preview cap.
func (e *Engine) SampleSize() int { return e.sampleSize }

// Matches reports whether p satisfies the rule chain. An empty chain matches everyone.
func (e *Engine) Matches(p Profile, conds []Condition) bool {
	return evaluateChain(p, conds, e.now())
}

// Preview is the outcome of a non-committing segmentation pass.
type Preview[C Profile] struct {
	TotalCount   int
	MatchedCount int
	// Sample holds the first matches in input order, at most the engine's sample size.
	Sample []C
}

// Segment returns the customers matching conds, in input order.
func Segment[C Profile](e *Engine, customers []C, conds []Condition) []C {
	e.inspect(conds)
	now := e.now()

	matched := make([]C, 0, len(customers))
	for _, c := range customers {
		if evaluateChain(c, conds, now) {
			matched = append(matched, c)
		}
	}
	return matched
}

// PreviewSegment performs the same match as Segment but returns a bounded
// sample alongside the true match count.
func PreviewSegment[C Profile](e *Engine, customers []C, conds []Condition) Preview[C] {
	matched := Segment(e, customers, conds)

	sample := matched
	if len(sample) > e.sampleSize {
		sample = sample[:e.sampleSize:e.sampleSize]
	}

	return Preview[C]{
		TotalCount:   len(customers),
		MatchedCount: len(matched),
		Sample:       sample,
	}
}

// inspect logs conditions that will not contribute to the match.
func (e *Engine) inspect(conds []Condition) {
	for i, c := range conds {
		switch {
		case !c.Complete():
			e.logger.Debug("skipping incomplete condition",
				slog.Int("index", i),
				slog.String("field", c.Field),
				slog.String("operator", string(c.Operator)),
			)
		case !c.Operator.Known():
			e.logger.Warn("condition uses unknown operator, it never matches",
				slog.Int("index", i),
				slog.String("field", c.Field),
				slog.String("operator", string(c.Operator)),
			)
		}
	}
}
