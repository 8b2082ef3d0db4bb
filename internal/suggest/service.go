package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sumitkumar2005/xeno-crm/internal/cache"
	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/observability"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

// SuggestionCount is the number of suggestions returned per request.
const SuggestionCount = 3

// ToneFallback replaces a single tone that could not be generated.
const ToneFallback = "Hi {{name}}, special offer just for you!"

// StaticFallback is returned when generation is unavailable altogether.
var StaticFallback = []string{
	"Hi {{name}}, don't miss out on this exclusive offer!",
	"{{name}}, your special discount is waiting for you!",
	"Limited time offer for you, {{name}}! Act now!",
}

var (
	// ErrRateLimited is returned when the generator budget is exhausted.
	ErrRateLimited = errors.New("suggest: rate limited")

	// ErrGenerationFailed wraps generator failures.
	ErrGenerationFailed = errors.New("suggest: generation failed")
)

// Fallback reasons recorded on the fallbacks metric.
const (
	reasonRateLimited = "rate_limited"
	reasonGenerator   = "generator_error"
	reasonShort       = "short_response"
	reasonTone        = "tone_error"
)

// Service is safe for concurrent use.
type Service struct {
	gen     Generator
	cache   *cache.MemoryCache[[]string]
	limiter *rate.Limiter
}

func NewService(gen Generator, cfg *config.SuggestConfig) (*Service, error) {
	validation.AssertNotNilInterface(gen, "generator")
	validation.AssertNotNil(cfg, "suggest config")

	c, err := cache.NewMemoryCache[[]string](cfg.CacheCapacity, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("suggestion cache: %w", err)
	}

	every := time.Minute / time.Duration(cfg.RatePerMinute)
	return &Service{
		gen:     gen,
		cache:   c,
		limiter: rate.NewLimiter(rate.Every(every), cfg.Burst),
	}, nil
}

// Close releases the cache.
func (s *Service) Close() {
	s.cache.Close()
}

// Message returns one message for rules. Failures are returned to the caller.
func (s *Service) Message(ctx context.Context, rules []segment.Condition) (string, error) {
	key := fmt.Sprintf("message:%016x", RulesHash(rules))
	if hit, ok := s.lookup(key); ok {
		return hit[0], nil
	}

	if !s.limiter.Allow() {
		return "", ErrRateLimited
	}

	text, err := s.gen.Generate(ctx, Request{Rules: rules, Count: 1})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	s.cache.Set(key, []string{text})
	return text, nil
}

// Suggestions returns exactly SuggestionCount messages and never fails.
//
// 1. The generator is asked for all messages at once.
// 2. If it returns fewer, each tone is requested on its own; a tone that
// fails is replaced by ToneFallback.
// 3. If generation is unavailable, StaticFallback is returned.
func (s *Service) Suggestions(ctx context.Context, rules []segment.Condition) []string {
	log := logger.FromContext(ctx)
	key := fmt.Sprintf("suggestions:%016x", RulesHash(rules))
	if hit, ok := s.lookup(key); ok {
		return hit
	}

	if !s.limiter.Allow() {
		observability.SuggestFallbacks.WithLabelValues(reasonRateLimited).Inc()
		return static()
	}

	text, err := s.gen.Generate(ctx, Request{Rules: rules, Count: SuggestionCount})
	if err != nil {
		log.Warn("suggestion generation failed, using static copy", slog.String("error", err.Error()))
		observability.SuggestFallbacks.WithLabelValues(reasonGenerator).Inc()
		return static()
	}

	out := Split(text, SuggestionCount)
	cacheable := true
	if len(out) < SuggestionCount {
		observability.SuggestFallbacks.WithLabelValues(reasonShort).Inc()
		out, cacheable = s.byTone(ctx, rules)
	}

	if cacheable {
		s.cache.Set(key, append([]string(nil), out...))
	}
	return out
}

// byTone generates one message per tone. The second result is false when
// any tone fell back.
func (s *Service) byTone(ctx context.Context, rules []segment.Condition) ([]string, bool) {
	out := make([]string, 0, len(Tones))
	clean := true
	for _, tone := range Tones {
		text, err := s.gen.Generate(ctx, Request{Rules: rules, Count: 1, Tone: tone})
		text = strings.TrimSpace(text)
		if err != nil || text == "" {
			logger.FromContext(ctx).Warn("tone generation failed",
				slog.String("tone", tone),
				slog.Any("error", err),
			)
			observability.SuggestFallbacks.WithLabelValues(reasonTone).Inc()
			text = ToneFallback
			clean = false
		}
		out = append(out, text)
	}
	return out, clean
}

func (s *Service) lookup(key string) ([]string, bool) {
	hit, ok := s.cache.Get(key)
	if ok {
		observability.SuggestCacheHits.Inc()
		return append([]string(nil), hit...), true
	}
	observability.SuggestCacheMisses.Inc()
	return nil, false
}

// Split cuts text on Separator, trims each part, drops empty parts and
// keeps at most limit.
func Split(text string, limit int) []string {
	out := make([]string, 0, limit)
	for _, part := range strings.Split(text, Separator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
		if len(out) == limit {
			break
		}
	}
	return out
}

func static() []string {
	return append([]string(nil), StaticFallback...)
}
