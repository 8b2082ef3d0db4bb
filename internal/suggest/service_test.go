package suggest_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/delivery"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
	"github.com/sumitkumar2005/xeno-crm/internal/suggest"
	"github.com/sumitkumar2005/xeno-crm/internal/testsupport"
)

// stubGenerator answers from a function and counts calls.
type stubGenerator struct {
	mu    sync.Mutex
	calls []suggest.Request
	fn    func(req suggest.Request) (string, error)
}

func (g *stubGenerator) Generate(_ context.Context, req suggest.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.fn(req)
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func testConfig() *config.SuggestConfig {
	return &config.SuggestConfig{CacheCapacity: 100, CacheTTL: time.Minute, RatePerMinute: 600, Burst: 10}
}

func newService(t *testing.T, gen suggest.Generator, cfg *config.SuggestConfig) *suggest.Service {
	t.Helper()
	svc, err := suggest.NewService(gen, cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func rules(threshold float64) []segment.Condition {
	return []segment.Condition{{Field: segment.FieldSpend, Operator: segment.OpGreater, Value: segment.NumberValue(threshold)}}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "three parts", text: "a\n---\nb\n---\nc", want: []string{"a", "b", "c"}},
		{name: "drops empty parts", text: "---a------b---", want: []string{"a", "b"}},
		{name: "keeps first three", text: "a---b---c---d", want: []string{"a", "b", "c"}},
		{name: "no separator", text: "  only one  ", want: []string{"only one"}},
		{name: "blank", text: "   ", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, suggest.Split(tt.text, 3))
		})
	}
}

func TestService_Suggestions(t *testing.T) {
	ctx := context.Background()

	t.Run("splits a complete response", func(t *testing.T) {
		gen := &stubGenerator{fn: func(suggest.Request) (string, error) { return "one\n---\ntwo\n---\nthree", nil }}
		got := newService(t, gen, testConfig()).Suggestions(ctx, rules(1))

		assert.Equal(t, []string{"one", "two", "three"}, got)
		assert.Equal(t, 1, gen.callCount())
	})

	t.Run("short response falls back to one call per tone", func(t *testing.T) {
		gen := &stubGenerator{fn: func(req suggest.Request) (string, error) {
			switch req.Tone {
			case "":
				return "just one", nil
			case "friendly":
				return "", errors.New("boom")
			default:
				return req.Tone + " copy", nil
			}
		}}
		svc := newService(t, gen, testConfig())

		got := svc.Suggestions(ctx, rules(2))
		assert.Equal(t, []string{"professional copy", suggest.ToneFallback, "urgent copy"}, got)
		assert.Equal(t, 4, gen.callCount())

		// A result with a fallback tone is not cached.
		svc.Suggestions(ctx, rules(2))
		assert.Equal(t, 8, gen.callCount())
	})

	t.Run("generator failure returns static copy", func(t *testing.T) {
		gen := &stubGenerator{fn: func(suggest.Request) (string, error) { return "", errors.New("unavailable") }}
		svc := newService(t, gen, testConfig())

		var got []string
		testsupport.AssertMetricDelta(t, "xeno_suggest_fallbacks_total", map[string]string{"reason": "generator_error"}, 1, func() {
			got = svc.Suggestions(ctx, rules(3))
		})
		assert.Equal(t, suggest.StaticFallback, got)

		got[0] = "mutated"
		assert.NotEqual(t, "mutated", suggest.StaticFallback[0])
	})

	t.Run("cached per rule set", func(t *testing.T) {
		gen := &stubGenerator{fn: func(suggest.Request) (string, error) { return "a---b---c", nil }}
		svc := newService(t, gen, testConfig())

		first := svc.Suggestions(ctx, rules(4))
		testsupport.AssertMetricDelta(t, "xeno_suggest_cache_hits_total", nil, 1, func() {
			assert.Equal(t, first, svc.Suggestions(ctx, rules(4)))
		})
		assert.Equal(t, 1, gen.callCount())

		svc.Suggestions(ctx, rules(5))
		assert.Equal(t, 2, gen.callCount())
	})

	t.Run("exhausted budget returns static copy", func(t *testing.T) {
		gen := &stubGenerator{fn: func(suggest.Request) (string, error) { return "a---b---c", nil }}
		cfg := testConfig()
		cfg.RatePerMinute, cfg.Burst = 1, 1
		svc := newService(t, gen, cfg)

		svc.Suggestions(ctx, rules(6))
		got := svc.Suggestions(ctx, rules(7))

		assert.Equal(t, suggest.StaticFallback, got)
		assert.Equal(t, 1, gen.callCount())
	})
}

func TestService_Message(t *testing.T) {
	ctx := context.Background()

	t.Run("trims and caches", func(t *testing.T) {
		gen := &stubGenerator{fn: func(suggest.Request) (string, error) { return "  Hi {{name}}!  ", nil }}
		svc := newService(t, gen, testConfig())

		msg, err := svc.Message(ctx, rules(1))
		require.NoError(t, err)
		assert.Equal(t, "Hi {{name}}!", msg)

		_, err = svc.Message(ctx, rules(1))
		require.NoError(t, err)
		assert.Equal(t, 1, gen.callCount())
	})

	t.Run("failure is surfaced", func(t *testing.T) {
		cause := errors.New("quota")
		gen := &stubGenerator{fn: func(suggest.Request) (string, error) { return "", cause }}

		_, err := newService(t, gen, testConfig()).Message(ctx, rules(1))
		assert.ErrorIs(t, err, suggest.ErrGenerationFailed)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("empty response is a failure", func(t *testing.T) {
		gen := &stubGenerator{fn: func(suggest.Request) (string, error) { return " \n", nil }}

		_, err := newService(t, gen, testConfig()).Message(ctx, rules(1))
		assert.ErrorIs(t, err, suggest.ErrGenerationFailed)
	})

	t.Run("rate limited", func(t *testing.T) {
		gen := &stubGenerator{fn: func(suggest.Request) (string, error) { return "x", nil }}
		cfg := testConfig()
		cfg.RatePerMinute, cfg.Burst = 1, 1
		svc := newService(t, gen, cfg)

		_, err := svc.Message(ctx, rules(1))
		require.NoError(t, err)
		_, err = svc.Message(ctx, rules(2))
		assert.ErrorIs(t, err, suggest.ErrRateLimited)
	})
}

func TestTemplateGenerator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	gen := suggest.TemplateGenerator{}

	text, err := gen.Generate(ctx, suggest.Request{Rules: rules(1000), Count: 3})
	require.NoError(t, err)
	parts := suggest.Split(text, 3)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.Contains(t, p, delivery.Placeholder)
		assert.LessOrEqual(t, len(p), suggest.MaxMessageLen)
	}

	one, err := gen.Generate(ctx, suggest.Request{Rules: rules(1000), Tone: "urgent"})
	require.NoError(t, err)
	assert.Contains(t, one, delivery.Placeholder)

	again, err := gen.Generate(ctx, suggest.Request{Rules: rules(1000), Tone: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, one, again, "deterministic for equal rules")
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	p := suggest.Prompt(suggest.Request{Rules: []segment.Condition{
		{Field: "spend", Operator: segment.OpGreater, Value: segment.NumberValue(1000)},
		{Field: "visits", Operator: segment.OpLess, Value: segment.StringValue("3")},
	}, Count: 3})

	assert.Contains(t, p, "1. spend > 1000\n2. visits < 3\n")
	assert.Contains(t, p, `separated by "---"`)
	assert.Contains(t, p, "{{name}}")
	assert.True(t, strings.HasPrefix(p, "You're a marketing assistant."))
}

func TestRulesHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, suggest.RulesHash(rules(10)), suggest.RulesHash(rules(10)))
	assert.NotEqual(t, suggest.RulesHash(rules(10)), suggest.RulesHash(rules(11)))

	num := []segment.Condition{{Field: "visits", Operator: segment.OpEqual, Value: segment.NumberValue(3)}}
	str := []segment.Condition{{Field: "visits", Operator: segment.OpEqual, Value: segment.StringValue("3")}}
	assert.NotEqual(t, suggest.RulesHash(num), suggest.RulesHash(str))
}
