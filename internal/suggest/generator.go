// Package suggest produces campaign message copy for a rule set.
//
// Text comes from a Generator. The Service adds caching, admission control
// and the fallbacks that keep the suggestion endpoint always answering.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/sumitkumar2005/xeno-crm/internal/delivery"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
)

// Tones requested when suggestions are generated one by one.
var Tones = []string{"professional", "friendly", "urgent"}

// Separator delimits suggestions in a multi-message response.
const Separator = "---"

// MaxMessageLen is the length budget given to the generator.
const MaxMessageLen = 200

// Request describes what copy to produce.
type Request struct {
	Rules []segment.Condition
	// Count is how many messages to return, separated by Separator.
	Count int
	// Tone is empty for "any".
	Tone string
}

// Generator is the opaque text source. Implementations may call out to a
// language model; they must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Prompt renders req as instructions for a language-model backed Generator.
func Prompt(req Request) string {
	var b strings.Builder
	b.WriteString("You're a marketing assistant. Based on the customer rules below, ")
	switch {
	case req.Count > 1:
		fmt.Fprintf(&b, "write %d different short, engaging campaign messages under %d characters each, ", req.Count, MaxMessageLen)
		fmt.Fprintf(&b, "each in a different tone (%s), separated by %q.\n", strings.Join(Tones, ", "), Separator)
	case req.Tone != "":
		fmt.Fprintf(&b, "write one short, engaging campaign message under %d characters with a %s tone.\n", MaxMessageLen, req.Tone)
	default:
		fmt.Fprintf(&b, "write a short, engaging and unique campaign message under %d characters.\n", MaxMessageLen)
	}
	fmt.Fprintf(&b, "Use %s for personalization.\n\nRules:\n", delivery.Placeholder)
	b.WriteString(DescribeRules(req.Rules))
	return b.String()
}

// DescribeRules lists the rules one per line: "1. spend > 1000".
func DescribeRules(rules []segment.Condition) string {
	var b strings.Builder
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. %s %s %s\n", i+1, r.Field, r.Operator, r.Value.Text())
	}
	return b.String()
}

// TemplateGenerator writes copy from built-in templates. It needs no
// external service and always succeeds; the template set is picked by a
// hash of the rules so different audiences get different copy.
type TemplateGenerator struct{}

var _ Generator = TemplateGenerator{}

var templates = map[string][]string{
	"professional": {
		"Dear {{name}}, as a valued customer you are invited to enjoy an exclusive 15% discount on your next purchase.",
		"{{name}}, thank you for your continued trust. A curated selection with member pricing is now available to you.",
		"Hello {{name}}, we have reserved a complimentary upgrade on your next order. Valid this month only.",
	},
	"friendly": {
		"Hey {{name}}! We missed you, so here's a little something: 20% off anything you love this week.",
		"Hi {{name}}! Your favourites are back in stock and we saved you a treat at checkout.",
		"{{name}}, good news! A surprise gift is waiting in your next order. Come take a look!",
	},
	"urgent": {
		"{{name}}, only 24 hours left! Grab your exclusive deal before it's gone.",
		"Last call, {{name}}! Your special discount expires tonight. Shop now.",
		"Hurry {{name}}, stock is running low on the picks we chose for you. Act now!",
	},
}

func (TemplateGenerator) Generate(_ context.Context, req Request) (string, error) {
	variant := int(RulesHash(req.Rules) % 3)

	if req.Count > 1 {
		n := min(req.Count, len(Tones))
		parts := make([]string, n)
		for i := range n {
			parts[i] = templates[Tones[i]][variant]
		}
		return strings.Join(parts, "\n"+Separator+"\n"), nil
	}

	tone := req.Tone
	if _, ok := templates[tone]; !ok {
		tone = Tones[variant]
	}
	return templates[tone][variant], nil
}

// RulesHash fingerprints a rule set. Equal rule sets hash equally.
func RulesHash(rules []segment.Condition) uint64 {
	h := murmur3.New64()
	for _, r := range rules {
		// Unit and record separators keep field boundaries unambiguous.
		_, _ = fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1e", r.Field, r.Operator, r.Value.String(), r.Logical)
	}
	return h.Sum64()
}
