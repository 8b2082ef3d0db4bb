package segment

import (
	"math"
	"time"
)

// Rule fields with dedicated resolution. Any other field name is looked up
// as a raw customer attribute.
const (
	FieldSpend        = "spend"
	FieldVisits       = "visits"
	FieldInactiveDays = "inactive_days"
)

// Customer attributes read by the dedicated fields.
const (
	AttrLifetimeSpend = "lifetime_spend"
	AttrVisits        = "visits"
	// AttrLastOrderDate holds Unix milliseconds.
	AttrLastOrderDate = "last_order_date"
)

// NeverOrdered is the inactivity of a customer without orders: larger than
// any real day count, so "<" tests fail and ">" tests pass.
const NeverOrdered = 1<<53 - 1

const msPerDay = 24 * 60 * 60 * 1000

// Profile exposes the attributes of one customer to the evaluator.
type Profile interface {
	// Attribute returns the named attribute, or false when the customer has none.
	Attribute(name string) (Value, bool)
}

// Attributes is a map-backed Profile.
type Attributes map[string]Value

// Attribute implements Profile.
func (a Attributes) Attribute(name string) (Value, bool) {
	v, ok := a[name]
	return v, ok && v.IsValid()
}

// step resolves the condition's field on p and evaluates it.
func step(p Profile, c Condition, now time.Time) bool {
	switch c.Field {
	case FieldSpend:
		return Evaluate(orZero(p, AttrLifetimeSpend), c.Operator, NumberValue(c.Value.Float()))
	case FieldVisits:
		return Evaluate(orZero(p, AttrVisits), c.Operator, NumberValue(c.Value.Float()))
	case FieldInactiveDays:
		return Evaluate(NumberValue(InactiveDays(p, now)), c.Operator, NumberValue(c.Value.Float()))
	default:
		actual, ok := p.Attribute(c.Field)
		if !ok {
			return false
		}
		return Evaluate(actual, c.Operator, c.Value)
	}
}

// orZero returns the attribute, substituting 0 for missing or falsy values (0, NaN, "").
func orZero(p Profile, name string) Value {
	v, ok := p.Attribute(name)
	if !ok {
		return NumberValue(0)
	}
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) {
			return NumberValue(0)
		}
	case KindString:
		if v.str == "" {
			return NumberValue(0)
		}
	}
	return v
}

// InactiveDays returns the whole days elapsed between the customer's last
// order and now, or NeverOrdered when there is no last order.
func InactiveDays(p Profile, now time.Time) float64 {
	v, ok := p.Attribute(AttrLastOrderDate)
	if !ok {
		return NeverOrdered
	}
	last := v.Float()
	if math.IsNaN(last) {
		return math.NaN()
	}
	return math.Floor(float64(now.UnixMilli()-int64(last)) / msPerDay)
}
