package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var refNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func customer(spend, visits float64, lastOrder *time.Time) Attributes {
	a := Attributes{
		AttrLifetimeSpend: NumberValue(spend),
		AttrVisits:        NumberValue(visits),
		"name":            StringValue("Asha"),
		"email":           StringValue("asha@example.com"),
	}
	if lastOrder != nil {
		a[AttrLastOrderDate] = NumberValue(float64(lastOrder.UnixMilli()))
	}
	return a
}

func daysAgo(n int) *time.Time {
	t := refNow.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func cond(field string, op Operator, v Value, logical Connector) Condition {
	return Condition{Field: field, Operator: op, Value: v, Logical: logical}
}

func TestEvaluateChain(t *testing.T) {
	t.Parallel()

	n := NumberValue
	highSpendOrFrequent := []Condition{
		cond(FieldSpend, OpGreater, n(15000), Or),
		cond(FieldVisits, OpGreaterEqual, n(10), And),
	}

	tests := []struct {
		name    string
		profile Profile
		conds   []Condition
		want    bool
	}{
		{
			name:    "Should match everyone on empty chain",
			profile: customer(0, 0, nil),
			conds:   nil,
			want:    true,
		},
		{
			name:    "Should match single condition",
			profile: customer(1500, 0, nil),
			conds:   []Condition{cond(FieldSpend, OpGreater, n(1000), "")},
			want:    true,
		},
		{
			name:    "Should default absent spend to zero",
			profile: Attributes{},
			conds:   []Condition{cond(FieldSpend, OpLess, n(1), "")},
			want:    true,
		},
		{
			name:    "Should short-circuit OR when first group is true",
			profile: customer(20000, 0, nil),
			conds:   highSpendOrFrequent,
			want:    true,
		},
		{
			name:    "Should match second AND group after failed OR",
			profile: customer(5000, 12, nil),
			conds:   highSpendOrFrequent,
			want:    true,
		},
		{
			name:    "Should reject when both groups fail",
			profile: customer(5000, 2, nil),
			conds:   highSpendOrFrequent,
			want:    false,
		},
		{
			name:    "Should exit early on AND failure even if a later OR group would match",
			profile: customer(100, 50, nil),
			conds: []Condition{
				cond(FieldSpend, OpGreater, n(1000), And),
				cond(FieldSpend, OpGreater, n(2000), Or),
				cond(FieldVisits, OpGreater, n(10), ""),
			},
			want: false,
		},
		{
			name:    "Should attach connector to the following condition",
			profile: customer(100, 50, nil),
			conds: []Condition{
				cond(FieldSpend, OpGreater, n(1000), Or),
				cond(FieldVisits, OpGreater, n(10), And),
				cond(FieldVisits, OpLess, n(100), ""),
			},
			want: true,
		},
		{
			name:    "Should skip incomplete conditions without changing state",
			profile: customer(5000, 2, nil),
			conds: []Condition{
				{Field: "", Operator: OpGreater, Value: n(1), Logical: Or},
				{Field: FieldSpend, Operator: "", Value: n(1), Logical: Or},
				{Field: FieldSpend, Operator: OpGreater, Logical: Or},
				cond(FieldSpend, OpGreater, n(1000), ""),
			},
			want: true,
		},
		{
			name:    "Should treat lowercase or as OR",
			profile: customer(5000, 12, nil),
			conds: []Condition{
				cond(FieldSpend, OpGreater, n(15000), "or"),
				cond(FieldVisits, OpGreaterEqual, n(10), ""),
			},
			want: true,
		},
		{
			name:    "Should treat unknown connector as AND",
			profile: customer(5000, 12, nil),
			conds: []Condition{
				cond(FieldSpend, OpGreater, n(15000), "XOR"),
				cond(FieldVisits, OpGreaterEqual, n(10), ""),
			},
			want: false,
		},
		{
			name:    "Should coerce numeric string values for dedicated fields",
			profile: customer(1500, 0, nil),
			conds:   []Condition{cond(FieldSpend, OpGreater, StringValue("1000"), "")},
			want:    true,
		},
		{
			name:    "Should fail unparsable values for dedicated fields",
			profile: customer(1500, 0, nil),
			conds:   []Condition{cond(FieldSpend, OpGreater, StringValue("lots"), "")},
			want:    false,
		},
		{
			name:    "Should count recent customers as active",
			profile: customer(0, 1, daysAgo(10)),
			conds:   []Condition{cond(FieldInactiveDays, OpLess, n(30), "")},
			want:    true,
		},
		{
			name:    "Should count customers without orders as inactive forever",
			profile: customer(0, 0, nil),
			conds:   []Condition{cond(FieldInactiveDays, OpGreater, n(365000), "")},
			want:    true,
		},
		{
			name:    "Should fail less than test for customers without orders",
			profile: customer(0, 0, nil),
			conds:   []Condition{cond(FieldInactiveDays, OpLess, n(30), "")},
			want:    false,
		},
		{
			name:    "Should compare custom string attributes",
			profile: customer(0, 0, nil),
			conds:   []Condition{cond("name", OpEqual, StringValue("Asha"), "")},
			want:    true,
		},
		{
			name:    "Should contribute false for absent custom attributes",
			profile: customer(0, 0, nil),
			conds:   []Condition{cond("tier", OpEqual, StringValue("gold"), "")},
			want:    false,
		},
		{
			name:    "Should recover from absent custom attribute through OR",
			profile: customer(0, 3, nil),
			conds: []Condition{
				cond("tier", OpEqual, StringValue("gold"), Or),
				cond(FieldVisits, OpEqual, n(3), ""),
			},
			want: true,
		},
		{
			name:    "Should never match unknown operators",
			profile: customer(5000, 0, nil),
			conds:   []Condition{cond(FieldSpend, Operator("=>"), n(1), "")},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, evaluateChain(tt.profile, tt.conds, refNow))
		})
	}
}

func TestInactiveDays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, float64(0), InactiveDays(customer(0, 1, &refNow), refNow))
	assert.Equal(t, float64(10), InactiveDays(customer(0, 1, daysAgo(10)), refNow))

	partial := refNow.Add(-36 * time.Hour)
	assert.Equal(t, float64(1), InactiveDays(customer(0, 1, &partial), refNow), "partial days floor down")

	future := refNow.Add(12 * time.Hour)
	assert.Equal(t, float64(-1), InactiveDays(customer(0, 1, &future), refNow), "future orders floor toward -inf")

	assert.Equal(t, float64(NeverOrdered), InactiveDays(customer(0, 0, nil), refNow))
}

func TestConnector_Normalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Or, Connector("OR").normalize())
	assert.Equal(t, Or, Connector(" or ").normalize())
	assert.Equal(t, And, Connector("").normalize())
	assert.Equal(t, And, Connector("and").normalize())
	assert.Equal(t, And, Connector("NOT").normalize())
}
