package segment

// Operator is a comparison applied between a customer attribute and a condition value.
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
)

// Known reports whether op is one of the supported comparisons.
func (op Operator) Known() bool {
	switch op {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual:
		return true
	}
	return false
}

// Evaluate compares actual against expected.
//
// Two strings compare lexicographically. Any other pairing is compared
// numerically after coercing both sides, so "12" == 12 holds and
// "abc" > 1 does not. Unknown operators and invalid operands yield false.
func Evaluate(actual Value, op Operator, expected Value) bool {
	if !actual.IsValid() || !expected.IsValid() {
		return false
	}

	if actual.kind == KindString && expected.kind == KindString {
		return compareStrings(actual.str, op, expected.str)
	}
	return compareNumbers(actual.Float(), op, expected.Float())
}

func compareNumbers(a float64, op Operator, b float64) bool {
	// NaN on either side makes every branch false.
	switch op {
	case OpGreater:
		return a > b
	case OpLess:
		return a < b
	case OpGreaterEqual:
		return a >= b
	case OpLessEqual:
		return a <= b
	case OpEqual:
		return a == b
	default:
		return false
	}
}

func compareStrings(a string, op Operator, b string) bool {
	switch op {
	case OpGreater:
		return a > b
	case OpLess:
		return a < b
	case OpGreaterEqual:
		return a >= b
	case OpLessEqual:
		return a <= b
	case OpEqual:
		return a == b
	default:
		return false
	}
}
