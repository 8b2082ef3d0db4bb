package segment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the Value union.
type Kind uint8

const (
	// KindInvalid marks an absent or null value. Conditions carrying it are skipped.
	KindInvalid Kind = iota
	KindNumber
	KindString
)

// Value is the operand of a Condition and the resolved value of a customer attribute.
// It is either a number or a string; booleans decode as 1 or 0.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// NumberValue wraps f.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// StringValue wraps s.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a number or a string.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Float coerces v to a number. Strings follow the usual lenient numeric
// conversion: surrounding whitespace is ignored, the empty string is 0,
// and anything unparsable is NaN (which makes every comparison false).
func (v Value) Float() float64 {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return parseNumber(v.str)
	default:
		return math.NaN()
	}
}

// Text returns the string form of v. Numbers use the shortest representation.
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.str)
	}
	if v.kind == KindInvalid {
		return "<invalid>"
	}
	return v.Text()
}

// MarshalJSON emits a JSON number, string, or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("segment: cannot encode %v as JSON", v.num)
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts numbers, strings, and booleans. Null, arrays and
// objects decode to an invalid Value so the enclosing condition is skipped.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case float64:
		*v = NumberValue(t)
	case string:
		*v = StringValue(t)
	case bool:
		if t {
			*v = NumberValue(1)
		} else {
			*v = NumberValue(0)
		}
	default:
		*v = Value{}
	}
	return nil
}

// parseNumber converts s the way a lenient numeric cast does.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			if strings.ContainsRune(s, '_') {
				return math.NaN()
			}
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}

	// ParseFloat also accepts "inf", "nan", hex floats and underscores.
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != 'e' && r != 'E' && r != '+' && r != '-' {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
