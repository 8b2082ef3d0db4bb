package segment

import (
	"strings"
	"time"
)

// Connector joins a condition with the one that follows it.
type Connector string

const (
	And Connector = "AND"
	Or  Connector = "OR"
)

// normalize maps the stored connector to AND or OR. Matching is
// case-insensitive; empty or unknown connectors act as AND.
func (c Connector) normalize() Connector {
	if strings.EqualFold(strings.TrimSpace(string(c)), string(Or)) {
		return Or
	}
	return And
}

// Condition is one term of a rule chain.
//
// Logical is the connector between this condition and the NEXT one in the
// chain, not between this condition and the previous one.
type Condition struct {
	Field    string    `json:"field"`
	Operator Operator  `json:"operator"`
	Value    Value     `json:"value"`
	Logical  Connector `json:"logical,omitempty"`
}

// Complete reports whether the condition has a field, an operator and a non-null value.
// Incomplete conditions are skipped during evaluation.
func (c Condition) Complete() bool {
	return c.Field != "" && c.Operator != "" && c.Value.IsValid()
}

// chainState is the accumulator threaded through a rule chain.
type chainState struct {
	result  bool
	pending Connector
}

// admit decides whether the condition at index i is evaluated.
// A pending OR with a true result settles the chain; a pending OR with a false
// result opens a new AND group.
func (s *chainState) admit(i int) bool {
	if i == 0 || s.pending != Or {
		return true
	}
	if s.result {
		return false
	}
	s.result = true
	s.pending = And
	return true
}

func (s *chainState) fold(step bool) {
	if s.pending == And {
		s.result = s.result && step
	} else {
		s.result = s.result || step
	}
}

// evaluateChain runs conds against p at the instant now.
func evaluateChain(p Profile, conds []Condition, now time.Time) bool {
	if len(conds) == 0 {
		return true
	}

	st := chainState{result: true, pending: And}
	for i, c := range conds {
		if !c.Complete() {
			continue
		}
		if !st.admit(i) {
			continue
		}

		st.fold(step(p, c, now))
		st.pending = c.Logical.normalize()

		if st.pending == And && !st.result {
			return false
		}
	}
	return st.result
}
