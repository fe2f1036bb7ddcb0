// Package query compiles query variables into parameterized SQL.
//
// A Compiler is bound to one schema. Each call to Parse starts a Query that
// moves through VarsParsed, ClausesCompiled and RequestAssembled; the table
// layer drives the remaining Executed and ItemsShaped states.
package query

import "strings"

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpLike
	OpNotLike
	OpIn
	OpNotIn
	OpBetween
	OpNotBetween
	OpExists
	OpNotExists
	OpRegexp
	OpNotRegexp
	OpRLike
)

var operatorNames = map[Operator]string{
	OpEqual:              "=",
	OpNotEqual:           "!=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpLike:               "LIKE",
	OpNotLike:            "NOT LIKE",
	OpIn:                 "IN",
	OpNotIn:              "NOT IN",
	OpBetween:            "BETWEEN",
	OpNotBetween:         "NOT BETWEEN",
	OpExists:             "EXISTS",
	OpNotExists:          "NOT EXISTS",
	OpRegexp:             "REGEXP",
	OpNotRegexp:          "NOT REGEXP",
	OpRLike:              "RLIKE",
}

var operatorsByName = func() map[string]Operator {
	m := make(map[string]Operator, len(operatorNames))
	for op, name := range operatorNames {
		m[name] = op
	}
	m["<>"] = OpNotEqual
	return m
}()

// String returns the string representation of the operator
func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseOperator looks an operator up by its SQL spelling. Case and
// surrounding whitespace are ignored.
func ParseOperator(s string) (Operator, bool) {
	s = strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	op, ok := operatorsByName[s]
	return op, ok
}

// IsNegative reports whether the operator excludes matches
func (o Operator) IsNegative() bool {
	switch o {
	case OpNotEqual, OpNotLike, OpNotIn, OpNotBetween, OpNotExists, OpNotRegexp:
		return true
	}
	return false
}

// Positive returns the operator with its negation removed
func (o Operator) Positive() Operator {
	switch o {
	case OpNotEqual:
		return OpEqual
	case OpNotLike:
		return OpLike
	case OpNotIn:
		return OpIn
	case OpNotBetween:
		return OpBetween
	case OpNotExists:
		return OpExists
	case OpNotRegexp:
		return OpRegexp
	}
	return o
}

// IsList reports whether the operator takes a parenthesized value list
func (o Operator) IsList() bool {
	return o == OpIn || o == OpNotIn
}

// IsRange reports whether the operator takes a two-value range
func (o Operator) IsRange() bool {
	return o == OpBetween || o == OpNotBetween
}

// IsLike reports whether the operator is a LIKE comparison
func (o Operator) IsLike() bool {
	return o == OpLike || o == OpNotLike
}

// IsRegexp reports whether the operator is a regular expression match
func (o Operator) IsRegexp() bool {
	return o == OpRegexp || o == OpNotRegexp || o == OpRLike
}

// operatorSet is an allow-list of operators
type operatorSet map[Operator]struct{}

func newOperatorSet(ops ...Operator) operatorSet {
	s := make(operatorSet, len(ops))
	for _, op := range ops {
		s[op] = struct{}{}
	}
	return s
}

func (s operatorSet) has(op Operator) bool {
	_, ok := s[op]
	return ok
}

var (
	valueOperators = newOperatorSet(
		OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
		OpLike, OpNotLike, OpIn, OpNotIn, OpBetween, OpNotBetween,
		OpExists, OpNotExists, OpRegexp, OpNotRegexp, OpRLike,
	)

	keyOperators = newOperatorSet(
		OpEqual, OpNotEqual, OpLike, OpNotLike, OpIn, OpNotIn,
		OpRegexp, OpNotRegexp, OpRLike, OpExists, OpNotExists,
	)

	dateOperators = newOperatorSet(
		OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
		OpIn, OpNotIn, OpBetween, OpNotBetween,
	)

	// Sibling leaves joined by OR may share a join when both use one of these
	sharedUnderOr = newOperatorSet(
		OpEqual, OpIn, OpBetween, OpLike, OpRegexp, OpRLike,
		OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
	)

	// Sibling leaves joined by AND on the same key may share a join when both use one of these
	sharedUnderAnd = newOperatorSet(OpNotEqual, OpNotIn, OpNotLike)
)
