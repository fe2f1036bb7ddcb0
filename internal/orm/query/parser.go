package query

import (
	"strings"

	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// ClauseParser compiles one family of query variables into JOIN and WHERE
// fragments. Input it cannot use compiles to empty clauses.
type ClauseParser interface {
	Compile(vars Vars, s *schema.Schema) Clauses
}

// clauseHelper holds what every parser needs to render SQL
type clauseHelper struct {
	dialect  Dialect
	sentinel string
	now      validation.Clock
}

// isSet reports whether the caller supplied a value
func (h *clauseHelper) isSet(v interface{}) bool {
	if s, ok := v.(string); ok && s == h.sentinel {
		return false
	}
	return true
}

// qualify prefixes a column with the table alias
func (h *clauseHelper) qualify(s *schema.Schema, column string) string {
	return s.Table().Alias + "." + column
}

// operator reads an operator from v. Values outside allowed fall back.
func (h *clauseHelper) operator(v interface{}, allowed operatorSet, fallback Operator) Operator {
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	op, ok := ParseOperator(s)
	if !ok || !allowed.has(op) {
		return fallback
	}
	return op
}

// likeValue wraps an escaped value in wildcards
func (h *clauseHelper) likeValue(v interface{}) string {
	s, _ := validation.String(v)
	return "%" + h.dialect.EscapeLike(s) + "%"
}

// compare renders "expr op value". bind converts each value before it is
// bound. The second result is false when the value does not fit the
// operator.
func (h *clauseHelper) compare(expr string, op Operator, value interface{}, bind func(interface{}) interface{}) (Fragment, bool) {
	if bind == nil {
		bind = func(v interface{}) interface{} { return v }
	}

	switch {
	case op == OpExists:
		return Fragment{SQL: expr + " IS NOT NULL"}, true

	case op == OpNotExists:
		return Fragment{SQL: expr + " IS NULL"}, true

	case op.IsList():
		items, ok := listValue(value, true)
		if !ok || len(items) == 0 {
			return Fragment{}, false
		}
		args := make([]interface{}, len(items))
		for i, item := range items {
			args[i] = bind(item)
		}
		return Fragment{
			SQL:  expr + " " + op.String() + " (" + listPlaceholders(len(args)) + ")",
			Args: args,
		}, true

	case op.IsRange():
		items, ok := listValue(value, true)
		if !ok || len(items) < 2 {
			return Fragment{}, false
		}
		return Fragment{
			SQL:  expr + " " + op.String() + " ? AND ?",
			Args: []interface{}{bind(items[0]), bind(items[1])},
		}, true

	case op.IsLike():
		if value == nil || isList(value) {
			return Fragment{}, false
		}
		return Fragment{
			SQL:  h.dialect.Like(expr, op == OpNotLike),
			Args: []interface{}{h.likeValue(value)},
		}, true

	case op.IsRegexp():
		s, ok := validation.String(value)
		if !ok || isList(value) {
			return Fragment{}, false
		}
		return Fragment{
			SQL:  h.dialect.Regexp(expr, op == OpNotRegexp),
			Args: []interface{}{s},
		}, true
	}

	if value == nil || isList(value) {
		return Fragment{}, false
	}
	return Fragment{
		SQL:  expr + " " + op.String() + " ?",
		Args: []interface{}{bind(value)},
	}, true
}

// firstOrderKeys returns a leaf detector matching maps with any of keys
func firstOrderKeys(keys ...string) func(map[string]interface{}) bool {
	return func(m map[string]interface{}) bool {
		for _, k := range keys {
			if _, ok := m[k]; ok {
				return true
			}
		}
		return false
	}
}

// stringArg reads a trimmed string argument
func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := validation.String(v)
	return strings.TrimSpace(s)
}
